package archive

import (
	"encoding/json"
	"sort"
	"strconv"
)

const (
	// ManifestPath is the reserved entry holding the migrator version record.
	ManifestPath = "migrator_versions.json"
	// ExportArtifactName marks a completed export at the root of an account's storage.
	ExportArtifactName = "account_export.zip"
	// PartialArtifactSuffix is appended to the artifact name while an export is being written.
	PartialArtifactSuffix = ".part"

	noVersionStringConstant = "none"
)

// Version is an optional migrator version. A missing manifest entry is not the same as version zero.
type Version struct {
	number  int
	present bool
}

// KnownVersion wraps a version recorded in a manifest.
func KnownVersion(number int) Version {
	return Version{number: number, present: true}
}

// NoVersion represents a migrator absent from a manifest.
func NoVersion() Version {
	return Version{}
}

// Number returns the version and whether it is present.
func (version Version) Number() (int, bool) {
	return version.number, version.present
}

// IsPresent reports whether a version was recorded.
func (version Version) IsPresent() bool {
	return version.present
}

// String renders the version or "none".
func (version Version) String() string {
	if !version.present {
		return noVersionStringConstant
	}
	return strconv.Itoa(version.number)
}

// Manifest maps migrator identifiers to the version that produced their archive entries.
type Manifest map[string]int

// Version looks up the version recorded for the identifier.
func (manifest Manifest) Version(migratorID string) Version {
	number, exists := manifest[migratorID]
	if !exists {
		return NoVersion()
	}
	return KnownVersion(number)
}

// IDs returns the recorded identifiers in lexical order.
func (manifest Manifest) IDs() []string {
	identifiers := make([]string, 0, len(manifest))
	for identifier := range manifest {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)
	return identifiers
}

// Clone returns an independent copy.
func (manifest Manifest) Clone() Manifest {
	cloned := make(Manifest, len(manifest))
	for identifier, number := range manifest {
		cloned[identifier] = number
	}
	return cloned
}

// ParseManifest decodes the flat JSON object stored at ManifestPath.
func ParseManifest(content []byte) (Manifest, error) {
	var manifest Manifest
	if decodeError := json.Unmarshal(content, &manifest); decodeError != nil {
		return nil, decodeError
	}
	if manifest == nil {
		manifest = Manifest{}
	}
	return manifest, nil
}
