package migrator

import "github.com/temirov/usermigration/internal/archive"

// BasicVersionHandling implements the shared compatibility rule: an archive is
// importable when it was produced by the same or an older version. Migrators embed it.
type BasicVersionHandling struct {
	MigratorID     string
	CurrentVersion int
	// Mandatory rejects archives lacking an entry for MigratorID instead of skipping them.
	Mandatory bool
}

// Version returns the current version.
func (handling BasicVersionHandling) Version() int {
	return handling.CurrentVersion
}

// CanImport checks the archived version recorded in the source manifest.
func (handling BasicVersionHandling) CanImport(source archive.ImportSource) bool {
	return IsCompatible(source.MigratorVersion(handling.MigratorID), handling.CurrentVersion, handling.Mandatory)
}

// IsCompatible reports whether data archived at the given version can be imported by currentVersion.
func IsCompatible(archivedVersion archive.Version, currentVersion int, mandatory bool) bool {
	archivedNumber, present := archivedVersion.Number()
	if !present {
		return !mandatory
	}
	return archivedNumber <= currentVersion
}
