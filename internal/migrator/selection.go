package migrator

import (
	"encoding/json"
	"strings"
)

const (
	selectionAllKeywordConstant  = "all"
	selectionNoneKeywordConstant = "none"
	listSeparatorConstant        = ","
)

// Selection chooses which migrators take part in an export. The zero value selects every migrator.
type Selection struct {
	explicit bool
	ids      []string
}

// SelectAll includes every registered migrator.
func SelectAll() Selection {
	return Selection{}
}

// SelectNone exports core account data only.
func SelectNone() Selection {
	return Selection{explicit: true, ids: []string{}}
}

// SelectIDs includes only the named migrators. Duplicates are dropped.
func SelectIDs(identifiers ...string) Selection {
	seen := make(map[string]struct{}, len(identifiers))
	selected := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		trimmedIdentifier := strings.TrimSpace(identifier)
		if len(trimmedIdentifier) == 0 {
			continue
		}
		if _, duplicate := seen[trimmedIdentifier]; duplicate {
			continue
		}
		seen[trimmedIdentifier] = struct{}{}
		selected = append(selected, trimmedIdentifier)
	}
	return Selection{explicit: true, ids: selected}
}

// ParseSelection reads "all", "none", or a comma separated identifier list. An empty value selects all.
func ParseSelection(rawSelection string) Selection {
	trimmedSelection := strings.TrimSpace(rawSelection)
	switch strings.ToLower(trimmedSelection) {
	case "", selectionAllKeywordConstant:
		return SelectAll()
	case selectionNoneKeywordConstant:
		return SelectNone()
	}
	return SelectIDs(strings.Split(trimmedSelection, listSeparatorConstant)...)
}

// IsAll reports whether every migrator is selected.
func (selection Selection) IsAll() bool {
	return !selection.explicit
}

// IDs returns the explicitly selected identifiers. It is nil when every migrator is selected.
func (selection Selection) IDs() []string {
	if !selection.explicit {
		return nil
	}
	identifiers := make([]string, len(selection.ids))
	copy(identifiers, selection.ids)
	return identifiers
}

// Includes reports whether the identifier takes part in the export.
func (selection Selection) Includes(identifier string) bool {
	if !selection.explicit {
		return true
	}
	for _, selected := range selection.ids {
		if selected == identifier {
			return true
		}
	}
	return false
}

// String renders the selection in the form accepted by ParseSelection.
func (selection Selection) String() string {
	switch {
	case !selection.explicit:
		return selectionAllKeywordConstant
	case len(selection.ids) == 0:
		return selectionNoneKeywordConstant
	}
	return strings.Join(selection.ids, listSeparatorConstant)
}

// MarshalJSON encodes all as null, none as an empty list, and otherwise the identifier list.
func (selection Selection) MarshalJSON() ([]byte, error) {
	if !selection.explicit {
		return []byte("null"), nil
	}
	return json.Marshal(selection.ids)
}

// UnmarshalJSON reverses MarshalJSON.
func (selection *Selection) UnmarshalJSON(data []byte) error {
	var identifiers []string
	if decodeError := json.Unmarshal(data, &identifiers); decodeError != nil {
		return decodeError
	}
	if identifiers == nil {
		*selection = SelectAll()
		return nil
	}
	*selection = SelectIDs(identifiers...)
	return nil
}
