package colour

import (
	"fmt"
	"sort"
)

// DefaultKey is the map entry consulted when a status has no explicit colour.
const DefaultKey = "DEFAULT"

// Map resolves board status names to calendar colour identifiers.
// Lookup never fails: statuses without an entry fall back to the
// DEFAULT colour, so a record can always be rendered on the calendar.
type Map struct {
	entries map[string]string
}

// New builds a Map from explicit entries. The entries must include a
// DEFAULT colour; without it an unknown status would have nowhere to go.
func New(entries map[string]string) (*Map, error) {
	if _, ok := entries[DefaultKey]; !ok {
		return nil, fmt.Errorf("status colour map has no %s entry", DefaultKey)
	}
	copied := make(map[string]string, len(entries))
	for status, colourID := range entries {
		if colourID == "" {
			return nil, fmt.Errorf("status %q maps to an empty colour id", status)
		}
		copied[status] = colourID
	}
	return &Map{entries: copied}, nil
}

// Default returns the built-in status table used when no map file is
// configured.
func Default() *Map {
	m, err := New(map[string]string{
		"TO_DO":       "7",
		"IN_PROGRESS": "5",
		"IN_REVIEW":   "1",
		"DONE":        "10",
		DefaultKey:    "8",
	})
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the colour id for a status, or the DEFAULT colour when
// the status is not configured.
func (m *Map) Lookup(status string) string {
	if colourID, ok := m.entries[status]; ok {
		return colourID
	}
	return m.entries[DefaultKey]
}

// Statuses lists the configured status names in sorted order, excluding
// the DEFAULT entry.
func (m *Map) Statuses() []string {
	names := make([]string, 0, len(m.entries))
	for status := range m.entries {
		if status == DefaultKey {
			continue
		}
		names = append(names, status)
	}
	sort.Strings(names)
	return names
}
