package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"gitea.jw6.us/james/boardcal/internal/colour"
)

type statusMapFile struct {
	StatusColours map[string]string `toml:"status_colours"`
}

// LoadStatusColours reads the status-to-colour mapping from a TOML file.
// An empty path falls back to the built-in defaults. The file must carry a
// DEFAULT entry so unmapped statuses still resolve to a colour.
func LoadStatusColours(path string) (*colour.Map, error) {
	if path == "" {
		return colour.Default(), nil
	}

	var file statusMapFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("load status map %s: %w", path, err)
	}

	m, err := colour.New(file.StatusColours)
	if err != nil {
		return nil, fmt.Errorf("status map %s: %w", path, err)
	}
	return m, nil
}
