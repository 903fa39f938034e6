package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/glintapp/overlay/internal/shared/types"
)

// windowTableFile is the YAML shape of a window table override file.
type windowTableFile struct {
	Windows []types.WindowTypeConfig `yaml:"windows"`
}

// LoadWindowTable returns the built-in window type table, overlaid
// with entries from the YAML file at path when one is configured.
// Unknown names in the file are rejected so a typo cannot silently
// produce an orphan window type.
func LoadWindowTable(path string) (types.WindowTable, error) {
	table := types.DefaultWindowTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read window table: %w", err)
	}

	var file windowTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse window table: %w", err)
	}

	for _, entry := range file.Windows {
		if !entry.Name.Valid() {
			return nil, fmt.Errorf("window table: unknown window %q", entry.Name)
		}
		table[entry.Name] = entry
	}
	return table, nil
}
