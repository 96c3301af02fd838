package dictionary

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseDictionaryFile reads and parses a data dictionary definition file (YAML).
func ParseDictionaryFile(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary file %q: %w", path, err)
	}

	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary file %q: %w", path, err)
	}

	if d.ID == "" {
		return nil, fmt.Errorf("dictionary file %q: missing required field 'id'", path)
	}
	if d.Version == 0 {
		d.Version = 1
	}
	if d.Status == "" {
		d.Status = StatusActive
	}
	return &d, nil
}
