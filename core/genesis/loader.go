package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a genesis spec from disk. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func Load(path string) (*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	spec := &Spec{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, spec); err != nil {
			return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, spec); err != nil {
			return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
		}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}
