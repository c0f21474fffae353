package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayFile decodes a YAML document over c. Keys missing from the file
// keep their current values.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
