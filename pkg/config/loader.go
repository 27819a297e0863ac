package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file from path, expands environment
// variable references, applies defaults, builds the tool catalog's JSON
// schemas, and validates the result, in that order: read, expand,
// unmarshal, default, validate.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles("."); err != nil {
		return nil, fmt.Errorf("config: loading .env files: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded := ExpandEnvVars(string(raw))

	var c Config
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	c.SetDefaults()

	catalog, err := BuildToolCatalog(c.RawToolCatalog)
	if err != nil {
		return nil, fmt.Errorf("config: building tool catalog: %w", err)
	}
	c.ToolCatalog = catalog

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
