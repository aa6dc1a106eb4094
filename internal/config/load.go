package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse reads the YAML configuration file at path without validating it.
// Callers that inject values after reading — environment-variable
// overrides, a generated node identity — use Parse and call Validate
// themselves once the overrides are applied.
//
// Parameters:
//   - path: filesystem path of the YAML configuration file
//
// Returns:
//   - The unmarshaled Config, unvalidated
//   - An error if the file is unreadable or not well-formed YAML
func Parse(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errInvalid(fmt.Sprintf("parse %s: %v", path, err))
	}
	return cfg, nil
}

// Load reads and validates the YAML configuration file at path. It returns
// ErrConfigurationInvalid-wrapping errors for any structural or semantic
// problem, never a partially-valid Config.
func Load(path string) (Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
