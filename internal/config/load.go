package config

import (
	"fmt"
	"os"

	"lfeval/internal/spec"
)

// Load reads a config file, fills defaults and validates it against the files
// it references. Relative paths resolve against RootFromConfigPath(path).
func Load(path string) (spec.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return spec.Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := spec.ParseConfig(data)
	if err != nil {
		return spec.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	Normalize(&cfg)
	if err := Validate(&cfg, RootFromConfigPath(path)); err != nil {
		return spec.Config{}, err
	}
	return cfg, nil
}
