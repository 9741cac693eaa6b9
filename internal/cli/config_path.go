package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"lfeval/internal/config"
	"lfeval/internal/spec"
)

// resolveSpecPath makes an explicit --spec absolute, or searches upward from the working directory.
func resolveSpecPath(specPath string) (string, error) {
	if strings.TrimSpace(specPath) == "" {
		return config.FindConfigPath("")
	}
	abs, err := filepath.Abs(specPath)
	if err != nil {
		return "", fmt.Errorf("resolve spec path: %w", err)
	}
	return abs, nil
}

// loadProject finds, loads and validates the config and returns it with the project root
// that its relative paths resolve against.
func loadProject(specPath string) (spec.Config, string, error) {
	resolved, err := resolveSpecPath(specPath)
	if err != nil {
		return spec.Config{}, "", err
	}
	cfg, err := config.Load(resolved)
	if err != nil {
		return spec.Config{}, "", err
	}
	return cfg, config.RootFromConfigPath(resolved), nil
}

// resolveInputDir returns the runs directory from --input or the config's output.dir.
func resolveInputDir(inputDir, specPath string) (string, error) {
	if strings.TrimSpace(inputDir) != "" {
		return filepath.Abs(inputDir)
	}
	cfg, root, err := loadProject(specPath)
	if err != nil {
		return "", err
	}
	return config.Resolve(root, cfg.Output.Dir), nil
}
