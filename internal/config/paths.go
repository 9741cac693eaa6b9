package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	ConfigDirName    = ".lfeval"
	ConfigFileName   = "config.yml"
	DefaultOutputDir = ".lfeval/results"
)

var errNotFound = errors.New("not found")

// DefaultConfigPath is where init places a config for a project rooted at root.
func DefaultConfigPath(root string) string {
	return filepath.Join(root, ConfigDirName, ConfigFileName)
}

// RootFromConfigPath derives the project root from a config file path.
// Relative paths in the config resolve against it.
func RootFromConfigPath(configPath string) string {
	dir := filepath.Dir(configPath)
	if filepath.Base(dir) == ConfigDirName {
		return filepath.Dir(dir)
	}
	return dir
}

// FindConfigPath searches upward from startDir (default: working directory)
// for .lfeval/config.yml.
func FindConfigPath(startDir string) (string, error) {
	var found string
	err := walkUp(startDir, func(dir string) (bool, error) {
		candidate := DefaultConfigPath(dir)
		info, err := os.Stat(candidate)
		switch {
		case err == nil && info.IsDir():
			return false, fmt.Errorf("config path %q is a directory", candidate)
		case err == nil:
			found = candidate
			return true, nil
		case !os.IsNotExist(err):
			return false, fmt.Errorf("stat config path %q: %w", candidate, err)
		}
		if info, err := os.Stat(filepath.Join(dir, ConfigDirName)); err == nil && info.IsDir() {
			return false, fmt.Errorf("found %q but %s is missing", filepath.Join(dir, ConfigDirName), ConfigFileName)
		}
		return false, nil
	})
	if errors.Is(err, errNotFound) {
		return "", fmt.Errorf("no %s found in this or any parent directory", filepath.Join(ConfigDirName, ConfigFileName))
	}
	return found, err
}

// FindGitRoot returns the closest directory at or above startDir holding a
// .git entry, or "" outside a repository.
func FindGitRoot(startDir string) string {
	var root string
	_ = walkUp(startDir, func(dir string) (bool, error) {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			root = dir
			return true, nil
		}
		return false, nil
	})
	return root
}

// walkUp calls visit on startDir and each parent until visit stops it. It
// returns errNotFound when the filesystem root is passed without a match.
func walkUp(startDir string, visit func(dir string) (bool, error)) error {
	if startDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		startDir = wd
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", startDir, err)
	}
	for {
		done, err := visit(dir)
		if err != nil || done {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return errNotFound
		}
		dir = parent
	}
}

// Resolve joins a config-relative path onto root. Absolute paths are returned unchanged.
func Resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
