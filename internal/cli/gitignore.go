package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ignorePaths appends project-relative paths to <repoRoot>/.gitignore, skipping
// entries already present. It returns the entries it added.
func ignorePaths(repoRoot, projectRoot string, paths ...string) ([]string, error) {
	gitignorePath := filepath.Join(repoRoot, ".gitignore")
	existing, err := os.ReadFile(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read .gitignore: %w", err)
	}
	present := map[string]bool{}
	for _, line := range strings.Split(string(existing), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var added []string
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		entry, err := gitignoreEntry(repoRoot, projectRoot, path)
		if err != nil {
			return nil, err
		}
		if present[entry] || present[entry+"/"] {
			continue
		}
		present[entry] = true
		added = append(added, entry)
	}
	if len(added) == 0 {
		return nil, nil
	}

	updated := string(existing)
	if updated != "" && !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}
	updated += strings.Join(added, "\n") + "\n"
	if err := os.WriteFile(gitignorePath, []byte(updated), 0o644); err != nil {
		return nil, fmt.Errorf("write .gitignore: %w", err)
	}
	return added, nil
}

// gitignoreEntry resolves path against projectRoot and makes it relative to repoRoot.
func gitignoreEntry(repoRoot, projectRoot, path string) (string, error) {
	abs := filepath.Clean(path)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(projectRoot, abs)
	}
	rel, err := filepath.Rel(repoRoot, abs)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q is outside the repo root", path)
	}
	return filepath.ToSlash(rel), nil
}
