// Package report resolves finished runs and renders them as HTML.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lfeval/internal/evaluator"
)

// LatestRef selects the most recent run.
const LatestRef = "latest"

// ResolveRun loads the summary of a run by ID. An empty ref or LatestRef picks the newest run.
func ResolveRun(outputDir, ref string) (evaluator.Summary, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == LatestRef {
		runDir, err := findLatestRunDir(outputDir)
		if err != nil {
			return evaluator.Summary{}, "", err
		}
		summary, err := loadRun(runDir)
		return summary, runDir, err
	}
	runDir := filepath.Join(outputDir, ref)
	if info, err := os.Stat(runDir); err != nil || !info.IsDir() {
		return evaluator.Summary{}, "", fmt.Errorf("run %s not found", ref)
	}
	summary, err := loadRun(runDir)
	return summary, runDir, err
}

// ListRuns loads every finished run under outputDir ordered by run ID.
// Directories without a summary belong to aborted runs and are skipped.
func ListRuns(outputDir string) ([]evaluator.Summary, error) {
	ids, err := runIDs(outputDir)
	if err != nil {
		return nil, err
	}
	runs := make([]evaluator.Summary, 0, len(ids))
	for _, id := range ids {
		summary, err := loadRun(filepath.Join(outputDir, id))
		if err != nil {
			return nil, err
		}
		runs = append(runs, summary)
	}
	return runs, nil
}

func loadRun(runDir string) (evaluator.Summary, error) {
	return evaluator.LoadSummary(filepath.Join(runDir, "summary.json"))
}

func findLatestRunDir(outputDir string) (string, error) {
	ids, err := runIDs(outputDir)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("no runs found in %s", outputDir)
	}
	return filepath.Join(outputDir, ids[len(ids)-1]), nil
}

func runIDs(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(outputDir, entry.Name(), "summary.json")); err != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Strings(ids)
	return ids, nil
}
