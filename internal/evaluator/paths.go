package evaluator

import (
	"fmt"
	"path/filepath"
	"strings"
)

// OutputPaths describes filesystem locations for run outputs.
type OutputPaths struct {
	Root  string
	RunID string
}

// NewOutputPaths validates and constructs output paths metadata.
func NewOutputPaths(root, runID string) (OutputPaths, error) {
	if strings.TrimSpace(root) == "" {
		return OutputPaths{}, fmt.Errorf("output root is empty")
	}
	if strings.TrimSpace(runID) == "" {
		return OutputPaths{}, fmt.Errorf("run ID is empty")
	}
	return OutputPaths{Root: root, RunID: runID}, nil
}

// RunDir returns the directory for a specific run.
func (o OutputPaths) RunDir() string {
	return filepath.Join(o.Root, o.RunID)
}

// SummaryPath returns the path to summary.json.
func (o OutputPaths) SummaryPath() string {
	return filepath.Join(o.RunDir(), "summary.json")
}

// ResultsPath returns the accuracy table path of a scored partition.
func (o OutputPaths) ResultsPath(partition string) string {
	return filepath.Join(o.RunDir(), "results", partition+".json")
}

// PredictionsPath returns the decoded predictions of a scored partition, one JSON line per example.
func (o OutputPaths) PredictionsPath(partition string) string {
	return filepath.Join(o.RunDir(), "results", partition+".predictions.jsonl")
}

// ReportPath returns the path to the HTML report.
func (o OutputPaths) ReportPath() string {
	return filepath.Join(o.RunDir(), "report.html")
}

// LogsDir returns the path for log outputs.
func (o OutputPaths) LogsDir() string {
	return filepath.Join(o.RunDir(), "logs")
}

// LogPath returns the path of a named log file.
func (o OutputPaths) LogPath(name string) string {
	return filepath.Join(o.LogsDir(), name)
}
