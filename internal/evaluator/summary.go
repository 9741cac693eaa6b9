package evaluator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lfeval/internal/score"
)

// Summary describes one finished evaluation run.
type Summary struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Checkpoint CheckpointInfo     `json:"checkpoint"`
	Task       string             `json:"task"`
	LossPolicy string             `json:"loss_policy"`
	Seed       uint64             `json:"seed"`
	BatchSize  int                `json:"batch_size"`
	Partitions []PartitionSummary `json:"partitions"`
}

// CheckpointInfo identifies the weights that were evaluated.
type CheckpointInfo struct {
	Path  string `json:"path"`
	Epoch int    `json:"epoch"`
}

// PartitionSummary holds the loss and accuracies measured on one partition.
// Loss is nil when the loss pass was not requested; Results is nil when scoring was not.
type PartitionSummary struct {
	Name       string             `json:"name"`
	Examples   int                `json:"examples"`
	Loss       *float64           `json:"loss,omitempty"`
	TaskLosses map[string]float64 `json:"task_losses,omitempty"`
	Results    *score.Table       `json:"results,omitempty"`
}

// Partition returns the named partition summary.
func (s Summary) Partition(name string) (PartitionSummary, bool) {
	for _, p := range s.Partitions {
		if p.Name == name {
			return p, true
		}
	}
	return PartitionSummary{}, false
}

// Duration returns the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// WriteSummary writes summary.json into the run directory.
func WriteSummary(paths OutputPaths, summary Summary) error {
	return writeJSON(paths.SummaryPath(), summary)
}

// LoadSummary reads a summary written by WriteSummary.
func LoadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("read summary: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	var summary Summary
	if err := decoder.Decode(&summary); err != nil {
		return Summary{}, fmt.Errorf("parse summary: %w", err)
	}
	if summary.RunID == "" {
		return Summary{}, fmt.Errorf("parse summary: run_id is empty")
	}
	return summary, nil
}

func writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
