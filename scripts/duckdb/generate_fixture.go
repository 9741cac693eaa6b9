// Command generate_fixture writes a DuckDB file holding synthetic evaluation runs,
// used to exercise "lfeval history" and the accuracy view against larger stores.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"lfeval/internal/duckdb"
	"lfeval/internal/evaluator"
	"lfeval/internal/score"
	"lfeval/internal/task"
)

// fixtureConfig defines the JSON config for generating a DuckDB fixture.
type fixtureConfig struct {
	Name       string   `json:"name"`
	Epochs     int      `json:"epochs"`
	Categories []string `json:"categories"`
	Examples   int      `json:"examples_per_category"`
}

func main() {
	configPath := flag.String("config", "", "path to fixture config JSON")
	outPath := flag.String("out", "", "output duckdb file path")
	flag.Parse()
	if *configPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: generate_fixture --config <path> --out <duckdb file>")
		os.Exit(2)
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := removeIfExists(*outPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir output dir: %v\n", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := generateFixture(ctx, *outPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "generate fixture: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (fixtureConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fixtureConfig{}, err
	}
	var cfg fixtureConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fixtureConfig{}, err
	}
	if cfg.Epochs <= 0 || cfg.Examples <= 0 || len(cfg.Categories) == 0 {
		return fixtureConfig{}, fmt.Errorf("epochs, examples_per_category and categories are required")
	}
	return cfg, nil
}

// generateFixture stores one run per epoch. Accuracy grows linearly with the epoch
// and is lower for later stream heads.
func generateFixture(ctx context.Context, path string, cfg fixtureConfig) error {
	db, err := duckdb.Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		table := score.Table{}
		for _, tk := range task.Streams {
			table.Tasks = append(table.Tasks, tk.String())
		}
		for _, category := range cfg.Categories {
			for i, tk := range task.Streams {
				correct := cfg.Examples * epoch / (cfg.Epochs + i)
				table.Entries = append(table.Entries, score.Entry{
					QuestionType: category,
					Task:         tk.String(),
					Correct:      correct,
					Total:        cfg.Examples,
					Accuracy:     float64(correct) / float64(cfg.Examples),
				})
			}
		}
		loss := 4.0 / float64(epoch)
		finished := start.Add(time.Duration(epoch) * time.Hour)
		summary := evaluator.Summary{
			RunID:      evaluator.FormatRunID(finished, deterministicID("run", epoch)[:12]),
			StartedAt:  finished.Add(-10 * time.Minute),
			FinishedAt: finished,
			Checkpoint: evaluator.CheckpointInfo{Path: fmt.Sprintf("models/%s/epoch-%03d.json", cfg.Name, epoch), Epoch: epoch},
			Task:       task.MultiTask.String(),
			LossPolicy: "weighted_sum",
			BatchSize:  50,
			Partitions: []evaluator.PartitionSummary{
				{Name: "val", Examples: cfg.Examples * len(cfg.Categories), Loss: &loss},
				{Name: "test", Examples: cfg.Examples * len(cfg.Categories), Results: &table},
			},
		}
		if _, err := duckdb.IngestRun(ctx, db, summary, cfg); err != nil {
			return fmt.Errorf("ingest epoch %d: %w", epoch, err)
		}
	}
	return nil
}

// removeIfExists deletes an existing fixture file so we always start fresh.
func removeIfExists(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove existing fixture: %w", err)
		}
		return nil
	}
	if os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("stat fixture: %w", err)
}

// deterministicID generates a repeatable hex ID for fixture runs.
func deterministicID(prefix string, index int) string {
	id := uuid.NewSHA1(fixtureNamespace, []byte(fmt.Sprintf("%s-%d", prefix, index)))
	return fmt.Sprintf("%x", id[:])
}

// fixtureNamespace ensures stable IDs across fixture runs.
var fixtureNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
