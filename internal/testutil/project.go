package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"lfeval/internal/dataset"
	"lfeval/internal/spec"
)

// CheckpointEpoch is the epoch recorded in project checkpoints.
const CheckpointEpoch = 7

// PartitionFixture is one dataset split written by WriteProject.
type PartitionFixture struct {
	Name     string
	Examples []dataset.Example
	Loss     bool
	Score    bool
}

// Project is an evaluation setup on disk. Config paths are relative to Root.
type Project struct {
	Root   string
	Config spec.Config
}

// WriteProject writes the shared vocabulary, every partition with a Helper per example,
// and a checkpoint matching StubModel. The returned config carries every default explicitly.
func WriteProject(t testing.TB, partitions ...PartitionFixture) Project {
	t.Helper()
	root := t.TempDir()
	writeJSONFile(t, filepath.Join(root, "data", "vocab.json"), VocabFile())
	writeJSONFile(t, filepath.Join(root, "model", "checkpoint.json"), map[string]any{
		"epoch": CheckpointEpoch,
		"state_dict": map[string]any{
			"stub.weight": map[string]any{"shape": []int{1, 1}, "data": []float64{0.5}},
		},
	})

	seed := uint64(1234)
	cfg := spec.Config{
		Version: 1,
		Data:    spec.DataConfig{Vocab: "data/vocab.json"},
		Model: spec.ModelConfig{
			Checkpoint:   "model/checkpoint.json",
			DModel:       8,
			MaxPositions: 64,
		},
		Run: spec.RunConfig{
			Task:            "multitask",
			BatchSize:       2,
			Seed:            &seed,
			Device:          "cpu",
			MaxDecodeLength: 20,
			ScoreTasks:      []string{"logical_form", "predicate_pointer", "type_pointer", "entity_pointer"},
		},
		Loss: spec.LossConfig{
			Policy: "weighted_sum",
			Weights: map[string]float64{
				"logical_form": 1, "predicate_pointer": 1, "type_pointer": 1, "entity_pointer": 1,
			},
		},
		Output: spec.OutputConfig{Dir: "results", LogFile: "test.log"},
	}
	for _, p := range partitions {
		examplesPath := filepath.Join("data", p.Name+".json")
		helpersPath := filepath.Join("data", p.Name+"_helpers.json")
		records := make([]dataset.HelperRecord, 0, len(p.Examples))
		for _, ex := range p.Examples {
			records = append(records, HelperFor(ex))
		}
		writeJSONFile(t, filepath.Join(root, examplesPath), map[string]any{"examples": p.Examples})
		writeJSONFile(t, filepath.Join(root, helpersPath), map[string]any{"records": records})
		cfg.Data.Partitions = append(cfg.Data.Partitions, spec.PartitionConfig{
			Name:     p.Name,
			Examples: examplesPath,
			Helpers:  helpersPath,
			Loss:     p.Loss,
			Score:    p.Score,
		})
	}
	return Project{Root: root, Config: cfg}
}

// WriteConfig writes the project config as <root>/.lfeval/config.yml and returns its path.
func (p Project) WriteConfig(t testing.TB) string {
	t.Helper()
	data, err := yaml.Marshal(p.Config)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(p.Root, ".lfeval", "config.yml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func writeJSONFile(t testing.TB, path string, payload any) {
	t.Helper()
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
