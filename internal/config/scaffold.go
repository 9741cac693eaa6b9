package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

const scaffoldTemplate = `version: 1
data:
  vocab: "data/vocab.json"
  partitions:
    - name: val
      examples: "data/val.jsonl"
      helpers: "data/val_helper.json"
      loss: true
    - name: test
      examples: "data/test.jsonl"
      helpers: "data/test_helper.json"
      loss: true
      score: true

model:
  checkpoint: "models/model.json"
  d_model: %d
  max_positions: %d
  dropout: 0.1

run:
  task: multitask
  batch_size: %d
  seed: %d
  device: %s
  max_decode_length: %d
  score_tasks: [logical_form, predicate_pointer, type_pointer, entity_pointer]

loss:
  policy: weighted_sum
  weights:
    logical_form: 1
    predicate_pointer: 1
    type_pointer: 1
    entity_pointer: 1

output:
  dir: %s
  log_file: %s
  duckdb: ""
  report: true
`

// ScaffoldConfig renders the starter config with the given output directory.
func ScaffoldConfig(outputDir string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, scaffoldTemplate,
			DefaultDModel, DefaultMaxPositions, DefaultBatchSize, DefaultSeed, DefaultDevice,
			DefaultMaxDecodeLength, strconv.Quote(outputDir), strconv.Quote(DefaultLogFile))
		return err
	})
}

// renderScaffoldConfig builds the scaffold YAML via the template component.
func renderScaffoldConfig(outputDir string) (string, error) {
	var builder strings.Builder
	if err := ScaffoldConfig(outputDir).Render(context.Background(), &builder); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// Scaffold writes a starter config to specPath. An existing file is never overwritten.
func Scaffold(specPath, outputDir string) error {
	if specPath == "" {
		return fmt.Errorf("spec path is required")
	}
	if info, err := os.Stat(specPath); err == nil {
		if info.IsDir() {
			return fmt.Errorf("spec path %q is a directory", specPath)
		}
		return fmt.Errorf("spec file already exists at %q", specPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat spec file: %w", err)
	}
	if strings.TrimSpace(outputDir) == "" {
		outputDir = DefaultOutputDir
	}
	content, err := renderScaffoldConfig(outputDir)
	if err != nil {
		return fmt.Errorf("render spec file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(specPath), 0o755); err != nil {
		return fmt.Errorf("create spec dir: %w", err)
	}
	if err := os.WriteFile(specPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write spec file: %w", err)
	}
	return nil
}
