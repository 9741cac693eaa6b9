package config

import (
	"fmt"
	"os"
	"strings"

	"lfeval/internal/loss"
	"lfeval/internal/spec"
	"lfeval/internal/task"
)

// Validate checks a config for correctness and referenced files.
func Validate(cfg *spec.Config, baseDir string) error {
	collector := &issueCollector{}

	if cfg.Version == 0 {
		collector.add("version", "is required")
	} else if cfg.Version != 1 {
		collector.add("version", fmt.Sprintf("unsupported version %d", cfg.Version))
	}

	if baseDir == "" {
		baseDir = "."
	}

	validateData(cfg, baseDir, collector.add)
	validateModel(cfg, baseDir, collector.add)
	validateRun(cfg, collector.add)
	validateLoss(cfg, collector.add)

	if strings.TrimSpace(cfg.Output.Dir) == "" {
		collector.add("output.dir", "is required")
	}
	if strings.ContainsAny(cfg.Output.LogFile, `/\`) {
		collector.add("output.log_file", "must be a file name, not a path")
	}

	return collector.result()
}

func validateData(cfg *spec.Config, baseDir string, add issueAdder) {
	requireFile(baseDir, "data.vocab", cfg.Data.Vocab, add)
	if len(cfg.Data.Partitions) == 0 {
		add("data.partitions", "must include at least one entry")
	}
	names := map[string]struct{}{}
	anyWork := false
	for i, partition := range cfg.Data.Partitions {
		prefix := fmt.Sprintf("data.partitions[%d]", i)
		name := strings.TrimSpace(partition.Name)
		if name == "" {
			add(prefix+".name", "is required")
		} else if _, exists := names[name]; exists {
			add("data.partitions.name", fmt.Sprintf("duplicate name %q", name))
		} else {
			names[name] = struct{}{}
		}
		requireFile(baseDir, prefix+".examples", partition.Examples, add)
		requireFile(baseDir, prefix+".helpers", partition.Helpers, add)
		if !partition.Loss && !partition.Score {
			add(prefix, "must enable loss, score, or both")
		}
		anyWork = anyWork || partition.Loss || partition.Score
	}
	if len(cfg.Data.Partitions) > 0 && !anyWork {
		add("data.partitions", "no partition enables loss or score")
	}
}

func validateModel(cfg *spec.Config, baseDir string, add issueAdder) {
	requireFile(baseDir, "model.checkpoint", cfg.Model.Checkpoint, add)
	if cfg.Model.DModel <= 0 {
		add("model.d_model", "must be > 0")
	}
	if cfg.Model.MaxPositions <= 0 {
		add("model.max_positions", "must be > 0")
	}
	if cfg.Model.Dropout < 0 || cfg.Model.Dropout >= 1 {
		add("model.dropout", "must be in [0, 1)")
	}
}

func validateRun(cfg *spec.Config, add issueAdder) {
	if _, err := task.Parse(cfg.Run.Task); err != nil {
		add("run.task", err.Error())
	}
	if cfg.Run.BatchSize <= 0 {
		add("run.batch_size", "must be > 0")
	}
	if cfg.Run.MaxDecodeLength <= 0 {
		add("run.max_decode_length", "must be > 0")
	}
	if cfg.Run.MaxDecodeLength > cfg.Model.MaxPositions && cfg.Model.MaxPositions > 0 {
		add("run.max_decode_length", fmt.Sprintf("must not exceed model.max_positions (%d)", cfg.Model.MaxPositions))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Run.Device)) {
	case "cpu":
	default:
		add("run.device", fmt.Sprintf("unsupported device %q", cfg.Run.Device))
	}
	if _, err := task.ParseStreams(cfg.Run.ScoreTasks); err != nil {
		add("run.score_tasks", err.Error())
	}
}

func validateLoss(cfg *spec.Config, add issueAdder) {
	if _, err := loss.NewCombiner(cfg.Loss.Policy, cfg.Loss.Weights, cfg.Loss.LogVars); err != nil {
		add("loss", err.Error())
	}
	for name, weight := range cfg.Loss.Weights {
		if weight < 0 {
			add("loss.weights."+name, "must be >= 0")
		}
	}
}

// requireFile flags an empty, missing, or directory path.
func requireFile(baseDir, field, value string, add issueAdder) {
	if strings.TrimSpace(value) == "" {
		add(field, "is required")
		return
	}
	info, err := os.Stat(Resolve(baseDir, value))
	if err != nil {
		add(field, fmt.Sprintf("file not found at %q", value))
	} else if info.IsDir() {
		add(field, fmt.Sprintf("path %q is a directory", value))
	}
}
