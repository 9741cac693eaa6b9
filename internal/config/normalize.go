package config

import (
	"strings"

	"lfeval/internal/loss"
	"lfeval/internal/spec"
	"lfeval/internal/task"
)

// Defaults applied by Normalize.
const (
	DefaultBatchSize       = 50
	DefaultMaxDecodeLength = 60
	DefaultSeed            = 1234
	DefaultDevice          = "cpu"
	DefaultTask            = "multitask"
	DefaultLogFile         = "test.log"
	DefaultDModel          = 32
	DefaultMaxPositions    = 256
)

func Normalize(cfg *spec.Config) {
	if cfg.Run.BatchSize == 0 {
		cfg.Run.BatchSize = DefaultBatchSize
	}
	if cfg.Run.MaxDecodeLength == 0 {
		cfg.Run.MaxDecodeLength = DefaultMaxDecodeLength
	}
	if cfg.Run.Seed == nil {
		seed := uint64(DefaultSeed)
		cfg.Run.Seed = &seed
	}
	if strings.TrimSpace(cfg.Run.Device) == "" {
		cfg.Run.Device = DefaultDevice
	}
	if strings.TrimSpace(cfg.Run.Task) == "" {
		cfg.Run.Task = DefaultTask
	}
	if len(cfg.Run.ScoreTasks) == 0 {
		for _, tk := range task.Streams {
			cfg.Run.ScoreTasks = append(cfg.Run.ScoreTasks, tk.String())
		}
	}
	if cfg.Model.DModel == 0 {
		cfg.Model.DModel = DefaultDModel
	}
	if cfg.Model.MaxPositions == 0 {
		cfg.Model.MaxPositions = DefaultMaxPositions
	}
	if strings.TrimSpace(cfg.Loss.Policy) == "" {
		cfg.Loss.Policy = loss.PolicyWeightedSum
	}
	if cfg.Loss.Policy == loss.PolicyWeightedSum && len(cfg.Loss.Weights) == 0 {
		cfg.Loss.Weights = map[string]float64{}
		for _, tk := range task.Streams {
			cfg.Loss.Weights[tk.String()] = 1
		}
	}
	if strings.TrimSpace(cfg.Output.Dir) == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if strings.TrimSpace(cfg.Output.LogFile) == "" {
		cfg.Output.LogFile = DefaultLogFile
	}
}
