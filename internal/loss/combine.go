package loss

import (
	"fmt"
	"math"
	"strings"

	"lfeval/internal/task"
)

// Loss combination policies accepted in config.
const (
	PolicyWeightedSum = "weighted_sum"
	PolicyUncertainty = "uncertainty"
)

// Combiner merges per-stream losses into one scalar.
type Combiner interface {
	Combine(losses map[task.Task]float64) (float64, error)
}

// WeightedSum returns the sum of w_i * L_i. Streams without a weight contribute nothing.
type WeightedSum struct {
	Weights map[task.Task]float64
}

func (c WeightedSum) Combine(losses map[task.Task]float64) (float64, error) {
	var total float64
	for _, tk := range task.Streams {
		value, ok := losses[tk]
		if !ok {
			return 0, fmt.Errorf("missing %s loss", tk)
		}
		total += c.Weights[tk] * value
	}
	return total, nil
}

// Uncertainty weights each stream by its learned log-variance:
// mean_i( L_i / (2*sigma_i^2) + log sigma_i ) with sigma_i^2 = exp(logvar_i).
// Streams without a log-variance use 0.
type Uncertainty struct {
	LogVars map[task.Task]float64
}

func (c Uncertainty) Combine(losses map[task.Task]float64) (float64, error) {
	var total float64
	for _, tk := range task.Streams {
		value, ok := losses[tk]
		if !ok {
			return 0, fmt.Errorf("missing %s loss", tk)
		}
		logVar := c.LogVars[tk]
		variance := math.Exp(logVar)
		total += value/(2*variance) + logVar/2
	}
	return total / float64(len(task.Streams)), nil
}

// NewCombiner builds a combiner from config values keyed by stream name.
func NewCombiner(policy string, weights, logVars map[string]float64) (Combiner, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case PolicyWeightedSum:
		parsed, err := byTask(weights)
		if err != nil {
			return nil, fmt.Errorf("loss weights: %w", err)
		}
		return WeightedSum{Weights: parsed}, nil
	case PolicyUncertainty:
		parsed, err := byTask(logVars)
		if err != nil {
			return nil, fmt.Errorf("loss log_vars: %w", err)
		}
		return Uncertainty{LogVars: parsed}, nil
	default:
		return nil, fmt.Errorf("unknown loss policy %q", policy)
	}
}

func byTask(values map[string]float64) (map[task.Task]float64, error) {
	out := make(map[task.Task]float64, len(values))
	for name, value := range values {
		tk, err := task.Parse(name)
		if err != nil {
			return nil, err
		}
		if !tk.IsStream() {
			return nil, fmt.Errorf("%s is not a single stream", tk)
		}
		out[tk] = value
	}
	return out, nil
}
