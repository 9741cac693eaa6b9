// Package model defines the interfaces the evaluation pipeline consumes from a sequence model,
// plus a compact reference encoder/decoder.
package model

import (
	"gonum.org/v1/gonum/mat"

	"lfeval/internal/task"
	"lfeval/internal/tensor"
)

// Mode selects train-time or inference-time behavior.
type Mode int

const (
	Train Mode = iota
	Eval
)

func (m Mode) String() string {
	if m == Eval {
		return "eval"
	}
	return "train"
}

// Output holds flattened logits per stream: rows are batch*time, columns are classes.
type Output struct {
	LogicalForm      *mat.Dense
	PredicatePointer *mat.Dense
	TypePointer      *mat.Dense
	EntityPointer    *mat.Dense
}

// ForTask returns the logits of one stream, or nil for task.MultiTask.
func (o Output) ForTask(t task.Task) *mat.Dense {
	switch t {
	case task.LogicalForm:
		return o.LogicalForm
	case task.PredicatePointer:
		return o.PredicatePointer
	case task.TypePointer:
		return o.TypePointer
	case task.EntityPointer:
		return o.EntityPointer
	default:
		return nil
	}
}

// Memory is the encoded input of one example.
type Memory struct {
	// Hidden has one row per input position.
	Hidden *mat.Dense
	// Mask marks padded input positions.
	Mask []bool
}

// Len returns the number of encoded input positions.
func (m *Memory) Len() int {
	if m == nil || m.Hidden == nil {
		return 0
	}
	r, _ := m.Hidden.Dims()
	return r
}

// StepLogits are the last-position logits of one decoding step.
type StepLogits struct {
	LogicalForm      []float64
	PredicatePointer []float64
	TypePointer      []float64
	EntityPointer    []float64
}

// Inference is the part of a model used for greedy decoding.
type Inference interface {
	Encode(input []int, entityPointer []int) (*Memory, error)
	Step(mem *Memory, prefix []int) (StepLogits, error)
}

// Moder reports and switches the train/eval mode.
type Moder interface {
	Mode() Mode
	SetMode(Mode)
}

// Model is the full interface consumed by the evaluator.
type Model interface {
	Inference
	Moder
	Forward(input, decoderInput, entityPointer tensor.Ints) (Output, error)
	ParameterShapes() map[string][2]int
	LoadParameters(params map[string]*mat.Dense) error
}

// EvalMode switches m into Eval and returns a func restoring the previous mode.
// Callers defer the restore so it runs on every exit path.
func EvalMode(m Moder) (restore func()) {
	prev := m.Mode()
	m.SetMode(Eval)
	return func() { m.SetMode(prev) }
}
