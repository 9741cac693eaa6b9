// Package loss computes evaluation losses from model outputs and decode-aligned targets.
package loss

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"lfeval/internal/dataset"
	"lfeval/internal/model"
	"lfeval/internal/task"
	"lfeval/internal/tensor"
	"lfeval/internal/vocab"
)

// ShapeMismatchError reports logits and targets that cannot be paired.
type ShapeMismatchError struct {
	Task   task.Task
	Reason string
}

func (err *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %s: %s", err.Task, err.Reason)
}

// Targets are flattened (batch*time) target indices per stream.
type Targets struct {
	LogicalForm      []int
	PredicatePointer []int
	TypePointer      []int
	EntityPointer    []int
}

// ForTask returns the targets of one stream.
func (t Targets) ForTask(tk task.Task) []int {
	switch tk {
	case task.LogicalForm:
		return t.LogicalForm
	case task.PredicatePointer:
		return t.PredicatePointer
	case task.TypePointer:
		return t.TypePointer
	case task.EntityPointer:
		return t.EntityPointer
	default:
		return nil
	}
}

// NewTargets shifts every decode-aligned field left by one position and flattens it.
// entity is the reconstructed entity target for the batch.
func NewTargets(batch dataset.Batch, entity tensor.Ints) Targets {
	return Targets{
		LogicalForm:      batch.LogicalForm.DropFirst().Flatten(),
		PredicatePointer: batch.PredicatePointer.DropFirst().Flatten(),
		TypePointer:      batch.TypePointer.DropFirst().Flatten(),
		EntityPointer:    entity.DropFirst().Flatten(),
	}
}

// Breakdown is the scalar loss plus the per-stream losses it was built from.
type Breakdown struct {
	Total   float64
	PerTask map[task.Task]float64
}

// Criterion turns model outputs and targets into a loss.
type Criterion interface {
	Compute(out model.Output, targets Targets) (Breakdown, error)
}

// SingleTaskLoss is the mean token-level cross-entropy of one stream.
type SingleTaskLoss struct {
	Task        task.Task
	IgnoreIndex int
}

// Compute evaluates the loss on the bound stream.
func (l SingleTaskLoss) Compute(out model.Output, targets Targets) (Breakdown, error) {
	value, err := l.Loss(out.ForTask(l.Task), targets.ForTask(l.Task))
	if err != nil {
		return Breakdown{}, err
	}
	return Breakdown{Total: value, PerTask: map[task.Task]float64{l.Task: value}}, nil
}

// Loss averages -log softmax(logits[i])[targets[i]] over rows whose target is not IgnoreIndex.
// It returns 0 when every row is ignored.
func (l SingleTaskLoss) Loss(logits *mat.Dense, targets []int) (float64, error) {
	if logits == nil {
		return 0, &ShapeMismatchError{Task: l.Task, Reason: "no logits"}
	}
	rows, classes := logits.Dims()
	if rows != len(targets) {
		return 0, &ShapeMismatchError{
			Task:   l.Task,
			Reason: fmt.Sprintf("logits have %d rows, targets have %d", rows, len(targets)),
		}
	}
	var sum float64
	var n int
	for i, target := range targets {
		if target == l.IgnoreIndex {
			continue
		}
		if target < 0 || target >= classes {
			return 0, &ShapeMismatchError{
				Task:   l.Task,
				Reason: fmt.Sprintf("target %d at row %d outside %d classes", target, i, classes),
			}
		}
		row := logits.RawRowView(i)
		sum += floats.LogSumExp(row) - row[target]
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// MultiTaskLoss computes every stream loss and merges them through a Combiner.
type MultiTaskLoss struct {
	Streams  []SingleTaskLoss
	Combiner Combiner
}

// Compute evaluates all stream losses, including those the combiner weights at zero.
func (l MultiTaskLoss) Compute(out model.Output, targets Targets) (Breakdown, error) {
	if l.Combiner == nil {
		return Breakdown{}, fmt.Errorf("multitask loss: no combiner")
	}
	perTask := make(map[task.Task]float64, len(l.Streams))
	for _, single := range l.Streams {
		value, err := single.Loss(out.ForTask(single.Task), targets.ForTask(single.Task))
		if err != nil {
			return Breakdown{}, err
		}
		perTask[single.Task] = value
	}
	total, err := l.Combiner.Combine(perTask)
	if err != nil {
		return Breakdown{}, fmt.Errorf("multitask loss: %w", err)
	}
	return Breakdown{Total: total, PerTask: perTask}, nil
}

// New returns the criterion for t. Each stream ignores its own PAD index.
// combiner is used only for task.MultiTask.
func New(t task.Task, vocabs vocab.Set, combiner Combiner) (Criterion, error) {
	single := func(tk task.Task) SingleTaskLoss {
		return SingleTaskLoss{Task: tk, IgnoreIndex: vocabs.ForTask(tk).Pad()}
	}
	switch {
	case t.IsStream():
		return single(t), nil
	case t == task.MultiTask:
		if combiner == nil {
			return nil, fmt.Errorf("multitask loss requires a combiner")
		}
		streams := make([]SingleTaskLoss, 0, len(task.Streams))
		for _, tk := range task.Streams {
			streams = append(streams, single(tk))
		}
		return MultiTaskLoss{Streams: streams, Combiner: combiner}, nil
	default:
		return nil, fmt.Errorf("unknown task %d", int(t))
	}
}
