// Package predict decodes examples greedily, one output symbol per stream per step.
package predict

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"lfeval/internal/dataset"
	"lfeval/internal/model"
	"lfeval/internal/vocab"
)

// ErrFinished is returned by Step on a state that already stopped.
var ErrFinished = errors.New("decoding already finished")

// Model is what the predictor needs from a model.
type Model interface {
	model.Inference
	model.Moder
}

// Prediction holds the four decoded index streams, aligned position by position.
type Prediction struct {
	LogicalForm      []int
	PredicatePointer []int
	TypePointer      []int
	EntityPointer    []int
}

// Len returns the number of decoded positions.
func (p Prediction) Len() int { return len(p.LogicalForm) }

// Decoded is a prediction mapped back to symbols.
type Decoded struct {
	LogicalForm      []string `json:"logical_form"`
	PredicatePointer []string `json:"predicate_pointer"`
	TypePointer      []string `json:"type_pointer"`
	EntityPointer    []string `json:"entity_pointer"`
}

// Symbols maps indices back to symbols. Entity pointers past the entity vocabulary resolve
// to the input token they point at.
func (p Prediction) Symbols(vocabs vocab.Set, input []string) Decoded {
	lookup := func(v *vocab.Vocabulary, idx []int) []string {
		out := make([]string, len(idx))
		for i, x := range idx {
			out[i] = v.Symbol(x)
		}
		return out
	}
	entities := make([]string, len(p.EntityPointer))
	offset := vocabs.EntityPointer.Len()
	for i, x := range p.EntityPointer {
		switch {
		case x < offset:
			entities[i] = vocabs.EntityPointer.Symbol(x)
		case x-offset < len(input):
			entities[i] = input[x-offset]
		default:
			entities[i] = vocab.UnkToken
		}
	}
	return Decoded{
		LogicalForm:      lookup(vocabs.LogicalForm, p.LogicalForm),
		PredicatePointer: lookup(vocabs.PredicatePointer, p.PredicatePointer),
		TypePointer:      lookup(vocabs.TypePointer, p.TypePointer),
		EntityPointer:    entities,
	}
}

// Emission is the arg-max of every stream at one step.
type Emission struct {
	LogicalForm      int
	PredicatePointer int
	TypePointer      int
	EntityPointer    int
	// End is set when the logical-form symbol was the end marker; the emission is not kept.
	End bool
}

// State is an immutable decoding state. Step never modifies the state it is given.
type State struct {
	Memory    *model.Memory
	Prefix    []int
	Output    Prediction
	Done      bool
	end       int
	maxLength int
}

// Start seeds decoding with the start marker.
func Start(mem *model.Memory, start, end, maxLength int) State {
	return State{
		Memory:    mem,
		Prefix:    []int{start},
		Done:      maxLength <= 0,
		end:       end,
		maxLength: maxLength,
	}
}

// Step runs one greedy decoding step and returns the next state with what was emitted.
func Step(s State, m model.Inference) (State, Emission, error) {
	if s.Done {
		return s, Emission{}, ErrFinished
	}
	logits, err := m.Step(s.Memory, s.Prefix)
	if err != nil {
		return s, Emission{}, fmt.Errorf("decode step %d: %w", len(s.Prefix), err)
	}
	var em Emission
	for _, pick := range []struct {
		dst    *int
		name   string
		scores []float64
	}{
		{&em.LogicalForm, "logical_form", logits.LogicalForm},
		{&em.PredicatePointer, "predicate_pointer", logits.PredicatePointer},
		{&em.TypePointer, "type_pointer", logits.TypePointer},
		{&em.EntityPointer, "entity_pointer", logits.EntityPointer},
	} {
		if len(pick.scores) == 0 {
			return s, Emission{}, fmt.Errorf("decode step %d: no %s logits", len(s.Prefix), pick.name)
		}
		*pick.dst = floats.MaxIdx(pick.scores)
	}

	next := s
	next.Prefix = append(append(make([]int, 0, len(s.Prefix)+1), s.Prefix...), em.LogicalForm)
	if em.LogicalForm == s.end {
		em.End = true
		next.Done = true
		return next, em, nil
	}
	next.Output = Prediction{
		LogicalForm:      appendCopy(s.Output.LogicalForm, em.LogicalForm),
		PredicatePointer: appendCopy(s.Output.PredicatePointer, em.PredicatePointer),
		TypePointer:      appendCopy(s.Output.TypePointer, em.TypePointer),
		EntityPointer:    appendCopy(s.Output.EntityPointer, em.EntityPointer),
	}
	if next.Output.Len() >= s.maxLength {
		next.Done = true
	}
	return next, em, nil
}

func appendCopy(xs []int, x int) []int {
	return append(append(make([]int, 0, len(xs)+1), xs...), x)
}

// Predictor decodes whole examples.
type Predictor struct {
	model     Model
	vocabs    vocab.Set
	maxLength int
}

// New returns a predictor that emits at most maxLength positions per example.
func New(m Model, vocabs vocab.Set, maxLength int) (*Predictor, error) {
	if m == nil {
		return nil, fmt.Errorf("predictor: model is nil")
	}
	if maxLength <= 0 {
		return nil, fmt.Errorf("predictor: max length must be positive, got %d", maxLength)
	}
	return &Predictor{model: m, vocabs: vocabs, maxLength: maxLength}, nil
}

// Predict decodes one example in eval mode; the previous mode is restored on return.
func (p *Predictor) Predict(example dataset.Example) (Prediction, error) {
	restore := model.EvalMode(p.model)
	defer restore()

	input := p.vocabs.Input.Numericalize(example.Input)
	entity := p.vocabs.EntityPointer.Numericalize(example.EntityPointer)
	mem, err := p.model.Encode(input, entity)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict %q: %w", example.ID, err)
	}
	lf := p.vocabs.LogicalForm
	state := Start(mem, lf.Start(), lf.End(), p.maxLength)
	for !state.Done {
		state, _, err = Step(state, p.model)
		if err != nil {
			return Prediction{}, fmt.Errorf("predict %q: %w", example.ID, err)
		}
	}
	return state.Output, nil
}
