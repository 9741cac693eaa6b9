package testutil

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"lfeval/internal/model"
	"lfeval/internal/tensor"
	"lfeval/internal/vocab"
)

// Emit is one scripted decoding step.
type Emit struct {
	LogicalForm      int
	PredicatePointer int
	TypePointer      int
	EntityPointer    int
}

// StubModel is a model.Model whose decoding is scripted per input.
// Forward returns all-zero logits, so every stream's cross-entropy is log(classes).
type StubModel struct {
	Vocabs vocab.Set
	// Script picks the arg-max of every stream at a decoding step. A nil Script always emits [END].
	Script func(input []int, step int) Emit
	// StepErr fails Step when set.
	StepErr error

	mode      model.Mode
	StepModes []model.Mode
	Forwards  int
	Params    map[string]*mat.Dense
}

// NewStubModel returns a stub in train mode.
func NewStubModel(vocabs vocab.Set) *StubModel {
	return &StubModel{Vocabs: vocabs, mode: model.Train}
}

func (m *StubModel) Mode() model.Mode         { return m.mode }
func (m *StubModel) SetMode(mode model.Mode) { m.mode = mode }

// ParameterShapes declares a single scalar parameter.
func (m *StubModel) ParameterShapes() map[string][2]int {
	return map[string][2]int{"stub.weight": {1, 1}}
}

func (m *StubModel) LoadParameters(params map[string]*mat.Dense) error {
	m.Params = params
	return nil
}

// Encode keeps the input ids as a single hidden row.
func (m *StubModel) Encode(input []int, _ []int) (*model.Memory, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("stub: empty input")
	}
	row := make([]float64, len(input))
	for i, x := range input {
		row[i] = float64(x)
	}
	return &model.Memory{Hidden: mat.NewDense(1, len(input), row), Mask: make([]bool, 1)}, nil
}

func (m *StubModel) Step(mem *model.Memory, prefix []int) (model.StepLogits, error) {
	m.StepModes = append(m.StepModes, m.mode)
	if m.StepErr != nil {
		return model.StepLogits{}, m.StepErr
	}
	_, n := mem.Hidden.Dims()
	input := make([]int, n)
	for i := range input {
		input[i] = int(mem.Hidden.At(0, i))
	}
	emit := Emit{LogicalForm: m.Vocabs.LogicalForm.End()}
	if m.Script != nil {
		emit = m.Script(input, len(prefix)-1)
	}
	return model.StepLogits{
		LogicalForm:      oneHot(m.Vocabs.LogicalForm.Len(), emit.LogicalForm),
		PredicatePointer: oneHot(m.Vocabs.PredicatePointer.Len(), emit.PredicatePointer),
		TypePointer:      oneHot(m.Vocabs.TypePointer.Len(), emit.TypePointer),
		EntityPointer:    oneHot(m.Vocabs.EntityPointer.Len()+n, emit.EntityPointer),
	}, nil
}

func (m *StubModel) Forward(input, decoderInput, _ tensor.Ints) (model.Output, error) {
	m.Forwards++
	batch, width := input.Shape()
	_, steps := decoderInput.Shape()
	rows := batch * steps
	return model.Output{
		LogicalForm:      mat.NewDense(rows, m.Vocabs.LogicalForm.Len(), nil),
		PredicatePointer: mat.NewDense(rows, m.Vocabs.PredicatePointer.Len(), nil),
		TypePointer:      mat.NewDense(rows, m.Vocabs.TypePointer.Len(), nil),
		EntityPointer:    mat.NewDense(rows, m.Vocabs.EntityPointer.Len()+width, nil),
	}, nil
}

func oneHot(n, hot int) []float64 {
	out := make([]float64, n)
	if hot >= 0 && hot < n {
		out[hot] = 1
	}
	return out
}
