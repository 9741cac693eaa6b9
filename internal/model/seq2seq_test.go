package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"lfeval/internal/model"
	"lfeval/internal/task"
	"lfeval/internal/tensor"
	"lfeval/internal/testutil"
)

func newTestModel(t *testing.T, dropout float64) *model.Seq2Seq {
	t.Helper()
	m, err := model.NewSeq2Seq(testutil.Vocabs(t), model.Config{DModel: 8, MaxPositions: 16, Dropout: dropout, Seed: 7})
	require.NoError(t, err)
	return m
}

// TestForwardShapes verifies flattened logits and the input-sized entity pointer head.
func TestForwardShapes(t *testing.T) {
	m := newTestModel(t, 0)
	input := tensor.Ints{{2, 3, 4, 0}, {2, 9, 0, 0}}
	decoder := tensor.Ints{{2, 4, 8}, {2, 5, 3}}
	entity := tensor.Ints{{2, 2, 2}, {2, 2, 0}}

	out, err := m.Forward(input, decoder, entity)
	require.NoError(t, err)
	for _, tk := range []task.Task{task.LogicalForm, task.PredicatePointer, task.TypePointer} {
		r, _ := out.ForTask(tk).Dims()
		assert.Equal(t, 6, r, tk.String())
	}
	r, c := out.EntityPointer.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 3+4, c)
	// Padded input positions can never win the pointer arg-max.
	assert.Less(t, out.EntityPointer.At(0, 3+3), -1e8)
	assert.Nil(t, out.ForTask(task.MultiTask))
}

// TestForwardRejectsMismatchedRows verifies batch fields must agree on batch size.
func TestForwardRejectsMismatchedRows(t *testing.T) {
	m := newTestModel(t, 0)
	_, err := m.Forward(tensor.Ints{{2}}, tensor.Ints{{2}, {2}}, tensor.Ints{{2}})
	assert.Error(t, err)
	_, err = m.Forward(tensor.Ints{{2}}, tensor.Ints{{2}}, tensor.Ints{{2}, {2}})
	assert.Error(t, err)
	_, err = m.Forward(tensor.Ints{{99}}, tensor.Ints{{2}}, tensor.Ints{{2}})
	assert.Error(t, err)
}

// TestStepMatchesForward verifies incremental decoding reproduces teacher-forced logits.
func TestStepMatchesForward(t *testing.T) {
	m := newTestModel(t, 0.5)
	m.SetMode(model.Eval)
	input := []int{2, 3, 4, 5}
	prefix := []int{2, 4, 8}
	entity := []int{2, 2, 2, 1, 2}

	out, err := m.Forward(tensor.Ints{input}, tensor.Ints{prefix}, tensor.Ints{entity})
	require.NoError(t, err)
	mem, err := m.Encode(input, entity)
	require.NoError(t, err)
	step, err := m.Step(mem, prefix)
	require.NoError(t, err)

	assert.InDeltaSlice(t, out.LogicalForm.RawRowView(2), step.LogicalForm, 1e-12)
	assert.InDeltaSlice(t, out.EntityPointer.RawRowView(2), step.EntityPointer, 1e-12)
}

// TestDropoutOnlyInTrainMode verifies eval-mode outputs are deterministic and train mode is not.
func TestDropoutOnlyInTrainMode(t *testing.T) {
	m := newTestModel(t, 0.5)
	input, decoder, entity := tensor.Ints{{2, 3, 4}}, tensor.Ints{{2, 4, 8, 7}}, tensor.Ints{{2, 2, 2, 2}}

	restore := model.EvalMode(m)
	first, err := m.Forward(input, decoder, entity)
	require.NoError(t, err)
	second, err := m.Forward(input, decoder, entity)
	require.NoError(t, err)
	assert.True(t, mat.Equal(first.LogicalForm, second.LogicalForm))
	restore()
	assert.Equal(t, model.Train, m.Mode())

	third, err := m.Forward(input, decoder, entity)
	require.NoError(t, err)
	assert.False(t, mat.Equal(first.LogicalForm, third.LogicalForm))
}

// TestLoadParametersValidatesShapes verifies missing, extra and mis-shaped parameters are rejected.
func TestLoadParametersValidatesShapes(t *testing.T) {
	m := newTestModel(t, 0)
	params := m.Parameters()
	require.NoError(t, m.LoadParameters(params))

	missing := m.Parameters()
	delete(missing, model.DecoderWeight)
	assert.ErrorContains(t, m.LoadParameters(missing), "missing parameter")

	extra := m.Parameters()
	extra["decoder.bias"] = mat.NewDense(1, 1, nil)
	assert.ErrorContains(t, m.LoadParameters(extra), "unexpected parameter")

	wrong := m.Parameters()
	wrong[model.EncoderWeight] = mat.NewDense(8, 9, nil)
	assert.ErrorContains(t, m.LoadParameters(wrong), "has shape [8 9]")
}

// TestNewSeq2SeqIsSeeded verifies identical seeds yield identical parameters.
func TestNewSeq2SeqIsSeeded(t *testing.T) {
	a, b := newTestModel(t, 0), newTestModel(t, 0)
	for name, p := range a.Parameters() {
		assert.True(t, mat.Equal(p, b.Parameters()[name]), name)
	}
	_, err := model.NewSeq2Seq(testutil.Vocabs(t), model.Config{DModel: 0, MaxPositions: 4})
	assert.Error(t, err)
}
