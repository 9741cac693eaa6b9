package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseRoundTrip verifies every task parses back from its name.
func TestParseRoundTrip(t *testing.T) {
	for _, tk := range append(append([]Task{}, Streams...), MultiTask) {
		parsed, err := Parse(tk.String())
		require.NoError(t, err)
		assert.Equal(t, tk, parsed)
	}
	_, err := Parse("answer")
	assert.Error(t, err)
}

// TestParseStreamsRejectsMultiTaskAndDuplicates verifies stream lists stay well formed.
func TestParseStreamsRejectsMultiTaskAndDuplicates(t *testing.T) {
	streams, err := ParseStreams([]string{"logical_form", " Type_Pointer "})
	require.NoError(t, err)
	assert.Equal(t, []Task{LogicalForm, TypePointer}, streams)

	_, err = ParseStreams([]string{"multitask"})
	assert.Error(t, err)
	_, err = ParseStreams([]string{"logical_form", "logical_form"})
	assert.Error(t, err)
}

// TestOrder verifies canonical stream ordering.
func TestOrder(t *testing.T) {
	assert.Equal(t, 0, Order(LogicalForm))
	assert.Equal(t, 3, Order(EntityPointer))
	assert.Equal(t, -1, Order(MultiTask))
}
