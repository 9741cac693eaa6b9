package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lfeval/internal/dataset"
	"lfeval/internal/testutil"
)

// TestBuildResolvesMentions verifies mention, no-mention and padding positions.
func TestBuildResolvesMentions(t *testing.T) {
	vocabs := testutil.Vocabs(t)
	short := dataset.HelperRecord{ID: "b", InputLength: 2, DecodeLength: 3, Mentions: map[int]int{1: 0}}
	store, err := dataset.NewHelperStore([]dataset.HelperRecord{testutil.Helper("a"), short})
	require.NoError(t, err)

	builder := NewEntityBuilder(store, vocabs.EntityPointer)
	assert.Equal(t, 3, builder.Offset())

	targets, err := builder.Build([]string{"a", "b"}, 6)
	require.NoError(t, err)
	pad, na := vocabs.EntityPointer.Pad(), vocabs.EntityPointer.NA()
	// a: mention at position 3 -> input index 5.
	assert.Equal(t, []int{na, na, na, 3 + 5, na, pad}, targets[0])
	// b: mention at position 1 -> input index 0, decode length 3.
	assert.Equal(t, []int{na, 3 + 0, na, pad, pad, pad}, targets[1])
}

// TestBuildMissingIDIsAlignmentError verifies a missing helper record aborts target construction.
func TestBuildMissingIDIsAlignmentError(t *testing.T) {
	builder := NewEntityBuilder(testutil.HelperStore(t, "a"), testutil.Vocabs(t).EntityPointer)
	_, err := builder.Build([]string{"a", "ghost"}, 5)
	var alignErr *dataset.AlignmentError
	require.ErrorAs(t, err, &alignErr)
	assert.Equal(t, "ghost", alignErr.ExampleID)
}

// TestBuildRejectsOutOfRangeMentions verifies inconsistent helper records fail loudly.
func TestBuildRejectsOutOfRangeMentions(t *testing.T) {
	vocabs := testutil.Vocabs(t)
	cases := []dataset.HelperRecord{
		{ID: "x", InputLength: 2, DecodeLength: 4, Mentions: map[int]int{1: 2}},
		{ID: "x", InputLength: 2, DecodeLength: 4, Mentions: map[int]int{4: 0}},
		{ID: "x", InputLength: 2, DecodeLength: 9},
	}
	for _, record := range cases {
		store, err := dataset.NewHelperStore([]dataset.HelperRecord{record})
		require.NoError(t, err)
		_, err = NewEntityBuilder(store, vocabs.EntityPointer).Build([]string{"x"}, 5)
		var alignErr *dataset.AlignmentError
		assert.ErrorAs(t, err, &alignErr)
	}
}

// TestGoldDropsMarkers verifies the gold stream lines up with the logical form.
func TestGoldDropsMarkers(t *testing.T) {
	vocabs := testutil.Vocabs(t)
	builder := NewEntityBuilder(testutil.HelperStore(t, "a"), vocabs.EntityPointer)
	gold, err := builder.Gold("a")
	require.NoError(t, err)
	na := vocabs.EntityPointer.NA()
	assert.Equal(t, []int{na, na, 3 + 5}, gold)

	_, err = builder.Gold("nope")
	var alignErr *dataset.AlignmentError
	assert.ErrorAs(t, err, &alignErr)
}
