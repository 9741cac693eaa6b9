package dataset_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lfeval/internal/dataset"
	"lfeval/internal/tensor"
	"lfeval/internal/testutil"
)

// TestNewBatchPadsDecodeAlignedFields verifies wrapping markers and shared time dimension.
func TestNewBatchPadsDecodeAlignedFields(t *testing.T) {
	vocabs := testutil.Vocabs(t)
	long := testutil.Example("a", "Simple Question (Direct)")
	short := testutil.Example("b", "Clarification")
	short.LogicalForm = []string{"count"}
	short.PredicatePointer = []string{"NA"}
	short.TypePointer = []string{"NA"}
	short.EntityPointer = []string{"NA"}
	short.Input = []string{"who", "?"}

	batch, err := dataset.NewBatch([]dataset.Example{long, short}, vocabs)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Size())

	// [START] find relation entity [END]
	assert.Equal(t, []int{2, 4, 8, 7, 3}, batch.LogicalForm[0])
	// [START] count [END] [PAD] [PAD]
	assert.Equal(t, []int{2, 5, 3, 0, 0}, batch.LogicalForm[1])
	assert.Equal(t, []int{2, 2, 3, 2, 2}, batch.PredicatePointer[0])
	assert.Equal(t, []int{2, 2, 2, 0, 0}, batch.TypePointer[1])
	// "france" is not an entity vocabulary symbol, so it maps to [UNK].
	assert.Equal(t, []int{2, 2, 2, 1, 2}, batch.EntityPointer[0])
	assert.Equal(t, []int{2, 9, 0, 0, 0, 0, 0}, batch.Input[1])

	for _, field := range []tensor.Ints{batch.LogicalForm, batch.PredicatePointer, batch.TypePointer, batch.EntityPointer} {
		_, cols := field.Shape()
		assert.Equal(t, 5, cols)
	}
}

// TestNewBatchRejectsMisalignedStreams verifies pointer streams must match the logical form.
func TestNewBatchRejectsMisalignedStreams(t *testing.T) {
	example := testutil.Example("a", "Clarification")
	example.TypePointer = example.TypePointer[:1]
	_, err := dataset.NewBatch([]dataset.Example{example}, testutil.Vocabs(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type_pointer has 1 symbols")
}

// TestBucketIteratorGroupsByInputLength verifies sorted, complete, ordered batches.
func TestBucketIteratorGroupsByInputLength(t *testing.T) {
	vocabs := testutil.Vocabs(t)
	var examples []dataset.Example
	for i, length := range []int{5, 1, 3, 2, 4} {
		ex := testutil.Example(string(rune('a'+i)), "Clarification")
		ex.Input = ex.Input[:length]
		examples = append(examples, ex)
	}
	it, err := dataset.NewBucketIterator(examples, vocabs, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, it.Len())

	var ids []string
	var sizes []int
	for {
		batch, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		ids = append(ids, batch.IDs...)
		sizes = append(sizes, batch.Size())
	}
	assert.Equal(t, []string{"b", "d", "c", "e", "a"}, ids)
	assert.Equal(t, []int{2, 2, 1}, sizes)

	_, err = dataset.NewBucketIterator(examples, vocabs, 0)
	assert.Error(t, err)
}

// TestHelperStoreLookup verifies missing ids surface as AlignmentError.
func TestHelperStoreLookup(t *testing.T) {
	store := testutil.HelperStore(t, "a", "b")
	record, err := store.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, 5, record.DecodeLength)

	_, err = store.Lookup("zzz")
	var alignErr *dataset.AlignmentError
	require.ErrorAs(t, err, &alignErr)
	assert.Equal(t, "zzz", alignErr.ExampleID)

	_, err = dataset.NewHelperStore([]dataset.HelperRecord{{ID: "x"}, {ID: "x"}})
	assert.Error(t, err)
}

// TestLoadPartitionFormats verifies JSONL examples and JSON helpers load together.
func TestLoadPartitionFormats(t *testing.T) {
	dir := t.TempDir()
	examplesPath := filepath.Join(dir, "test.jsonl")
	helpersPath := filepath.Join(dir, "test_helper.json")
	examples := `{"id":"d1-0","question_type":"Simple Question (Direct)","input":["who","?"],"logical_form":["find"],"predicate_pointer":["P6"],"type_pointer":["NA"],"entity_pointer":["NA"]}

{"id":"d1-1","question_type":"Clarification","input":["who"]}
`
	helpers := `{"records":[{"id":"d1-0","input_length":2,"decode_length":3,"mentions":{"1":0}},{"id":"d1-1","input_length":1,"decode_length":2}]}`
	require.NoError(t, os.WriteFile(examplesPath, []byte(examples), 0o644))
	require.NoError(t, os.WriteFile(helpersPath, []byte(helpers), 0o644))

	partition, err := dataset.LoadPartition("test", examplesPath, helpersPath)
	require.NoError(t, err)
	assert.Len(t, partition.Examples, 2)
	record, err := partition.Helpers.Lookup("d1-0")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 0}, record.Mentions)
}

// TestCheckAlignedRejectsLengthMismatch verifies helper lengths must agree with their example.
func TestCheckAlignedRejectsLengthMismatch(t *testing.T) {
	example := testutil.Example("a", "Clarification")
	cases := map[string]func(*dataset.HelperRecord){
		"decode length": func(r *dataset.HelperRecord) { r.DecodeLength = len(example.LogicalForm) },
		"input length":  func(r *dataset.HelperRecord) { r.InputLength = len(example.Input) + 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			record := testutil.Helper("a")
			mutate(&record)
			store, err := dataset.NewHelperStore([]dataset.HelperRecord{record})
			require.NoError(t, err)
			err = store.CheckAligned([]dataset.Example{example})
			var alignErr *dataset.AlignmentError
			require.ErrorAs(t, err, &alignErr)
			assert.Equal(t, "a", alignErr.ExampleID)
			assert.Contains(t, alignErr.Error(), name)
		})
	}

	store := testutil.HelperStore(t, "a")
	assert.NoError(t, store.CheckAligned([]dataset.Example{example, testutil.Example("unlisted", "Clarification")}))
	var nilStore *dataset.HelperStore
	assert.NoError(t, nilStore.CheckAligned([]dataset.Example{example}))
}

// TestLoadPartitionRejectsMisalignedHelpers verifies a partition with a stale helper file fails to load.
func TestLoadPartitionRejectsMisalignedHelpers(t *testing.T) {
	dir := t.TempDir()
	examplesPath := filepath.Join(dir, "test.jsonl")
	helpersPath := filepath.Join(dir, "test_helper.json")
	examples := `{"id":"d1-0","question_type":"Clarification","input":["who","?"],"logical_form":["find","relation","entity"]}`
	helpers := `{"records":[{"id":"d1-0","input_length":2,"decode_length":3}]}`
	require.NoError(t, os.WriteFile(examplesPath, []byte(examples), 0o644))
	require.NoError(t, os.WriteFile(helpersPath, []byte(helpers), 0o644))

	_, err := dataset.LoadPartition("test", examplesPath, helpersPath)
	var alignErr *dataset.AlignmentError
	require.ErrorAs(t, err, &alignErr)
	assert.Equal(t, "d1-0", alignErr.ExampleID)
	assert.Contains(t, err.Error(), "partition test")
}

// TestLoadExamplesValidation verifies duplicate ids and missing categories are reported together.
func TestLoadExamplesValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "val.yml")
	payload := `examples:
  - id: a
    question_type: Clarification
    input: [who]
  - id: a
    input: []
`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))
	_, err := dataset.LoadExamples(path)
	var validation *dataset.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Len(t, validation.Issues, 3)
}
