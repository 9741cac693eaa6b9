package score

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lfeval/internal/dataset"
	"lfeval/internal/predict"
	"lfeval/internal/task"
	"lfeval/internal/testutil"
)

// The first input token decides the script: "usa" decodes a wrong logical form.
var (
	correctSteps = []testutil.Emit{
		{LogicalForm: 4, PredicatePointer: 2, TypePointer: 3, EntityPointer: 2},
		{LogicalForm: 8, PredicatePointer: 3, TypePointer: 2, EntityPointer: 2},
		{LogicalForm: 7, PredicatePointer: 2, TypePointer: 2, EntityPointer: 3 + 5},
	}
	wrongSteps = []testutil.Emit{
		{LogicalForm: 5, PredicatePointer: 2, TypePointer: 3, EntityPointer: 2},
	}
)

func newPredictor(t *testing.T) (*predict.Predictor, *testutil.StubModel) {
	t.Helper()
	vocabs := testutil.Vocabs(t)
	m := testutil.NewStubModel(vocabs)
	usa := vocabs.Input.Index("usa")
	m.Script = func(input []int, step int) testutil.Emit {
		steps := correctSteps
		if input[0] == usa {
			steps = wrongSteps
		}
		if step < len(steps) {
			return steps[step]
		}
		return testutil.Emit{LogicalForm: vocabs.LogicalForm.End()}
	}
	p, err := predict.New(m, vocabs, 20)
	require.NoError(t, err)
	return p, m
}

func wrongExample(id, qtype string) dataset.Example {
	ex := testutil.Example(id, qtype)
	ex.Input = append([]string{"usa"}, ex.Input[1:]...)
	return ex
}

type recordingObserver struct{ seen []Progress }

func (o *recordingObserver) OnExampleScored(p Progress) { o.seen = append(o.seen, p) }

// TestDataScoreAccuracyPerCategory verifies M/N accuracies and that empty categories are absent.
func TestDataScoreAccuracyPerCategory(t *testing.T) {
	p, _ := newPredictor(t)
	examples := []dataset.Example{
		testutil.Example("c1", "Clarification"),
		wrongExample("c2", "Clarification"),
		testutil.Example("c3", "Clarification"),
		wrongExample("s1", "Simple Question (Direct)"),
	}
	scorer, err := New(testutil.Vocabs(t), task.Streams)
	require.NoError(t, err)
	observer := &recordingObserver{}
	scorer.SetObserver(observer)

	require.NoError(t, scorer.DataScore(context.Background(), examples, testutil.HelperStore(t, "c1", "c2", "c3", "s1"), p))
	table, err := scorer.Results()
	require.NoError(t, err)

	assert.Equal(t, []string{"Clarification", "Simple Question (Direct)"}, table.Categories())
	lf, ok := table.Lookup("Clarification", task.LogicalForm)
	require.True(t, ok)
	assert.Equal(t, 2, lf.Correct)
	assert.Equal(t, 3, lf.Total)
	assert.InDelta(t, 2.0/3.0, lf.Accuracy, 1e-12)

	simple, ok := table.Lookup("Simple Question (Direct)", task.LogicalForm)
	require.True(t, ok)
	assert.Zero(t, simple.Accuracy)
	assert.Equal(t, 1, simple.Total)

	_, ok = table.Lookup("Comparative", task.LogicalForm)
	assert.False(t, ok)
	assert.Len(t, table.Entries, 8)
	assert.Len(t, observer.seen, 4)
	assert.Equal(t, 3, observer.seen[3].Index)
	assert.False(t, observer.seen[1].Correct[task.LogicalForm])

	overall := table.Overall()
	require.Len(t, overall, 4)
	assert.Equal(t, Entry{QuestionType: OverallCategory, Task: "logical_form", Correct: 2, Total: 4, Accuracy: 0.5}, overall[0])
}

// TestDataScoreEntityUsesHelperGold verifies the entity gold comes from helper alignment.
func TestDataScoreEntityUsesHelperGold(t *testing.T) {
	p, _ := newPredictor(t)
	vocabs := testutil.Vocabs(t)
	shifted := testutil.Helper("e1")
	shifted.Mentions = map[int]int{3: 4}
	helpers, err := dataset.NewHelperStore([]dataset.HelperRecord{testutil.Helper("e0"), shifted})
	require.NoError(t, err)

	scorer, err := New(vocabs, []task.Task{task.EntityPointer})
	require.NoError(t, err)
	examples := []dataset.Example{testutil.Example("e0", "Clarification"), testutil.Example("e1", "Clarification")}
	require.NoError(t, scorer.DataScore(context.Background(), examples, helpers, p))
	table, err := scorer.Results()
	require.NoError(t, err)
	assert.Equal(t, []Entry{{QuestionType: "Clarification", Task: "entity_pointer", Correct: 1, Total: 2, Accuracy: 0.5}}, table.Entries)
}

// TestDataScoreTaskSubset verifies unscored tasks need no gold.
func TestDataScoreTaskSubset(t *testing.T) {
	p, _ := newPredictor(t)
	example := testutil.Example("a", "Clarification")
	example.TypePointer = nil
	scorer, err := New(testutil.Vocabs(t), []task.Task{task.PredicatePointer, task.LogicalForm})
	require.NoError(t, err)

	// No helper store: the entity stream is not scored, so none is needed.
	require.NoError(t, scorer.DataScore(context.Background(), []dataset.Example{example}, nil, p))
	table, err := scorer.Results()
	require.NoError(t, err)
	assert.Equal(t, []string{"logical_form", "predicate_pointer"}, table.Tasks)
	assert.Len(t, table.Entries, 2)
}

// TestDataScoreMissingGold verifies absent gold streams and helper records are fatal.
func TestDataScoreMissingGold(t *testing.T) {
	p, m := newPredictor(t)
	vocabs := testutil.Vocabs(t)
	example := testutil.Example("a", "Clarification")
	example.PredicatePointer = nil

	scorer, err := New(vocabs, task.Streams)
	require.NoError(t, err)
	err = scorer.DataScore(context.Background(), []dataset.Example{example}, testutil.HelperStore(t, "a"), p)
	var missing *MissingGoldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, task.PredicatePointer, missing.Task)
	assert.Empty(t, m.StepModes)

	_, err = scorer.Results()
	assert.ErrorIs(t, err, ErrNotFinalized)

	err = scorer.DataScore(context.Background(), []dataset.Example{testutil.Example("b", "Clarification")}, testutil.HelperStore(t, "a"), p)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, task.EntityPointer, missing.Task)
	var alignErr *dataset.AlignmentError
	assert.ErrorAs(t, err, &alignErr)
}

// TestResultsRequireFinishedPass verifies results are unavailable before scoring.
func TestResultsRequireFinishedPass(t *testing.T) {
	scorer, err := New(testutil.Vocabs(t), task.Streams)
	require.NoError(t, err)
	_, err = scorer.Results()
	assert.ErrorIs(t, err, ErrNotFinalized)
	assert.ErrorIs(t, scorer.WriteResults(filepath.Join(t.TempDir(), "r.json")), ErrNotFinalized)

	p, _ := newPredictor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = scorer.DataScore(ctx, []dataset.Example{testutil.Example("a", "x")}, testutil.HelperStore(t, "a"), p)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestWriteResultsIsDeterministic verifies repeated writes are byte-identical and reload cleanly.
func TestWriteResultsIsDeterministic(t *testing.T) {
	p, _ := newPredictor(t)
	examples := []dataset.Example{
		wrongExample("z", "Verification (Boolean)"),
		testutil.Example("a", "Clarification"),
		testutil.Example("m", "Logical Reasoning (All)"),
	}
	scorer, err := New(testutil.Vocabs(t), task.Streams)
	require.NoError(t, err)
	require.NoError(t, scorer.DataScore(context.Background(), examples, testutil.HelperStore(t, "z", "a", "m"), p))

	dir := t.TempDir()
	first, second := filepath.Join(dir, "first.json"), filepath.Join(dir, "second.json")
	require.NoError(t, scorer.WriteResults(first))
	require.NoError(t, scorer.WriteResults(second))
	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	loaded, err := LoadTable(first)
	require.NoError(t, err)
	table, err := scorer.Results()
	require.NoError(t, err)
	assert.Equal(t, table, loaded)
	assert.Equal(t, []string{"Clarification", "Logical Reasoning (All)", "Verification (Boolean)"}, loaded.Categories())
	assert.Equal(t, "logical_form", loaded.Entries[0].Task)
	assert.Equal(t, "entity_pointer", loaded.Entries[3].Task)
}

// TestTrimPadDropsTrailingPadding verifies only trailing padding is removed from gold.
func TestTrimPadDropsTrailingPadding(t *testing.T) {
	assert.Equal(t, []int{4, 0, 8}, trimPad([]int{4, 0, 8, 0, 0}, 0))
	assert.Empty(t, trimPad([]int{0}, 0))
	assert.Empty(t, trimPad(nil, 0))
}

// TestDataScorePadInPredictionIsMismatch verifies a decoded PAD is not skipped before comparison.
func TestDataScorePadInPredictionIsMismatch(t *testing.T) {
	p, m := newPredictor(t)
	vocabs := testutil.Vocabs(t)
	padded := []testutil.Emit{
		{LogicalForm: 4, PredicatePointer: 2, TypePointer: 2, EntityPointer: 2},
		{LogicalForm: vocabs.LogicalForm.Pad(), PredicatePointer: 2, TypePointer: 2, EntityPointer: 2},
		{LogicalForm: 8, PredicatePointer: 2, TypePointer: 2, EntityPointer: 2},
		{LogicalForm: 7, PredicatePointer: 2, TypePointer: 2, EntityPointer: 2},
	}
	m.Script = func(_ []int, step int) testutil.Emit {
		if step < len(padded) {
			return padded[step]
		}
		return testutil.Emit{LogicalForm: vocabs.LogicalForm.End()}
	}

	scorer, err := New(vocabs, []task.Task{task.LogicalForm})
	require.NoError(t, err)
	require.NoError(t, scorer.DataScore(context.Background(), []dataset.Example{testutil.Example("a", "Clarification")}, nil, p))
	table, err := scorer.Results()
	require.NoError(t, err)
	lf, ok := table.Lookup("Clarification", task.LogicalForm)
	require.True(t, ok)
	assert.Zero(t, lf.Correct)
	assert.Equal(t, 1, lf.Total)
}

// TestDataScoreRejectsMisalignedHelper verifies helper lengths are checked before decoding.
func TestDataScoreRejectsMisalignedHelper(t *testing.T) {
	p, m := newPredictor(t)
	short := testutil.Helper("a")
	short.DecodeLength = 3
	helpers, err := dataset.NewHelperStore([]dataset.HelperRecord{short})
	require.NoError(t, err)

	scorer, err := New(testutil.Vocabs(t), task.Streams)
	require.NoError(t, err)
	err = scorer.DataScore(context.Background(), []dataset.Example{testutil.Example("a", "Clarification")}, helpers, p)
	var alignErr *dataset.AlignmentError
	require.ErrorAs(t, err, &alignErr)
	assert.Equal(t, "a", alignErr.ExampleID)
	assert.Empty(t, m.StepModes)
}

// TestDataScoreRejectsUnknownGoldSymbol verifies an out-of-vocabulary gold symbol is fatal.
func TestDataScoreRejectsUnknownGoldSymbol(t *testing.T) {
	p, _ := newPredictor(t)
	example := testutil.Example("a", "Clarification")
	example.LogicalForm = []string{"find", "relation", "no_such_action"}

	scorer, err := New(testutil.Vocabs(t), []task.Task{task.LogicalForm})
	require.NoError(t, err)
	err = scorer.DataScore(context.Background(), []dataset.Example{example}, nil, p)
	var missing *MissingGoldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, task.LogicalForm, missing.Task)
	assert.Contains(t, err.Error(), "no_such_action")
}

// TestWritePredictionsDecodesEachExample verifies one decoded line per example in scoring order.
func TestWritePredictionsDecodesEachExample(t *testing.T) {
	scorer, err := New(testutil.Vocabs(t), task.Streams)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "results", "test.predictions.jsonl")
	assert.ErrorIs(t, scorer.WritePredictions(path), ErrNotFinalized)

	p, _ := newPredictor(t)
	examples := []dataset.Example{testutil.Example("a", "Clarification"), wrongExample("b", "Comparative")}
	require.NoError(t, scorer.DataScore(context.Background(), examples, testutil.HelperStore(t, "a", "b"), p))
	require.NoError(t, scorer.WritePredictions(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first, second PredictionRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "a", first.ExampleID)
	assert.Equal(t, []string{"find", "relation", "entity"}, first.Predicted.LogicalForm)
	assert.Equal(t, "france", first.Predicted.EntityPointer[2])
	assert.True(t, first.Correct["logical_form"])
	assert.True(t, first.Correct["entity_pointer"])

	assert.Equal(t, "Comparative", second.QuestionType)
	assert.Equal(t, []string{"count"}, second.Predicted.LogicalForm)
	assert.False(t, second.Correct["logical_form"])
}

// TestNewRejectsBadTasks verifies task-list validation.
func TestNewRejectsBadTasks(t *testing.T) {
	vocabs := testutil.Vocabs(t)
	for _, tasks := range [][]task.Task{nil, {task.MultiTask}, {task.LogicalForm, task.LogicalForm}} {
		_, err := New(vocabs, tasks)
		assert.Error(t, err)
	}
}
