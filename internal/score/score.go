// Package score measures exact-match accuracy of decoded streams per question category.
package score

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"

	"lfeval/internal/dataset"
	"lfeval/internal/predict"
	"lfeval/internal/target"
	"lfeval/internal/task"
	"lfeval/internal/vocab"
)

// ErrNotFinalized is returned by Results before a scoring pass completed.
var ErrNotFinalized = errors.New("results are not finalized")

// MissingGoldError reports an example without ground truth for a scored task.
type MissingGoldError struct {
	ExampleID string
	Task      task.Task
	Err       error
}

func (err *MissingGoldError) Error() string {
	msg := fmt.Sprintf("missing gold %s for example %q", err.Task, err.ExampleID)
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err *MissingGoldError) Unwrap() error { return err.Err }

// Predictor decodes one example.
type Predictor interface {
	Predict(example dataset.Example) (predict.Prediction, error)
}

// Record is the outcome of one task on one example.
type Record struct {
	ExampleID    string
	QuestionType string
	Task         task.Task
	Correct      bool
}

// Progress is reported to an Observer after each example.
type Progress struct {
	Index        int
	Total        int
	ExampleID    string
	QuestionType string
	Correct      map[task.Task]bool
}

// Observer receives scoring progress.
type Observer interface {
	OnExampleScored(p Progress)
}

// PredictionRecord is one decoded example and its outcome per scored stream.
type PredictionRecord struct {
	ExampleID    string          `json:"id"`
	QuestionType string          `json:"question_type"`
	Correct      map[string]bool `json:"correct"`
	Predicted    predict.Decoded `json:"predicted"`
}

// Scorer accumulates exact-match outcomes over a dataset pass.
type Scorer struct {
	vocabs      vocab.Set
	tasks       []task.Task
	observer    Observer
	records     []Record
	predictions []PredictionRecord
	finalized   bool
}

// New returns a scorer for the given task subset. Tasks are kept in canonical stream order.
func New(vocabs vocab.Set, tasks []task.Task) (*Scorer, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("scorer: no tasks to score")
	}
	ordered := make([]task.Task, 0, len(tasks))
	seen := map[task.Task]bool{}
	for _, tk := range tasks {
		if !tk.IsStream() {
			return nil, fmt.Errorf("scorer: %s is not a single stream", tk)
		}
		if seen[tk] {
			return nil, fmt.Errorf("scorer: duplicate task %s", tk)
		}
		seen[tk] = true
		ordered = append(ordered, tk)
	}
	sort.Slice(ordered, func(i, j int) bool { return task.Order(ordered[i]) < task.Order(ordered[j]) })
	return &Scorer{vocabs: vocabs, tasks: ordered}, nil
}

// SetObserver installs an observer; nil disables progress reporting.
func (s *Scorer) SetObserver(o Observer) { s.observer = o }

// DataScore predicts every example and records one outcome per scored task.
// Any error aborts the pass and leaves the scorer unfinalized.
func (s *Scorer) DataScore(ctx context.Context, examples []dataset.Example, helpers *dataset.HelperStore, predictor Predictor) error {
	s.records = s.records[:0]
	s.predictions = s.predictions[:0]
	s.finalized = false
	if err := helpers.CheckAligned(examples); err != nil {
		return err
	}
	entities := target.NewEntityBuilder(helpers, s.vocabs.EntityPointer)

	for i, example := range examples {
		if err := ctx.Err(); err != nil {
			return err
		}
		gold := make(map[task.Task][]int, len(s.tasks))
		for _, tk := range s.tasks {
			g, err := s.gold(example, tk, entities)
			if err != nil {
				return err
			}
			gold[tk] = g
		}
		prediction, err := predictor.Predict(example)
		if err != nil {
			return err
		}
		progress := Progress{
			Index:        i,
			Total:        len(examples),
			ExampleID:    example.ID,
			QuestionType: example.QuestionType,
			Correct:      make(map[task.Task]bool, len(s.tasks)),
		}
		decoded := PredictionRecord{
			ExampleID:    example.ID,
			QuestionType: example.QuestionType,
			Correct:      make(map[string]bool, len(s.tasks)),
			Predicted:    prediction.Symbols(s.vocabs, example.Input),
		}
		for _, tk := range s.tasks {
			correct := slices.Equal(stream(prediction, tk), trimPad(gold[tk], s.vocabs.ForTask(tk).Pad()))
			s.records = append(s.records, Record{
				ExampleID:    example.ID,
				QuestionType: example.QuestionType,
				Task:         tk,
				Correct:      correct,
			})
			progress.Correct[tk] = correct
			decoded.Correct[tk.String()] = correct
		}
		s.predictions = append(s.predictions, decoded)
		if s.observer != nil {
			s.observer.OnExampleScored(progress)
		}
	}
	s.finalized = true
	return nil
}

// Results aggregates the finished pass into a table.
func (s *Scorer) Results() (Table, error) {
	if !s.finalized {
		return Table{}, ErrNotFinalized
	}
	return aggregate(s.tasks, s.records), nil
}

// WriteResults writes the finished table to path.
func (s *Scorer) WriteResults(path string) error {
	table, err := s.Results()
	if err != nil {
		return err
	}
	return WriteTable(path, table)
}

// WritePredictions writes one JSON line per example, in scoring order.
func (s *Scorer) WritePredictions(path string) error {
	if !s.finalized {
		return ErrNotFinalized
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, record := range s.predictions {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("marshal predictions: %w", err)
		}
	}
	return writeAtomic(path, buf.Bytes())
}

func (s *Scorer) gold(example dataset.Example, tk task.Task, entities *target.EntityBuilder) ([]int, error) {
	missing := func(err error) error {
		return &MissingGoldError{ExampleID: example.ID, Task: tk, Err: err}
	}
	var symbols []string
	switch tk {
	case task.LogicalForm:
		symbols = example.LogicalForm
	case task.PredicatePointer:
		symbols = example.PredicatePointer
	case task.TypePointer:
		symbols = example.TypePointer
	case task.EntityPointer:
		g, err := entities.Gold(example.ID)
		if err != nil {
			return nil, missing(err)
		}
		return g, nil
	}
	if len(symbols) == 0 {
		return nil, missing(nil)
	}
	v := s.vocabs.ForTask(tk)
	ids := make([]int, len(symbols))
	for i, symbol := range symbols {
		idx, ok := v.Lookup(symbol)
		if !ok {
			// An UNK gold would let a predicted UNK count as correct.
			return nil, missing(fmt.Errorf("symbol %q is not in the %s vocabulary", symbol, tk))
		}
		ids[i] = idx
	}
	return ids, nil
}

func stream(p predict.Prediction, tk task.Task) []int {
	switch tk {
	case task.LogicalForm:
		return p.LogicalForm
	case task.PredicatePointer:
		return p.PredicatePointer
	case task.TypePointer:
		return p.TypePointer
	case task.EntityPointer:
		return p.EntityPointer
	default:
		return nil
	}
}

// trimPad drops trailing padding from a gold stream. The prediction is
// compared as decoded, so a PAD it emits is a mismatch.
func trimPad(xs []int, pad int) []int {
	end := len(xs)
	for end > 0 && xs[end-1] == pad {
		end--
	}
	return xs[:end]
}
