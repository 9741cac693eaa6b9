package score

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"lfeval/internal/task"
)

// OverallCategory labels accuracies aggregated across every question type.
const OverallCategory = "Overall"

// Entry is the accuracy of one task within one question type.
type Entry struct {
	QuestionType string  `json:"question_type"`
	Task         string  `json:"task"`
	Correct      int     `json:"correct"`
	Total        int     `json:"total"`
	Accuracy     float64 `json:"accuracy"`
}

// Table is the finalized result of a scoring pass.
// Entries are sorted by question type and then by task order.
type Table struct {
	Tasks   []string `json:"tasks"`
	Entries []Entry  `json:"results"`
}

// Categories returns the question types present in the table.
func (t Table) Categories() []string {
	var out []string
	for _, e := range t.Entries {
		if len(out) == 0 || out[len(out)-1] != e.QuestionType {
			out = append(out, e.QuestionType)
		}
	}
	return out
}

// Lookup returns the entry for a question type and task.
func (t Table) Lookup(questionType string, tk task.Task) (Entry, bool) {
	for _, e := range t.Entries {
		if e.QuestionType == questionType && e.Task == tk.String() {
			return e, true
		}
	}
	return Entry{}, false
}

// Overall sums every category per task.
func (t Table) Overall() []Entry {
	byTask := map[string]*Entry{}
	for _, e := range t.Entries {
		agg, ok := byTask[e.Task]
		if !ok {
			agg = &Entry{QuestionType: OverallCategory, Task: e.Task}
			byTask[e.Task] = agg
		}
		agg.Correct += e.Correct
		agg.Total += e.Total
	}
	out := make([]Entry, 0, len(t.Tasks))
	for _, name := range t.Tasks {
		agg, ok := byTask[name]
		if !ok {
			continue
		}
		agg.Accuracy = accuracy(agg.Correct, agg.Total)
		out = append(out, *agg)
	}
	return out
}

type tally struct{ correct, total int }

func aggregate(tasks []task.Task, records []Record) Table {
	counts := map[string]map[task.Task]*tally{}
	for _, r := range records {
		byTask, ok := counts[r.QuestionType]
		if !ok {
			byTask = map[task.Task]*tally{}
			counts[r.QuestionType] = byTask
		}
		c, ok := byTask[r.Task]
		if !ok {
			c = &tally{}
			byTask[r.Task] = c
		}
		c.total++
		if r.Correct {
			c.correct++
		}
	}
	categories := make([]string, 0, len(counts))
	for category := range counts {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	table := Table{Tasks: make([]string, 0, len(tasks))}
	for _, tk := range tasks {
		table.Tasks = append(table.Tasks, tk.String())
	}
	for _, category := range categories {
		for _, tk := range tasks {
			c, ok := counts[category][tk]
			if !ok || c.total == 0 {
				continue
			}
			table.Entries = append(table.Entries, Entry{
				QuestionType: category,
				Task:         tk.String(),
				Correct:      c.correct,
				Total:        c.total,
				Accuracy:     accuracy(c.correct, c.total),
			})
		}
	}
	return table
}

func accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// WriteTable writes a table as indented JSON through a temporary file and a rename.
func WriteTable(path string, table Table) error {
	payload, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	return writeAtomic(path, append(payload, '\n'))
}

// writeAtomic writes through a temporary file and a rename.
func writeAtomic(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadTable reads a results file written by WriteTable.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read results: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	var table Table
	if err := decoder.Decode(&table); err != nil {
		return Table{}, fmt.Errorf("parse results: %w", err)
	}
	for _, name := range table.Tasks {
		if _, err := task.Parse(name); err != nil {
			return Table{}, fmt.Errorf("parse results: %w", err)
		}
	}
	return table, nil
}
