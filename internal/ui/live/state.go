package live

import (
	"time"

	"lfeval/internal/task"
)

// Phase names the pass currently running.
type Phase string

const (
	PhaseIdle  Phase = ""
	PhaseLoss  Phase = "loss"
	PhaseScore Phase = "score"
	PhaseDone  Phase = "done"
)

// Tally counts exact matches.
type Tally struct {
	Correct int
	Total   int
}

// Accuracy returns Correct/Total, or 0 for an empty tally.
func (t Tally) Accuracy() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total)
}

// CategoryRow holds running accuracies for one question type.
type CategoryRow struct {
	QuestionType string
	Examples     int
	Tasks        map[task.Task]Tally
}

// PartitionStatus tracks the passes of one partition.
type PartitionStatus struct {
	Name    string
	Loss    float64
	HasLoss bool
	Scored  int
	Total   int
}

// State captures the live UI state for an evaluation run.
type State struct {
	RunID      string
	StartedAt  time.Time
	Phase      Phase
	Partition  string
	Batch      int
	Batches    int
	Running    float64
	Partitions []PartitionStatus
	Rows       []CategoryRow
	Tasks      []task.Task
	LastEvent  string
	Err        error
}
