package live

import "lfeval/internal/score"

// EventKind identifies the type of live UI event.
type EventKind int

const (
	// EventRunStart signals the start of a run.
	EventRunStart EventKind = iota
	// EventLossBatch reports a finished loss batch.
	EventLossBatch
	// EventLossDone delivers the final loss of a partition.
	EventLossDone
	// EventScoreStart signals the start of a scoring pass.
	EventScoreStart
	// EventExample delivers one scored example.
	EventExample
	// EventRunEnd signals run completion.
	EventRunEnd
)

// Event carries a UI update payload.
type Event struct {
	Kind       EventKind
	RunID      string
	Partitions []string
	Partition  string
	Batch      int
	Batches    int
	Loss       float64
	Examples   int
	Progress   score.Progress
	Err        error
}
