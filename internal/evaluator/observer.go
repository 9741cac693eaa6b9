package evaluator

import "lfeval/internal/score"

// Observer receives run progress. Calls arrive on the goroutine running Evaluator.Run.
type Observer interface {
	OnRunStart(runID string, partitions []string)
	OnLossBatch(partition string, batch, batches int, average float64)
	OnLossDone(partition string, loss float64)
	OnScoreStart(partition string, examples int)
	OnExampleScored(partition string, progress score.Progress)
	OnRunEnd(summary Summary, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnRunStart(string, []string)            {}
func (NopObserver) OnLossBatch(string, int, int, float64)  {}
func (NopObserver) OnLossDone(string, float64)             {}
func (NopObserver) OnScoreStart(string, int)               {}
func (NopObserver) OnExampleScored(string, score.Progress) {}
func (NopObserver) OnRunEnd(Summary, error)                {}

// scoreObserver tags scorer progress with its partition.
type scoreObserver struct {
	partition string
	observer  Observer
}

func (o scoreObserver) OnExampleScored(p score.Progress) {
	o.observer.OnExampleScored(o.partition, p)
}
