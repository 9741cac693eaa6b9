package live

import (
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"lfeval/internal/evaluator"
	"lfeval/internal/score"
)

const eventBuffer = 256

// Controller owns the Bubble Tea program and feeds it evaluator events.
// A nil *Controller is a valid no-op observer.
type Controller struct {
	mu     sync.Mutex
	closed bool
	events chan Event
	done   chan struct{}
}

// Start runs the live view on out until Close or the end of the run.
func Start(out io.Writer, opts Options) *Controller {
	c := &Controller{events: make(chan Event, eventBuffer), done: make(chan struct{})}
	program := tea.NewProgram(NewModel(c.events, opts), tea.WithOutput(out), tea.WithAltScreen())
	go func() {
		defer close(c.done)
		_, _ = program.Run()
	}()
	return c
}

func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// Wait blocks until the program has restored the terminal.
func (c *Controller) Wait() {
	if c != nil {
		<-c.done
	}
}

func (c *Controller) OnRunStart(runID string, partitions []string) {
	c.send(Event{Kind: EventRunStart, RunID: runID, Partitions: partitions}, false)
}

func (c *Controller) OnLossBatch(partition string, batch, batches int, average float64) {
	c.send(Event{Kind: EventLossBatch, Partition: partition, Batch: batch, Batches: batches, Loss: average}, false)
}

func (c *Controller) OnLossDone(partition string, loss float64) {
	c.send(Event{Kind: EventLossDone, Partition: partition, Loss: loss}, true)
}

func (c *Controller) OnScoreStart(partition string, examples int) {
	c.send(Event{Kind: EventScoreStart, Partition: partition, Examples: examples}, true)
}

func (c *Controller) OnExampleScored(partition string, progress score.Progress) {
	c.send(Event{Kind: EventExample, Partition: partition, Progress: progress}, false)
}

func (c *Controller) OnRunEnd(_ evaluator.Summary, err error) {
	c.send(Event{Kind: EventRunEnd, Err: err}, true)
	c.Close()
}

// send drops progress events when the view falls behind; milestone events
// wait for room unless the program has already exited.
func (c *Controller) send(event Event, milestone bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if !milestone {
		select {
		case c.events <- event:
		default:
		}
		return
	}
	select {
	case c.events <- event:
	case <-c.done:
	}
}

var _ evaluator.Observer = (*Controller)(nil)
