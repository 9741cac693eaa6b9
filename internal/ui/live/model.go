package live

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const defaultRefresh = 200 * time.Millisecond

// Options configures the live view.
type Options struct {
	NoColor bool
	// Refresh is how often elapsed time is redrawn. Zero means 200ms.
	Refresh time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Model is the Bubble Tea model behind the live evaluation view.
type Model struct {
	opts   Options
	state  State
	grid   table.Model
	events <-chan Event
	now    time.Time
	width  int
}

type (
	eventMsg   struct{ event Event }
	refreshMsg time.Time
)

func NewModel(events <-chan Event, opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = defaultRefresh
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	grid := table.New(table.WithColumns(columnsForTasks(nil, 0)), table.WithFocused(false))
	grid.SetStyles(tableStyles(opts.NoColor))
	return Model{opts: opts, grid: grid, events: events, now: opts.Clock()}
}

func (m Model) State() State { return m.state }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.next(), m.refresh())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m.apply(msg.event), m.next()
	case refreshMsg:
		m.now = time.Time(msg)
		return m, m.refresh()
	case tea.WindowSizeMsg:
		return m.resize(msg.Width, msg.Height), nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		renderHeader(m.state, m.now, m.opts.NoColor),
		renderPartitions(m.state, m.opts.NoColor),
		renderPhase(m.state, m.opts.NoColor),
		m.grid.View(),
		renderFooter(m.state, m.opts.NoColor),
	)
}

// next waits for one event; a closed channel ends the program.
func (m Model) next() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return tea.Quit()
		}
		return eventMsg{event: event}
	}
}

func (m Model) refresh() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m Model) resize(width, height int) Model {
	m.width = width
	m.grid.SetWidth(width)
	m.grid.SetHeight(max(height-5, 1))
	m.grid.SetColumns(columnsForTasks(m.state.Tasks, width))
	return m
}

func (m Model) apply(event Event) Model {
	if event.Kind == EventRunStart && m.state.StartedAt.IsZero() {
		m.state.StartedAt = m.opts.Clock()
	}
	streams := len(m.state.Tasks)
	m.state = Reduce(m.state, event)
	if len(m.state.Tasks) != streams {
		// Clear rows first: bubbles/table indexes old rows by the new column count.
		m.grid.SetRows(nil)
		m.grid.SetColumns(columnsForTasks(m.state.Tasks, m.width))
	}
	m.grid.SetRows(rowsForState(m.state, m.opts.NoColor))
	return m
}
