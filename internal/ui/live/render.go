package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the run header line.
func renderHeader(state State, now time.Time, noColor bool) string {
	line := "Run " + state.RunID
	if !state.StartedAt.IsZero() {
		line += " | Elapsed: " + formatDuration(now.Sub(state.StartedAt))
	}
	return stylize(line, noColor, lipgloss.Color("33"))
}

// renderPartitions renders one status line per partition.
func renderPartitions(state State, noColor bool) string {
	if len(state.Partitions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(state.Partitions))
	for _, p := range state.Partitions {
		text := p.Name + ":"
		if p.HasLoss {
			text += fmt.Sprintf(" loss %.4f", p.Loss)
		}
		if p.Total > 0 {
			text += " scored " + formatProgress(p.Scored, p.Total)
		}
		parts = append(parts, text)
	}
	return stylize(strings.Join(parts, " | "), noColor, lipgloss.Color("242"))
}

// renderPhase renders the current pass.
func renderPhase(state State, noColor bool) string {
	switch state.Phase {
	case PhaseLoss:
		line := fmt.Sprintf("Loss %s batch %s running %.4f", state.Partition, formatProgress(state.Batch, state.Batches), state.Running)
		return stylize(line, noColor, lipgloss.Color("240"))
	case PhaseScore:
		return stylize("Scoring "+state.Partition, noColor, lipgloss.Color("240"))
	case PhaseDone:
		if state.Err != nil {
			return stylize("Failed", noColor, lipgloss.Color("196"))
		}
		return stylize("Done", noColor, lipgloss.Color("42"))
	default:
		return ""
	}
}

// renderFooter renders the last event line.
func renderFooter(state State, noColor bool) string {
	if state.LastEvent == "" {
		return ""
	}
	return stylize("Last event: "+state.LastEvent, noColor, lipgloss.Color("244"))
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
