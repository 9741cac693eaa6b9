package live

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"lfeval/internal/task"
)

// fmtInt converts an int to string.
func fmtInt(value int) string {
	return strconv.Itoa(value)
}

// formatAccuracy renders a running accuracy cell.
func formatAccuracy(tally Tally, known bool) string {
	if !known || tally.Total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.4f", tally.Accuracy())
}

// formatTaskHeader shortens stream names for column headers.
func formatTaskHeader(tk task.Task) string {
	return strings.TrimSuffix(tk.String(), "_pointer")
}

// formatCategory truncates long question types for display.
func formatCategory(text string) string {
	const limit = 40
	if len(text) <= limit {
		return text
	}
	return text[:limit-3] + "..."
}

// formatProgress renders "n/total" with a percentage.
func formatProgress(done, total int) string {
	if total <= 0 {
		return fmtInt(done)
	}
	return fmt.Sprintf("%d/%d (%d%%)", done, total, done*100/total)
}

// formatDuration renders a rounded duration for display.
func formatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	return duration.Round(100 * time.Millisecond).String()
}

// accuracyStyle colors an accuracy cell by value.
func accuracyStyle(tally Tally) lipgloss.Style {
	color := lipgloss.Color("244")
	switch acc := tally.Accuracy(); {
	case tally.Total == 0:
	case acc >= 0.9:
		color = lipgloss.Color("42")
	case acc >= 0.5:
		color = lipgloss.Color("220")
	default:
		color = lipgloss.Color("196")
	}
	return lipgloss.NewStyle().Foreground(color)
}
