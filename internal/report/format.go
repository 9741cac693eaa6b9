package report

import (
	"fmt"

	"lfeval/internal/score"
)

// formatAccuracy renders a rate in [0, 1] as a percentage without the sign.
func formatAccuracy(rate float64) string {
	return fmt.Sprintf("%.2f", rate*100)
}

func formatLoss(loss *float64) string {
	if loss == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *loss)
}

// formatCell renders the accuracy of one category and task with its counts, or "-" when absent.
func formatCell(entries []score.Entry, category, taskName string) string {
	for _, e := range entries {
		if e.QuestionType == category && e.Task == taskName {
			return fmt.Sprintf("%s%% <span class=\"meta\">(%d/%d)</span>", formatAccuracy(e.Accuracy), e.Correct, e.Total)
		}
	}
	return "-"
}
