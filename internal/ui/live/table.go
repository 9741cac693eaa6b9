package live

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"lfeval/internal/task"
)

// tableStyles returns table styles for the UI.
func tableStyles(noColor bool) table.Styles {
	if noColor {
		return table.DefaultStyles()
	}
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(lipgloss.Color("252"))
	return styles
}

// columnsForTasks builds one accuracy column per scored stream.
func columnsForTasks(tasks []task.Task, width int) []table.Column {
	if len(tasks) == 0 {
		tasks = task.Streams
	}
	categoryWidth := 40
	if width > 0 {
		categoryWidth = max(min(width-12-len(tasks)*12, 40), 16)
	}
	columns := []table.Column{
		{Title: "Question type", Width: categoryWidth},
		{Title: "N", Width: 6},
	}
	for _, tk := range tasks {
		columns = append(columns, table.Column{Title: formatTaskHeader(tk), Width: 11})
	}
	return columns
}

// rowsForState converts UI state into table rows.
func rowsForState(state State, noColor bool) []table.Row {
	rows := make([]table.Row, 0, len(state.Rows))
	for _, category := range state.Rows {
		row := table.Row{formatCategory(category.QuestionType), fmtInt(category.Examples)}
		for _, tk := range tasksOrDefault(state.Tasks) {
			tally, ok := category.Tasks[tk]
			cell := formatAccuracy(tally, ok)
			if !noColor && ok {
				cell = accuracyStyle(tally).Render(cell)
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	return rows
}

func tasksOrDefault(tasks []task.Task) []task.Task {
	if len(tasks) == 0 {
		return task.Streams
	}
	return tasks
}
