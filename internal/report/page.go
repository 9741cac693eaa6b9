package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-h/templ"

	"lfeval/internal/evaluator"
	"lfeval/internal/score"
)

const pageStyle = `body{font-family:sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse;margin:0.5rem 0 1.5rem}
th,td{border:1px solid #ccc;padding:0.3rem 0.6rem;text-align:right}
th:first-child,td:first-child{text-align:left}
tr.overall td{font-weight:bold}
.meta{color:#666}`

// ReportPage renders every run as a section with loss and per-category accuracy tables.
func ReportPage(runs []evaluator.Summary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.printf("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>lfeval report</title><style>%s</style></head><body>\n", pageStyle)
		p.printf("<h1>Evaluation report</h1>\n")
		if len(runs) == 0 {
			p.printf("<p>No runs.</p>\n")
		}
		if len(runs) > 1 {
			renderComparison(p, runs)
		}
		for _, run := range runs {
			if err := ctx.Err(); err != nil {
				return err
			}
			renderRun(p, run)
		}
		p.printf("</body></html>\n")
		return p.err
	})
}

func renderComparison(p *printer, runs []evaluator.Summary) {
	p.printf("<h2>Runs</h2>\n<table><tr><th>Run</th><th>Epoch</th><th>Task</th><th>Partition</th><th>Loss</th></tr>\n")
	for _, run := range runs {
		for _, part := range run.Partitions {
			p.printf("<tr><td>%s</td><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
				esc(run.RunID), run.Checkpoint.Epoch, esc(run.Task), esc(part.Name), formatLoss(part.Loss))
		}
	}
	p.printf("</table>\n")
}

func renderRun(p *printer, run evaluator.Summary) {
	p.printf("<section id=\"%s\">\n<h2>Run %s</h2>\n", esc(run.RunID), esc(run.RunID))
	p.printf("<p class=\"meta\">checkpoint %s (epoch %d) &middot; task %s &middot; loss %s &middot; %s</p>\n",
		esc(run.Checkpoint.Path), run.Checkpoint.Epoch, esc(run.Task), esc(run.LossPolicy), esc(run.Duration().String()))
	for _, part := range run.Partitions {
		p.printf("<h3>%s (%d examples)</h3>\n", esc(part.Name), part.Examples)
		if part.Loss != nil {
			p.printf("<p>Loss: %s</p>\n", formatLoss(part.Loss))
		}
		if part.Results != nil {
			renderTable(p, *part.Results)
		}
	}
	p.printf("</section>\n")
}

func renderTable(p *printer, table score.Table) {
	p.printf("<table><tr><th>Question type</th>")
	for _, name := range table.Tasks {
		p.printf("<th>%s</th>", esc(name))
	}
	p.printf("</tr>\n")
	for _, category := range table.Categories() {
		p.printf("<tr><td>%s</td>", esc(category))
		for _, name := range table.Tasks {
			p.printf("<td>%s</td>", formatCell(table.Entries, category, name))
		}
		p.printf("</tr>\n")
	}
	overall := table.Overall()
	p.printf("<tr class=\"overall\"><td>%s</td>", score.OverallCategory)
	for _, name := range table.Tasks {
		p.printf("<td>%s</td>", formatCell(overall, score.OverallCategory, name))
	}
	p.printf("</tr>\n</table>\n")
}

func esc(s string) string { return templ.EscapeString(s) }

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// RenderReportHTML renders the report template into a string.
func RenderReportHTML(ctx context.Context, runs []evaluator.Summary) (string, error) {
	var builder strings.Builder
	if err := ReportPage(runs).Render(ctx, &builder); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// BuildReportHTML renders a report, returning an empty string on failure.
func BuildReportHTML(runs []evaluator.Summary) string {
	html, err := RenderReportHTML(context.Background(), runs)
	if err != nil {
		return ""
	}
	return html
}

// WriteReport renders runs into path.
func WriteReport(ctx context.Context, path string, runs []evaluator.Summary) error {
	html, err := RenderReportHTML(ctx, runs)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
