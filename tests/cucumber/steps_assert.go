package cucumber

import (
	"fmt"
	"os"
	"strings"

	"github.com/cucumber/godog"

	"lfeval/internal/score"
)

// cells flattens a data table into its non-empty values.
func cells(table *godog.Table) []string {
	var out []string
	for _, row := range table.Rows {
		for _, cell := range row.Cells {
			if value := strings.TrimSpace(cell.Value); value != "" {
				out = append(out, value)
			}
		}
	}
	return out
}

// theOutputListsCommands asserts the output contains expected command names.
func (s *featureState) theOutputListsCommands(table *godog.Table) error {
	output := s.stdout.String()
	for _, command := range cells(table) {
		if !strings.Contains(output, command) {
			return fmt.Errorf("expected command %q in output", command)
		}
	}
	return nil
}

func (s *featureState) theExitCodeIsZero() error {
	if s.exitCode != 0 {
		return fmt.Errorf("expected exit code 0, got %d: %s", s.exitCode, s.stderr.String())
	}
	return nil
}

// theExitCodeIsNonZero asserts that the CLI returned an error code.
func (s *featureState) theExitCodeIsNonZero() error {
	if s.exitCode == 0 {
		return fmt.Errorf("expected non-zero exit code")
	}
	return nil
}

func (s *featureState) theOutputContains(text string) error {
	if !strings.Contains(s.stdout.String(), text) {
		return fmt.Errorf("expected %q in output, got %q", text, s.stdout.String())
	}
	return nil
}

func (s *featureState) theErrorOutputContains(text string) error {
	if !strings.Contains(s.stderr.String(), text) {
		return fmt.Errorf("expected %q in error output, got %q", text, s.stderr.String())
	}
	return nil
}

func (s *featureState) theLatestRunContainsFiles(table *godog.Table) error {
	for _, name := range cells(table) {
		path, err := s.latestPath(name)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("expected %s in run: %w", name, err)
		}
	}
	return nil
}

func (s *featureState) theLatestSummaryHasLoss(partition string) error {
	summary, _, err := s.latestRun()
	if err != nil {
		return err
	}
	part, ok := summary.Partition(partition)
	if !ok || part.Loss == nil {
		return fmt.Errorf("expected a loss for %s", partition)
	}
	if *part.Loss <= 0 {
		return fmt.Errorf("expected a positive loss for %s, got %f", partition, *part.Loss)
	}
	return nil
}

func (s *featureState) theLatestSummaryHasNoResults(partition string) error {
	summary, _, err := s.latestRun()
	if err != nil {
		return err
	}
	if part, ok := summary.Partition(partition); ok && part.Results != nil {
		return fmt.Errorf("expected no results for %s", partition)
	}
	return nil
}

// theLatestResultsCoverCategories reads results/test.json and checks every category is scored.
func (s *featureState) theLatestResultsCoverCategories(table *godog.Table) error {
	path, err := s.latestPath("results/test.json")
	if err != nil {
		return err
	}
	results, err := score.LoadTable(path)
	if err != nil {
		return err
	}
	categories := results.Categories()
	for _, want := range cells(table) {
		found := false
		for _, got := range categories {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("expected category %q in %v", want, categories)
		}
	}
	return nil
}
