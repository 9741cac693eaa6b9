package cucumber

import (
	"fmt"
	"path/filepath"
	"strings"

	"lfeval/internal/cli"
	"lfeval/internal/config"
	"lfeval/internal/evaluator"
	"lfeval/internal/report"
)

// iRunCommand executes a CLI command for the scenario.
func (s *featureState) iRunCommand(command string) error {
	args := strings.Fields(command)
	if len(args) == 0 {
		return fmt.Errorf("command is empty")
	}
	if args[0] == "lfeval" {
		args = args[1:]
	}
	s.stdout.Reset()
	s.stderr.Reset()
	s.exitCode = cli.Run(args, &s.stdout, &s.stderr)
	return nil
}

func (s *featureState) resolve(path string) string {
	return config.Resolve(s.project.Root, path)
}

// latestRun loads the newest run under the project's output directory.
func (s *featureState) latestRun() (evaluator.Summary, string, error) {
	if s.project.Root == "" {
		return evaluator.Summary{}, "", fmt.Errorf("no project has been written")
	}
	return report.ResolveRun(s.resolve(s.project.Config.Output.Dir), report.LatestRef)
}

func (s *featureState) latestPath(name string) (string, error) {
	_, runDir, err := s.latestRun()
	if err != nil {
		return "", err
	}
	return filepath.Join(runDir, filepath.FromSlash(name)), nil
}
