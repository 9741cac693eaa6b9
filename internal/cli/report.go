package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"lfeval/internal/evaluator"
	"lfeval/internal/report"
)

var writeReport = report.WriteReport

func runReport(cmd *Command) handler {
	return func(args []string, stdout, stderr io.Writer) int {
		fs := cmd.flagSet(stderr)
		inputDir := fs.String("input", "", "Directory containing runs")
		specPath := fs.String("spec", "", "Path to config file (default: search for .lfeval/config.yml)")
		runRef := fs.String("run", report.LatestRef, "Run ID or \"latest\"")
		all := fs.Bool("all", false, "Compare every run in the output directory")
		outputPath := fs.String("output", "", "Report output path")
		if code, ok := cmd.parse(fs, args, stdout, stderr); !ok {
			return code
		}

		outputDir, err := resolveInputDir(*inputDir, *specPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to resolve input: %v\n", err)
			return ExitError
		}

		var runs []evaluator.Summary
		reportPath := *outputPath
		if *all {
			runs, err = report.ListRuns(outputDir)
			if err != nil {
				fmt.Fprintf(stderr, "Failed to list runs: %v\n", err)
				return ExitError
			}
			if len(runs) == 0 {
				fmt.Fprintf(stderr, "No runs found in %s\n", outputDir)
				return ExitError
			}
			if reportPath == "" {
				reportPath = filepath.Join(outputDir, "report.html")
			}
		} else {
			run, runDir, err := report.ResolveRun(outputDir, *runRef)
			if err != nil {
				fmt.Fprintf(stderr, "Failed to resolve run: %v\n", err)
				return ExitError
			}
			runs = []evaluator.Summary{run}
			if reportPath == "" {
				reportPath = filepath.Join(runDir, "report.html")
			}
		}

		if err := writeReport(context.Background(), reportPath, runs); err != nil {
			fmt.Fprintf(stderr, "Failed to write report: %v\n", err)
			return ExitError
		}
		fmt.Fprintf(stdout, "Report written to %s\n", reportPath)
		return ExitOK
	}
}
