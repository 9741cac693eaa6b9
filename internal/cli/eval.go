package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"lfeval/internal/config"
	"lfeval/internal/duckdb"
	"lfeval/internal/evaluator"
	"lfeval/internal/logging"
	"lfeval/internal/report"
	"lfeval/internal/spec"
	"lfeval/internal/ui/live"
)

// newModel is a test seam for model construction; nil selects the default model.
var newModel evaluator.ModelFactory

// newRunID is a test seam for run ID generation.
var newRunID = evaluator.NewRunID

// runEval builds the handler for the eval command.
func runEval(cmd *Command) handler {
	return func(args []string, stdout, stderr io.Writer) int {
		fs := cmd.flagSet(stderr)
		specPath := fs.String("spec", "", "Path to config file (default: search for .lfeval/config.yml)")
		outputDir := fs.String("output-dir", "", "Override output directory")
		uiMode := fs.String("ui", "auto", "Console UI mode: auto, live or plain")
		verbose := fs.Bool("verbose", false, "Verbose logging (disables the live UI)")
		logLevel := fs.String("log-level", "", "Log level: debug, info, warn or error")
		noColor := fs.Bool("no-color", false, "Disable ANSI colors")
		dbPath := fs.String("duckdb", "", "Store the run in this DuckDB file (overrides output.duckdb)")
		noReport := fs.Bool("no-report", false, "Skip the HTML report")
		if code, ok := cmd.parse(fs, args, stdout, stderr); !ok {
			return code
		}

		decision, err := resolveUIMode(*uiMode, *verbose, *noColor, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitUsage
		}
		if decision.warning != "" {
			fmt.Fprintln(stderr, decision.warning)
		}
		level := *logLevel
		if level == "" && *verbose {
			level = logging.LevelDebug
		}

		cfg, root, err := loadProject(*specPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return ExitError
		}

		runID, err := newRunID()
		if err != nil {
			fmt.Fprintf(stderr, "Failed to create run id: %v\n", err)
			return ExitError
		}
		resolvedOutput := config.Resolve(root, cfg.Output.Dir)
		if strings.TrimSpace(*outputDir) != "" {
			resolvedOutput = *outputDir
		}
		paths, err := evaluator.NewOutputPaths(resolvedOutput, runID)
		if err != nil {
			fmt.Fprintf(stderr, "Invalid output directory: %v\n", err)
			return ExitError
		}

		logOpts := logging.Options{Level: level, NoColor: decision.noColor, File: paths.LogPath(cfg.Output.LogFile)}
		if !decision.useLive {
			logOpts.Console = stderr
		}
		logger, closeLog, err := logging.New(logOpts)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open log: %v\n", err)
			return ExitError
		}
		defer func() { _ = closeLog() }()

		var observer evaluator.Observer
		var controller *live.Controller
		if decision.useLive {
			controller = live.Start(stdout, live.Options{NoColor: decision.noColor})
			observer = controller
		}

		ev, err := evaluator.New(cfg, evaluator.Options{
			Root:      root,
			OutputDir: resolvedOutput,
			RunID:     runID,
			Logger:    logger,
			Observer:  observer,
			NewModel:  newModel,
		})
		if err != nil {
			controller.Close()
			controller.Wait()
			fmt.Fprintf(stderr, "Run failed: %v\n", err)
			return ExitError
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		summary, err := ev.Run(ctx)
		controller.Wait()
		if err != nil {
			logger.Errorf("run failed: %v", err)
			fmt.Fprintf(stderr, "Run failed: %v\n", err)
			return ExitError
		}

		if cfg.Output.ReportEnabled() && !*noReport {
			if err := report.WriteReport(ctx, paths.ReportPath(), []evaluator.Summary{summary}); err != nil {
				fmt.Fprintf(stderr, "Report failed: %v\n", err)
				return ExitError
			}
		}
		storePath := cfg.Output.DuckDB
		if strings.TrimSpace(*dbPath) != "" {
			storePath = *dbPath
		}
		if strings.TrimSpace(storePath) != "" {
			if err := storeRun(ctx, config.Resolve(root, storePath), summary, cfg, logger); err != nil {
				fmt.Fprintf(stderr, "DuckDB ingest failed: %v\n", err)
				return ExitError
			}
		}

		printSummary(stdout, summary, paths, cfg)
		return ExitOK
	}
}

func storeRun(ctx context.Context, path string, summary evaluator.Summary, cfg spec.Config, logger *zap.SugaredLogger) error {
	db, err := duckdb.Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	inserted, err := duckdb.IngestRun(ctx, db, summary, cfg)
	if err != nil {
		return err
	}
	if inserted {
		logger.Infof("stored run %s in %s", summary.RunID, path)
	}
	return nil
}

func printSummary(stdout io.Writer, summary evaluator.Summary, paths evaluator.OutputPaths, cfg spec.Config) {
	fmt.Fprintf(stdout, "Run %s completed (checkpoint epoch %d)\n", summary.RunID, summary.Checkpoint.Epoch)
	for _, part := range summary.Partitions {
		if part.Loss != nil {
			fmt.Fprintf(stdout, "%s loss: %.4f\n", part.Name, *part.Loss)
		}
		if part.Results != nil {
			for _, entry := range part.Results.Overall() {
				fmt.Fprintf(stdout, "%s %s accuracy: %.4f\n", part.Name, entry.Task, entry.Accuracy)
			}
			fmt.Fprintf(stdout, "Results: %s\n", paths.ResultsPath(part.Name))
		}
	}
	fmt.Fprintf(stdout, "Summary: %s\n", paths.SummaryPath())
	if cfg.Output.ReportEnabled() {
		if _, err := os.Stat(paths.ReportPath()); err == nil {
			fmt.Fprintf(stdout, "Report: %s\n", paths.ReportPath())
		}
	}
	fmt.Fprintf(stdout, "Log: %s\n", paths.LogPath(cfg.Output.LogFile))
}
