package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"lfeval/internal/config"
	"lfeval/internal/logging"
	"lfeval/internal/reportserver"
)

var serveReports = reportserver.Serve

func runServe(cmd *Command) handler {
	return func(args []string, stdout, stderr io.Writer) int {
		fs := cmd.flagSet(stderr)
		specPath := fs.String("spec", "", "Path to config file (default: search for .lfeval/config.yml)")
		inputDir := fs.String("input", "", "Directory containing runs")
		addr := fs.String("addr", "127.0.0.1:8080", "Listen address")
		dbPath := fs.String("db", "", "DuckDB file to expose (default: output.duckdb from config)")
		if code, ok := cmd.parse(fs, args, stdout, stderr); !ok {
			return code
		}

		runsDir := strings.TrimSpace(*inputDir)
		store := strings.TrimSpace(*dbPath)
		if runsDir == "" {
			cfg, root, err := loadProject(*specPath)
			if err != nil {
				fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
				return ExitError
			}
			runsDir = config.Resolve(root, cfg.Output.Dir)
			if store == "" {
				store = config.Resolve(root, cfg.Output.DuckDB)
			}
		}

		logger, closeLog, err := logging.New(logging.Options{Console: stderr})
		if err != nil {
			fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
			return ExitError
		}
		defer func() { _ = closeLog() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		fmt.Fprintf(stdout, "Serving reports on http://%s\n", *addr)
		if err := serveReports(ctx, reportserver.Config{Addr: *addr, RunsDir: runsDir, DBPath: store, Logger: logger}); err != nil {
			fmt.Fprintf(stderr, "Serve failed: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
}
