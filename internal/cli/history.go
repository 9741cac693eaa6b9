package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"lfeval/internal/config"
	"lfeval/internal/duckdb"
	"lfeval/internal/task"
)

func runHistory(cmd *Command) handler {
	return func(args []string, stdout, stderr io.Writer) int {
		fs := cmd.flagSet(stderr)
		specPath := fs.String("spec", "", "Path to config file (default: search for .lfeval/config.yml)")
		dbPath := fs.String("db", "", "DuckDB file (default: output.duckdb from config)")
		partition := fs.String("partition", "test", "Partition name")
		taskName := fs.String("task", task.LogicalForm.String(), "Output stream")
		if code, ok := cmd.parse(fs, args, stdout, stderr); !ok {
			return code
		}
		if tk, err := task.Parse(*taskName); err != nil || !tk.IsStream() {
			fmt.Fprintf(stderr, "Invalid --task %q: expected one of %s\n", *taskName, strings.Join(streamNames(), ", "))
			return ExitUsage
		}

		path := strings.TrimSpace(*dbPath)
		if path == "" {
			cfg, root, err := loadProject(*specPath)
			if err != nil {
				fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
				return ExitError
			}
			if strings.TrimSpace(cfg.Output.DuckDB) == "" {
				fmt.Fprintln(stderr, "No DuckDB file configured; set output.duckdb or pass --db")
				return ExitUsage
			}
			path = config.Resolve(root, cfg.Output.DuckDB)
		}

		ctx := context.Background()
		db, err := duckdb.Open(ctx, path)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open %s: %v\n", path, err)
			return ExitError
		}
		defer db.Close()

		points, err := duckdb.AccuracyHistory(ctx, db, *partition, *taskName)
		if err != nil {
			fmt.Fprintf(stderr, "History failed: %v\n", err)
			return ExitError
		}
		if len(points) == 0 {
			fmt.Fprintf(stdout, "No scored runs for %s/%s\n", *partition, *taskName)
			return ExitOK
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tEPOCH\tCORRECT\tTOTAL\tACCURACY")
		for _, p := range points {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.4f\n", p.RunID, p.Epoch, p.Correct, p.Total, p.Accuracy)
		}
		if err := tw.Flush(); err != nil {
			fmt.Fprintf(stderr, "History failed: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
}

func streamNames() []string {
	names := make([]string, 0, len(task.Streams))
	for _, tk := range task.Streams {
		names = append(names, tk.String())
	}
	return names
}
