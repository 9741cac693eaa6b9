// Package reportserver serves HTML reports for the runs in an output directory.
package reportserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"lfeval/internal/evaluator"
	"lfeval/internal/report"
)

// NewHandler builds the HTTP handler for run reports.
//
//	GET /                         comparison of every run
//	GET /runs/{id}                report for one run ("latest" works)
//	GET /runs/{id}/summary.json   the stored summary
//	GET /data/db.duckdb           the run store, when DBPath is set
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.RunsDir == "" {
		return nil, errors.New("reportserver: runs dir is required")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", serveIndex(cfg.RunsDir))
	mux.HandleFunc("GET /runs/{id}", serveRun(cfg.RunsDir))
	mux.HandleFunc("GET /runs/{id}/summary.json", serveSummary(cfg.RunsDir))
	if cfg.DBPath != "" {
		mux.Handle("GET /data/db.duckdb", serveDatabase(cfg.DBPath))
	}
	return mux, nil
}

func serveIndex(runsDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := report.ListRuns(runsDir)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(runs) == 0 {
			http.Error(w, "no runs found", http.StatusNotFound)
			return
		}
		writeReport(w, r, runs)
	}
}

func serveRun(runsDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, _, err := resolve(runsDir, r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeReport(w, r, []evaluator.Summary{run})
	}
}

func serveSummary(runsDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, _, err := resolve(runsDir, r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(run)
	}
}

// resolve rejects IDs that would escape the runs directory.
func resolve(runsDir, id string) (evaluator.Summary, string, error) {
	if id != filepath.Base(id) || id == "." || id == ".." {
		return evaluator.Summary{}, "", os.ErrNotExist
	}
	return report.ResolveRun(runsDir, id)
}

func writeReport(w http.ResponseWriter, r *http.Request, runs []evaluator.Summary) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.ReportPage(runs).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// serveDatabase serves the DuckDB file from disk.
func serveDatabase(dbPath string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeFile(w, r, dbPath)
	})
}
