package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lfeval/internal/dataset"
	"lfeval/internal/evaluator"
	"lfeval/internal/model"
	"lfeval/internal/report"
	"lfeval/internal/reportserver"
	"lfeval/internal/spec"
	"lfeval/internal/testutil"
	"lfeval/internal/vocab"
)

// withStubModel routes model construction to a stub that always emits [END].
func withStubModel(t *testing.T) {
	t.Helper()
	originalModel, originalRunID := newModel, newRunID
	t.Cleanup(func() {
		newModel = originalModel
		newRunID = originalRunID
	})
	newModel = func(vocabs vocab.Set, _ spec.ModelConfig, _ uint64) (model.Model, error) {
		return testutil.NewStubModel(vocabs), nil
	}
	ids := []string{"run-1", "run-2", "run-3"}
	newRunID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
}

func writeProject(t *testing.T) (testutil.Project, string) {
	t.Helper()
	project := testutil.WriteProject(t,
		testutil.PartitionFixture{Name: "val", Examples: []dataset.Example{testutil.Example("v1", "Clarification")}, Loss: true},
		testutil.PartitionFixture{Name: "test", Examples: []dataset.Example{
			testutil.Example("t1", "Clarification"),
			testutil.Example("t2", "Simple Question (Direct)"),
		}, Loss: true, Score: true},
	)
	return project, project.WriteConfig(t)
}

func TestRunWithoutArgsPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Run(nil, &out, &errOut); code != ExitUsage {
		t.Fatalf("expected usage exit, got %d", code)
	}
	for _, name := range []string{"init", "validate", "eval", "report", "history"} {
		if !strings.Contains(out.String(), name) {
			t.Fatalf("usage missing %q: %s", name, out.String())
		}
	}
	if code := Run([]string{"train"}, &out, &errOut); code != ExitUsage {
		t.Fatalf("expected usage exit for unknown command, got %d", code)
	}
}

func TestValidateConfig(t *testing.T) {
	withStubModel(t)
	_, specPath := writeProject(t)

	var out, errOut bytes.Buffer
	if code := Run([]string{"validate", "--spec", specPath, "--data"}, &out, &errOut); code != ExitOK {
		t.Fatalf("validate failed (%d): %s", code, errOut.String())
	}
	for _, want := range []string{"Partition val: 1 examples", "Partition test: 2 examples", "Checkpoint: epoch 7", "Config OK"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output: %s", want, out.String())
		}
	}
}

func TestValidateReportsBrokenConfig(t *testing.T) {
	specPath := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(specPath, []byte("version: 1\nrun:\n  batch_size: -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var out, errOut bytes.Buffer
	if code := Run([]string{"validate", "--spec", specPath}, &out, &errOut); code != ExitError {
		t.Fatalf("expected error exit, got %d", code)
	}
	if !strings.Contains(errOut.String(), "Validation failed") {
		t.Fatalf("unexpected stderr: %s", errOut.String())
	}
}

func TestInitWritesConfigAndGitignore(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	original := initInput
	t.Cleanup(func() { initInput = original })
	initInput = strings.NewReader("y\nout/runs\ny\n")

	specPath := filepath.Join(root, ".lfeval", "config.yml")
	var out, errOut bytes.Buffer
	if code := Run([]string{"init", "--spec", specPath}, &out, &errOut); code != ExitOK {
		t.Fatalf("init failed (%d): %s", code, errOut.String())
	}
	data, err := os.ReadFile(specPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), `dir: "out/runs"`) {
		t.Fatalf("output dir not scaffolded: %s", data)
	}
	gitignore, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	if !strings.Contains(string(gitignore), "out/runs") {
		t.Fatalf("gitignore missing entry: %s", gitignore)
	}

	initInput = strings.NewReader("y\n")
	errOut.Reset()
	if code := Run([]string{"init", "--spec", specPath}, &out, &errOut); code != ExitError {
		t.Fatalf("expected second init to fail, got %d", code)
	}
	if !strings.Contains(errOut.String(), "already exists") {
		t.Fatalf("unexpected stderr: %s", errOut.String())
	}
}

func TestEvalWritesRunOutputs(t *testing.T) {
	withStubModel(t)
	project, specPath := writeProject(t)
	dbPath := filepath.Join(project.Root, "runs.duckdb")

	var out, errOut bytes.Buffer
	code := Run([]string{"eval", "--spec", specPath, "--ui", "plain", "--no-color", "--duckdb", dbPath}, &out, &errOut)
	if code != ExitOK {
		t.Fatalf("eval failed (%d): %s", code, errOut.String())
	}
	runDir := filepath.Join(project.Root, "results", "run-1")
	for _, name := range []string{"summary.json", "results/test.json", "results/test.predictions.jsonl", "report.html", "logs/test.log"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(runDir, "results", "val.json")); !os.IsNotExist(err) {
		t.Fatalf("val is not scored, expected no results file")
	}
	for _, want := range []string{"Run run-1 completed (checkpoint epoch 7)", "val loss:", "test logical_form accuracy: 0.0000", "Report:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output: %s", want, out.String())
		}
	}
	if !strings.Contains(errOut.String(), "Loaders prepared.") {
		t.Fatalf("expected console log on stderr: %s", errOut.String())
	}
	logData, err := os.ReadFile(filepath.Join(runDir, "logs", "test.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(logData), "Test Data Results:") {
		t.Fatalf("log missing results: %s", logData)
	}

	summary, err := evaluator.LoadSummary(filepath.Join(runDir, "summary.json"))
	if err != nil {
		t.Fatalf("load summary: %v", err)
	}
	if part, ok := summary.Partition("test"); !ok || part.Results == nil {
		t.Fatalf("expected test results in summary")
	}

	out.Reset()
	errOut.Reset()
	if code := Run([]string{"history", "--db", dbPath}, &out, &errOut); code != ExitOK {
		t.Fatalf("history failed (%d): %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "run-1") || !strings.Contains(out.String(), "ACCURACY") {
		t.Fatalf("unexpected history: %s", out.String())
	}
}

func TestEvalMissingCheckpointFails(t *testing.T) {
	withStubModel(t)
	project, specPath := writeProject(t)
	if err := os.Remove(filepath.Join(project.Root, "model", "checkpoint.json")); err != nil {
		t.Fatalf("remove checkpoint: %v", err)
	}
	var out, errOut bytes.Buffer
	if code := Run([]string{"eval", "--spec", specPath, "--ui", "plain"}, &out, &errOut); code != ExitError {
		t.Fatalf("expected error exit, got %d", code)
	}
	if _, err := os.Stat(filepath.Join(project.Root, "results", "run-1", "summary.json")); !os.IsNotExist(err) {
		t.Fatalf("failed run should not write a summary")
	}
	// The log is opened before the run starts, so the aborted run still has a directory.
	if _, err := os.Stat(filepath.Join(project.Root, "results", "run-1", "logs", "test.log")); err != nil {
		t.Fatalf("expected log of the failed run: %v", err)
	}
	runs, err := report.ListRuns(filepath.Join(project.Root, "results"))
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("aborted run should not be listed, got %d", len(runs))
	}
}

func TestReportLatestAndAll(t *testing.T) {
	withStubModel(t)
	project, specPath := writeProject(t)
	for i := 0; i < 2; i++ {
		var out, errOut bytes.Buffer
		if code := Run([]string{"eval", "--spec", specPath, "--ui", "plain", "--no-report"}, &out, &errOut); code != ExitOK {
			t.Fatalf("eval %d failed (%d): %s", i, code, errOut.String())
		}
	}
	if _, err := os.Stat(filepath.Join(project.Root, "results", "run-1", "report.html")); !os.IsNotExist(err) {
		t.Fatalf("--no-report should skip the report")
	}

	var out, errOut bytes.Buffer
	if code := Run([]string{"report", "--spec", specPath}, &out, &errOut); code != ExitOK {
		t.Fatalf("report failed (%d): %s", code, errOut.String())
	}
	latest := filepath.Join(project.Root, "results", "run-2", "report.html")
	if !strings.Contains(out.String(), latest) {
		t.Fatalf("expected latest run report, got %s", out.String())
	}

	out.Reset()
	comparison := filepath.Join(t.TempDir(), "all.html")
	if code := Run([]string{"report", "--input", filepath.Join(project.Root, "results"), "--all", "--output", comparison}, &out, &errOut); code != ExitOK {
		t.Fatalf("report --all failed (%d): %s", code, errOut.String())
	}
	html, err := os.ReadFile(comparison)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(html), "run-1") || !strings.Contains(string(html), "run-2") {
		t.Fatalf("comparison missing runs")
	}
}

func TestServeUsesConfiguredRunsDir(t *testing.T) {
	project, specPath := writeProject(t)
	original := serveReports
	t.Cleanup(func() { serveReports = original })
	var got reportserver.Config
	serveReports = func(_ context.Context, cfg reportserver.Config) error {
		got = cfg
		return nil
	}

	var out, errOut bytes.Buffer
	if code := Run([]string{"serve", "--spec", specPath, "--addr", "127.0.0.1:0"}, &out, &errOut); code != ExitOK {
		t.Fatalf("serve failed (%d): %s", code, errOut.String())
	}
	if got.RunsDir != filepath.Join(project.Root, "results") || got.Addr != "127.0.0.1:0" {
		t.Fatalf("unexpected server config: %+v", got)
	}
	if got.DBPath != "" {
		t.Fatalf("expected no store without output.duckdb, got %q", got.DBPath)
	}
}

func TestHistoryRejectsUnknownTask(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Run([]string{"history", "--db", ":memory:", "--task", "answer"}, &out, &errOut); code != ExitUsage {
		t.Fatalf("expected usage exit, got %d", code)
	}
}

func TestIgnorePathsResolvesAgainstProjectRoot(t *testing.T) {
	repo := t.TempDir()
	project := filepath.Join(repo, "experiments", "lf")
	if err := os.WriteFile(filepath.Join(repo, ".gitignore"), []byte("bin/"), 0o644); err != nil {
		t.Fatalf("write .gitignore: %v", err)
	}

	added, err := ignorePaths(repo, project, "results", "", filepath.Join(repo, "bin"))
	if err != nil {
		t.Fatalf("ignore paths: %v", err)
	}
	if len(added) != 1 || added[0] != "experiments/lf/results" {
		t.Fatalf("unexpected entries: %v", added)
	}
	data, err := os.ReadFile(filepath.Join(repo, ".gitignore"))
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	if string(data) != "bin/\nexperiments/lf/results\n" {
		t.Fatalf("unexpected .gitignore: %q", data)
	}
	if _, err := ignorePaths(repo, project, "../../.."); err == nil {
		t.Fatalf("expected paths outside the repo to fail")
	}
}
