package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lfeval/internal/config"
)

// initInput allows tests to override stdin for init prompts.
var initInput io.Reader = os.Stdin

var errInitCancelled = errors.New("init cancelled")

// initTarget is where a new config goes and which repository owns it.
type initTarget struct {
	configPath string
	repoRoot   string
}

func (t initTarget) projectRoot() string { return config.RootFromConfigPath(t.configPath) }

func runInit(cmd *Command) handler {
	return func(args []string, stdout, stderr io.Writer) int {
		fs := cmd.flagSet(stderr)
		specPath := fs.String("spec", "", "Config file to create (default: .lfeval/config.yml at the repository root)")
		if code, ok := cmd.parse(fs, args, stdout, stderr); !ok {
			return code
		}

		target, err := locateInitTarget(strings.TrimSpace(*specPath))
		if err == nil {
			err = scaffoldProject(target, newPrompter(initInput, stdout), stdout)
		}
		if err != nil {
			if errors.Is(err, errInitCancelled) {
				fmt.Fprintln(stderr, "Init cancelled.")
			} else {
				fmt.Fprintf(stderr, "Init failed: %v\n", err)
			}
			return ExitError
		}
		return ExitOK
	}
}

// locateInitTarget picks the config path and refuses to overwrite anything.
func locateInitTarget(specPath string) (initTarget, error) {
	var target initTarget
	if specPath == "" {
		target.repoRoot = config.FindGitRoot("")
		base := target.repoRoot
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return target, err
			}
			base = wd
		}
		target.configPath = config.DefaultConfigPath(base)
	} else {
		abs, err := filepath.Abs(specPath)
		if err != nil {
			return target, err
		}
		target.configPath = abs
		target.repoRoot = config.FindGitRoot(target.projectRoot())
	}

	if info, err := os.Stat(filepath.Dir(target.configPath)); err == nil && !info.IsDir() {
		return target, fmt.Errorf("%q is not a directory", filepath.Dir(target.configPath))
	}
	switch info, err := os.Stat(target.configPath); {
	case err == nil && info.IsDir():
		return target, fmt.Errorf("config path %q is a directory", target.configPath)
	case err == nil:
		return target, fmt.Errorf("config already exists at %q", target.configPath)
	case !os.IsNotExist(err):
		return target, fmt.Errorf("stat config: %w", err)
	}
	return target, nil
}

func scaffoldProject(target initTarget, ask *prompter, stdout io.Writer) error {
	ok, err := ask.YesNo(fmt.Sprintf("Initialize lfeval config in %s?", filepath.Dir(target.configPath)), true)
	if err != nil {
		return err
	}
	if !ok {
		return errInitCancelled
	}
	outputDir, err := ask.String("Results folder", config.DefaultOutputDir)
	if err != nil {
		return err
	}
	ignore := false
	if target.repoRoot != "" {
		if ignore, err = ask.YesNo("Add results folder to .gitignore?", true); err != nil {
			return err
		}
	}

	if err := config.Scaffold(target.configPath, outputDir); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s\n", target.configPath)
	fmt.Fprintln(stdout, "Point data.vocab, data.partitions and model.checkpoint at your files, then run \"lfeval validate --data\".")

	if !ignore {
		return nil
	}
	added, err := ignorePaths(target.repoRoot, target.projectRoot(), outputDir)
	if err != nil {
		return fmt.Errorf("update .gitignore: %w", err)
	}
	if len(added) > 0 {
		fmt.Fprintf(stdout, "Updated %s\n", filepath.Join(target.repoRoot, ".gitignore"))
	}
	return nil
}
