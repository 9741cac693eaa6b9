package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

type handler func(args []string, stdout, stderr io.Writer) int

// Command is one lfeval subcommand.
type Command struct {
	Name    string
	Summary string
	Usage   []string
	Run     handler
}

// Run dispatches args to a subcommand and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stdout)
		return ExitUsage
	}
	switch args[0] {
	case "-h", "--help", "help":
		printUsage(stdout)
		return ExitOK
	}
	for _, cmd := range commands {
		if cmd.Name == args[0] {
			return cmd.Run(args[1:], stdout, stderr)
		}
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
	printUsage(stderr)
	return ExitUsage
}

func command(name, summary string, usage []string, build func(cmd *Command) handler) *Command {
	cmd := &Command{Name: name, Summary: summary, Usage: usage}
	cmd.Run = build(cmd)
	return cmd
}

func (c *Command) flagSet(stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(c.Name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {}
	return fs
}

// parse handles --help, flag errors and stray arguments. When ok is false
// the command should return code immediately.
func (c *Command) parse(fs *flag.FlagSet, args []string, stdout, stderr io.Writer) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.printUsage(stdout)
			return ExitOK, false
		}
		c.printUsage(stderr)
		return ExitUsage, false
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		c.printUsage(stderr)
		return ExitUsage, false
	}
	return ExitOK, true
}

func (c *Command) printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	for _, line := range c.Usage {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintf(w, "\n%s\n", c.Summary)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  lfeval <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintln(w, "\nUse \"lfeval <command> --help\" for more information.")
}

var commands = []*Command{
	command("init", "Scaffold .lfeval/config.yml", []string{
		"lfeval init [--spec <path>]",
	}, runInit),
	command("validate", "Validate the evaluation config", []string{
		"lfeval validate [--spec <path>] [--data]",
	}, runValidate),
	command("eval", "Evaluate a checkpoint: loss and per-category accuracy", []string{
		"lfeval eval [--spec <path>] [--output-dir <dir>] [--ui auto|live|plain] [--verbose]",
		"lfeval eval [--log-level <level>] [--no-color] [--duckdb <path>] [--no-report]",
	}, runEval),
	command("report", "Render HTML reports for finished runs", []string{
		"lfeval report [--run <run-id>|latest] [--output <path>]",
		"lfeval report --all [--output <path>]",
	}, runReport),
	command("history", "Show accuracy across runs stored in DuckDB", []string{
		"lfeval history [--spec <path>] [--db <path>] [--partition <name>] [--task <stream>]",
	}, runHistory),
	command("serve", "Serve run reports over HTTP", []string{
		"lfeval serve [--spec <path>|--input <dir>] [--addr <host:port>] [--db <path>]",
	}, runServe),
}
