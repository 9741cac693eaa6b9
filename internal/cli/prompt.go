package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// prompter asks interactive questions on out and reads answers line by line.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// line returns the next answer without its line ending. A final line without
// a newline is returned together with io.EOF.
func (p *prompter) line() (string, error) {
	text, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(text), err
}

// String asks for a value; an empty answer selects def.
func (p *prompter) String(label, def string) (string, error) {
	for {
		if def != "" {
			fmt.Fprintf(p.out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(p.out, "%s: ", label)
		}
		answer, err := p.line()
		if answer != "" {
			return answer, nil
		}
		if def != "" {
			return def, nil
		}
		if err != nil {
			return "", fmt.Errorf("missing input for %s", label)
		}
	}
}

// YesNo asks a yes/no question; an empty answer or end of input selects def.
func (p *prompter) YesNo(label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		fmt.Fprintf(p.out, "%s [%s]: ", label, hint)
		answer, err := p.line()
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("invalid response %q", answer)
		}
		fmt.Fprintln(p.out, "Please answer yes or no.")
	}
}
