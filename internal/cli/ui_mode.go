package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Console UI modes accepted by --ui.
const (
	uiAuto  = "auto"
	uiLive  = "live"
	uiPlain = "plain"
)

// uiModeDecision is the resolved console presentation for a run.
type uiModeDecision struct {
	useLive bool
	noColor bool
	warning string
}

var (
	isTerminal = defaultIsTerminal
	lookupEnv  = os.LookupEnv
)

// resolveUIMode picks the live table or plain log output. Verbose runs always log plainly;
// NO_COLOR in the environment has the same effect as --no-color.
func resolveUIMode(mode string, verbose, noColor bool, stdout io.Writer) (uiModeDecision, error) {
	normalized := strings.ToLower(strings.TrimSpace(mode))
	if normalized == "" {
		normalized = uiAuto
	}
	decision := uiModeDecision{noColor: noColor}
	if value, ok := lookupEnv("NO_COLOR"); ok && value != "" {
		decision.noColor = true
	}

	switch normalized {
	case uiAuto, uiPlain:
	case uiLive:
		if verbose {
			decision.warning = "--verbose disables the live UI; logging to the console instead."
		} else if !isTerminal(stdout) {
			decision.warning = "Live UI requested but stdout is not a TTY; falling back to plain output."
		}
	default:
		return uiModeDecision{}, fmt.Errorf("invalid ui mode %q (expected %s|%s|%s)", mode, uiAuto, uiLive, uiPlain)
	}
	decision.useLive = normalized != uiPlain && !verbose && isTerminal(stdout)
	return decision, nil
}

func defaultIsTerminal(stdout io.Writer) bool {
	if stdout == nil {
		return false
	}
	if fder, ok := stdout.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(fder.Fd()))
	}
	return false
}
