package cucumber

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"

	"lfeval/internal/testutil"
)

// featureState holds scenario state for cucumber CLI tests.
type featureState struct {
	t          *testing.T
	project    testutil.Project
	configPath string
	previousWD string
	stdout     bytes.Buffer
	stderr     bytes.Buffer
	exitCode   int
}

// InitializeScenario wires cucumber steps to the feature state.
func InitializeScenario(ctx *godog.ScenarioContext, t *testing.T) {
	state := &featureState{t: t}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		state.cleanup()
		return ctx, nil
	})

	ctx.Step(`^a project with a trained checkpoint at epoch (\d+)$`, state.aProjectWithTrainedCheckpoint)
	ctx.Step(`^the config sets the batch size to (-?\d+)$`, state.theConfigSetsBatchSize)
	ctx.Step(`^I run "([^"]+)"$`, state.iRunCommand)
	ctx.Step(`^the exit code is zero$`, state.theExitCodeIsZero)
	ctx.Step(`^the exit code is non-zero$`, state.theExitCodeIsNonZero)
	ctx.Step(`^the output lists these commands:$`, state.theOutputListsCommands)
	ctx.Step(`^the output contains "([^"]+)"$`, state.theOutputContains)
	ctx.Step(`^the error output contains "([^"]+)"$`, state.theErrorOutputContains)
	ctx.Step(`^the latest run contains these files:$`, state.theLatestRunContainsFiles)
	ctx.Step(`^the latest summary has a loss for "([^"]+)"$`, state.theLatestSummaryHasLoss)
	ctx.Step(`^the latest summary has no results for "([^"]+)"$`, state.theLatestSummaryHasNoResults)
	ctx.Step(`^the latest results cover these categories:$`, state.theLatestResultsCoverCategories)
}

// reset clears buffers before each scenario.
func (s *featureState) reset() {
	s.stdout.Reset()
	s.stderr.Reset()
	s.exitCode = 0
	s.project = testutil.Project{}
	s.configPath = ""
}

// cleanup restores the working directory changed by project setup.
func (s *featureState) cleanup() {
	if s.previousWD != "" {
		_ = os.Chdir(s.previousWD)
		s.previousWD = ""
	}
}
