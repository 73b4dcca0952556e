// Package support provides the shared scenario state and step definitions
// for the batch recognition feature suite. Scenarios drive the real
// pipeline against an in-process fake recognition service, so they run
// without network access or API credentials.
package support

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lindenau-systems/folio/internal/pipeline"
)

// stepTimeout bounds every wait inside a step so a wedged scenario fails
// instead of hanging the suite.
const stepTimeout = 10 * time.Second

type runOutcome struct {
	run *pipeline.BatchRun
	err error
}

// TestContext carries the state of one scenario: the document under test,
// the scripted service, the run configuration, and the finished run.
type TestContext struct {
	Document *MemDocument
	Service  *FakeService
	Options  pipeline.Options
	Reporter *EventReporter

	// preCancelled makes the next run start with an already-cancelled
	// context.
	preCancelled bool

	// runCh delivers the result of a background run started by a When
	// step; cancelRun aborts it.
	runCh     chan runOutcome
	cancelRun context.CancelFunc

	Run    *pipeline.BatchRun
	RunErr error
}

// NewTestContext creates a fresh scenario context with fast retry backoff
// so scripted failures do not slow the suite down.
func NewTestContext() (*TestContext, error) {
	opts := pipeline.DefaultOptions()
	opts.BaseDelay = time.Millisecond
	opts.MaxDelay = 4 * time.Millisecond
	opts.DrainGrace = 5 * time.Second

	return &TestContext{
		Document: &MemDocument{Pages: 1, Name: "scenario.pdf"},
		Service:  NewFakeService(),
		Options:  opts,
		Reporter: &EventReporter{},
	}, nil
}

// newRunner wires the scenario's service, options and reporter into a
// pipeline runner with logging silenced.
func (testCtx *TestContext) newRunner() (*pipeline.Runner, error) {
	runner, err := pipeline.NewRunner(testCtx.Service, testCtx.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to build runner: %w", err)
	}
	runner.WithProgress(testCtx.Reporter)
	runner.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return runner, nil
}

// requireRun guards Then steps that need a finished run.
func (testCtx *TestContext) requireRun() (*pipeline.BatchRun, error) {
	if testCtx.RunErr != nil {
		return nil, fmt.Errorf("run failed unexpectedly: %w", testCtx.RunErr)
	}
	if testCtx.Run == nil {
		return nil, fmt.Errorf("no run has finished yet")
	}
	return testCtx.Run, nil
}

// outcomeOf resolves a one-based page number from a feature file to its
// outcome in the finished run.
func (testCtx *TestContext) outcomeOf(pageNumber int) (*pipeline.PageOutcome, error) {
	run, err := testCtx.requireRun()
	if err != nil {
		return nil, err
	}
	index := pageNumber - 1
	for i := range run.Outcomes {
		if run.Outcomes[i].PageIndex == index {
			return &run.Outcomes[i], nil
		}
	}
	return nil, fmt.Errorf("page %d has no outcome in the run", pageNumber)
}

// Cleanup releases held service calls and waits for any background run so
// no goroutines leak into the next scenario.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.cancelRun != nil {
		testCtx.cancelRun()
	}
	testCtx.Service.Release()

	if testCtx.runCh != nil {
		select {
		case <-testCtx.runCh:
		case <-time.After(stepTimeout):
			return fmt.Errorf("background run did not terminate during cleanup")
		}
		testCtx.runCh = nil
	}
	return nil
}

// waitFor polls cond until it holds or the step timeout expires.
func waitFor(cond func() bool) error {
	deadline := time.Now().Add(stepTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(2 * time.Millisecond)
	}
	return fmt.Errorf("condition not met within %v", stepTimeout)
}
