package support

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/lindenau-systems/folio/internal/recognize"
)

// scriptFor maps the failure names used in feature files to classified
// service errors.
func scriptFor(name string) (pageScript, error) {
	switch name {
	case "rate limited":
		return pageScript{kind: recognize.KindTransientRateLimited, status: 429, msg: "requests throttled"}, nil
	case "server error":
		return pageScript{kind: recognize.KindTransientServer, status: 503, msg: "upstream unavailable"}, nil
	case "timeout":
		return pageScript{kind: recognize.KindTransientTimeout, msg: "deadline exceeded"}, nil
	case "invalid input":
		return pageScript{kind: recognize.KindPermanentInvalidInput, status: 400, msg: "image payload rejected"}, nil
	case "auth rejection":
		return pageScript{kind: recognize.KindPermanentAuth, status: 401, msg: "invalid api key"}, nil
	default:
		return pageScript{}, fmt.Errorf("unknown failure %q", name)
	}
}

// Document and service setup steps.

func (testCtx *TestContext) aDocumentWithPages(pages int) error {
	if pages <= 0 {
		return fmt.Errorf("page count must be positive, got %d", pages)
	}
	testCtx.Document.Pages = pages
	return nil
}

func (testCtx *TestContext) aServiceThatSucceedsOnEveryPage() error {
	testCtx.Service = NewFakeService()
	return nil
}

func (testCtx *TestContext) aServiceThatHoldsCalls() error {
	testCtx.Service.Hold()
	return nil
}

func (testCtx *TestContext) pageFailsTimesWithBeforeSucceeding(page, times int, failure string) error {
	script, err := scriptFor(failure)
	if err != nil {
		return err
	}
	script.failBefore = times
	testCtx.Service.ScriptPage(page-1, script)
	return nil
}

func (testCtx *TestContext) everyPageFailsTimesWithBeforeSucceeding(times int, failure string) error {
	for page := 1; page <= testCtx.Document.Pages; page++ {
		if err := testCtx.pageFailsTimesWithBeforeSucceeding(page, times, failure); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) pageAlwaysFailsWith(page int, failure string) error {
	script, err := scriptFor(failure)
	if err != nil {
		return err
	}
	script.always = true
	testCtx.Service.ScriptPage(page-1, script)
	return nil
}

func (testCtx *TestContext) everyPageAlwaysFailsWith(failure string) error {
	for page := 1; page <= testCtx.Document.Pages; page++ {
		if err := testCtx.pageAlwaysFailsWith(page, failure); err != nil {
			return err
		}
	}
	return nil
}

// Run configuration steps.

func (testCtx *TestContext) theRunUsesConcurrency(n int) error {
	testCtx.Options.Concurrency = n
	return nil
}

func (testCtx *TestContext) theRunAllowsAttemptsPerPage(n int) error {
	testCtx.Options.MaxAttempts = n
	return nil
}

func (testCtx *TestContext) theRunDrainsCancelledWorkGracefully() error {
	testCtx.Options.CancelMode = pipeline.CancelGraceful
	return nil
}

func (testCtx *TestContext) theRunIsCancelledBeforeItStarts() error {
	testCtx.preCancelled = true
	return nil
}

// Run execution steps.

func (testCtx *TestContext) theBatchRunExecutes() error {
	runner, err := testCtx.newRunner()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if testCtx.preCancelled {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		cancel()
	}
	testCtx.Run, testCtx.RunErr = runner.Run(ctx, testCtx.Document, nil)
	return nil
}

func (testCtx *TestContext) theBatchRunStartsInTheBackground() error {
	runner, err := testCtx.newRunner()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	testCtx.cancelRun = cancel
	testCtx.runCh = make(chan runOutcome, 1)
	go func() {
		run, runErr := runner.Run(ctx, testCtx.Document, nil)
		testCtx.runCh <- runOutcome{run: run, err: runErr}
	}()
	return nil
}

func (testCtx *TestContext) theRunIsCancelledOnceCallsAreInFlight(n int) error {
	if testCtx.cancelRun == nil {
		return fmt.Errorf("no background run was started")
	}
	if err := waitFor(func() bool { return testCtx.Service.Inflight() == n }); err != nil {
		return fmt.Errorf("never saw %d calls in flight: %w", n, err)
	}
	testCtx.cancelRun()
	// Let the admission loop observe the cancellation before any held call
	// is released; otherwise a freed worker could admit one more page.
	time.Sleep(20 * time.Millisecond)
	return nil
}

func (testCtx *TestContext) theHeldCallsAreReleased() error {
	testCtx.Service.Release()
	return nil
}

func (testCtx *TestContext) theBackgroundRunFinishes() error {
	if testCtx.runCh == nil {
		return fmt.Errorf("no background run was started")
	}
	select {
	case res := <-testCtx.runCh:
		testCtx.Run, testCtx.RunErr = res.run, res.err
		testCtx.runCh = nil
		return nil
	case <-time.After(stepTimeout):
		return fmt.Errorf("background run did not finish within %v", stepTimeout)
	}
}

// Outcome verification steps.

func (testCtx *TestContext) theRunStatusIs(want string) error {
	run, err := testCtx.requireRun()
	if err != nil {
		return err
	}
	if string(run.Status) != want {
		return fmt.Errorf("run status is %q, expected %q", run.Status, want)
	}
	return nil
}

func (testCtx *TestContext) everyPageHasRecognizedText() error {
	run, err := testCtx.requireRun()
	if err != nil {
		return err
	}
	for i := range run.Outcomes {
		out := &run.Outcomes[i]
		if !out.Success {
			return fmt.Errorf("page %d failed: %v", out.PageIndex+1, out.Err)
		}
		if out.Text == "" {
			return fmt.Errorf("page %d succeeded without text", out.PageIndex+1)
		}
	}
	return nil
}

func (testCtx *TestContext) theOutcomesAreInPageOrder() error {
	run, err := testCtx.requireRun()
	if err != nil {
		return err
	}
	for i := range run.Outcomes {
		if run.Outcomes[i].PageIndex != i {
			return fmt.Errorf("outcome %d belongs to page %d, order broken", i, run.Outcomes[i].PageIndex+1)
		}
	}
	return nil
}

func (testCtx *TestContext) pageSucceededAfterAttempts(page, attempts int) error {
	out, err := testCtx.outcomeOf(page)
	if err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("page %d failed: %v", page, out.Err)
	}
	if out.Attempts != attempts {
		return fmt.Errorf("page %d took %d attempts, expected %d", page, out.Attempts, attempts)
	}
	return nil
}

func (testCtx *TestContext) pageFailedWithAfterAttempts(page int, failure string, attempts int) error {
	script, err := scriptFor(failure)
	if err != nil {
		return err
	}
	out, err := testCtx.outcomeOf(page)
	if err != nil {
		return err
	}
	if out.Success {
		return fmt.Errorf("page %d succeeded, expected a %s failure", page, failure)
	}
	if out.ErrorKind != script.kind {
		return fmt.Errorf("page %d failed as %q, expected %q", page, out.ErrorKind, script.kind)
	}
	if out.Attempts != attempts {
		return fmt.Errorf("page %d took %d attempts, expected %d", page, out.Attempts, attempts)
	}
	return nil
}

func (testCtx *TestContext) pagesSucceededAndFailed(succeeded, failed int) error {
	run, err := testCtx.requireRun()
	if err != nil {
		return err
	}
	if got := run.Succeeded(); got != succeeded {
		return fmt.Errorf("%d pages succeeded, expected %d", got, succeeded)
	}
	if run.Failed != failed {
		return fmt.Errorf("%d pages failed, expected %d", run.Failed, failed)
	}
	return nil
}

func (testCtx *TestContext) theFirstPagesSucceeded(n int) error {
	run, err := testCtx.requireRun()
	if err != nil {
		return err
	}
	if n > len(run.Outcomes) {
		return fmt.Errorf("run has only %d outcomes", len(run.Outcomes))
	}
	for i := 0; i < n; i++ {
		if !run.Outcomes[i].Success {
			return fmt.Errorf("page %d did not succeed: %v", i+1, run.Outcomes[i].Err)
		}
	}
	return nil
}

func (testCtx *TestContext) theRemainingPagesAreCancelledWithoutAnyAttempt() error {
	run, err := testCtx.requireRun()
	if err != nil {
		return err
	}
	cancelled := 0
	for i := range run.Outcomes {
		out := &run.Outcomes[i]
		if out.Success {
			continue
		}
		cancelled++
		if out.ErrorKind != recognize.KindCancelled {
			return fmt.Errorf("page %d failed as %q, expected cancellation", out.PageIndex+1, out.ErrorKind)
		}
		if out.Attempts != 0 {
			return fmt.Errorf("cancelled page %d reached the service %d times", out.PageIndex+1, out.Attempts)
		}
	}
	if cancelled == 0 {
		return fmt.Errorf("no page was cancelled")
	}
	return nil
}

func (testCtx *TestContext) everyPageIsCancelledWithoutAnyAttempt() error {
	run, err := testCtx.requireRun()
	if err != nil {
		return err
	}
	for i := range run.Outcomes {
		out := &run.Outcomes[i]
		if out.Success || out.ErrorKind != recognize.KindCancelled {
			return fmt.Errorf("page %d is not cancelled (success=%v, kind=%q)", out.PageIndex+1, out.Success, out.ErrorKind)
		}
		if out.Attempts != 0 {
			return fmt.Errorf("cancelled page %d reached the service %d times", out.PageIndex+1, out.Attempts)
		}
	}
	return nil
}

// Service verification steps.

func (testCtx *TestContext) theServiceSawCallsForPage(calls, page int) error {
	if got := testCtx.Service.CallCount(page - 1); got != calls {
		return fmt.Errorf("page %d received %d calls, expected %d", page, got, calls)
	}
	return nil
}

func (testCtx *TestContext) theServiceReceivedNoCalls() error {
	if got := testCtx.Service.TotalCalls(); got != 0 {
		return fmt.Errorf("service received %d calls, expected none", got)
	}
	return nil
}

func (testCtx *TestContext) atMostCallsWereInFlightAtOnce(n int) error {
	if got := testCtx.Service.MaxInflight(); got > n {
		return fmt.Errorf("saw %d calls in flight, limit was %d", got, n)
	}
	return nil
}

func (testCtx *TestContext) noPageNeededMoreThanAttempts(n int) error {
	run, err := testCtx.requireRun()
	if err != nil {
		return err
	}
	for i := range run.Outcomes {
		if run.Outcomes[i].Attempts > n {
			return fmt.Errorf("page %d took %d attempts, limit was %d", run.Outcomes[i].PageIndex+1, run.Outcomes[i].Attempts, n)
		}
	}
	return nil
}

// Progress verification steps.

func (testCtx *TestContext) progressReachedOfPages(completed, total int) error {
	gotCompleted, gotTotal, ok := testCtx.Reporter.LastProgress()
	if !ok {
		return fmt.Errorf("no progress was reported")
	}
	if gotCompleted != completed || gotTotal != total {
		return fmt.Errorf("progress reached %d of %d, expected %d of %d", gotCompleted, gotTotal, completed, total)
	}
	return nil
}

func (testCtx *TestContext) completionWasReportedOnce() error {
	completes, errCount := testCtx.Reporter.Counts()
	if completes != 1 {
		return fmt.Errorf("completion was reported %d times, expected once", completes)
	}
	if errCount != 0 {
		return fmt.Errorf("%d errors were reported alongside completion", errCount)
	}
	return nil
}

func (testCtx *TestContext) cancellationWasReported() error {
	completes, errCount := testCtx.Reporter.Counts()
	if errCount == 0 {
		return fmt.Errorf("no cancellation was reported")
	}
	if completes != 0 {
		return fmt.Errorf("completion was reported %d times on a cancelled run", completes)
	}
	return nil
}

// RegisterBatchSteps registers all step definitions of the batch suite.
func (testCtx *TestContext) RegisterBatchSteps(sc *godog.ScenarioContext) {
	// Setup.
	sc.Step(`^a document with (\d+) pages?$`, testCtx.aDocumentWithPages)
	sc.Step(`^a recognition service that succeeds on every page$`, testCtx.aServiceThatSucceedsOnEveryPage)
	sc.Step(`^a recognition service that holds calls until released$`, testCtx.aServiceThatHoldsCalls)
	sc.Step(`^page (\d+) fails (\d+) times? with "([^"]*)" before succeeding$`, testCtx.pageFailsTimesWithBeforeSucceeding)
	sc.Step(`^every page fails (\d+) times? with "([^"]*)" before succeeding$`, testCtx.everyPageFailsTimesWithBeforeSucceeding)
	sc.Step(`^page (\d+) always fails with "([^"]*)"$`, testCtx.pageAlwaysFailsWith)
	sc.Step(`^every page always fails with "([^"]*)"$`, testCtx.everyPageAlwaysFailsWith)
	sc.Step(`^the run uses concurrency (\d+)$`, testCtx.theRunUsesConcurrency)
	sc.Step(`^the run allows (\d+) attempts? per page$`, testCtx.theRunAllowsAttemptsPerPage)
	sc.Step(`^the run drains cancelled work gracefully$`, testCtx.theRunDrainsCancelledWorkGracefully)
	sc.Step(`^the run is cancelled before it starts$`, testCtx.theRunIsCancelledBeforeItStarts)

	// Execution.
	sc.Step(`^the batch run executes$`, testCtx.theBatchRunExecutes)
	sc.Step(`^the batch run starts in the background$`, testCtx.theBatchRunStartsInTheBackground)
	sc.Step(`^the run is cancelled once (\d+) calls? are in flight$`, testCtx.theRunIsCancelledOnceCallsAreInFlight)
	sc.Step(`^the held calls are released$`, testCtx.theHeldCallsAreReleased)
	sc.Step(`^the background run finishes$`, testCtx.theBackgroundRunFinishes)

	// Outcomes.
	sc.Step(`^the run status is "([^"]*)"$`, testCtx.theRunStatusIs)
	sc.Step(`^every page has recognized text$`, testCtx.everyPageHasRecognizedText)
	sc.Step(`^the outcomes are in page order$`, testCtx.theOutcomesAreInPageOrder)
	sc.Step(`^page (\d+) succeeded after (\d+) attempts?$`, testCtx.pageSucceededAfterAttempts)
	sc.Step(`^page (\d+) failed with "([^"]*)" after (\d+) attempts?$`, testCtx.pageFailedWithAfterAttempts)
	sc.Step(`^(\d+) pages? succeeded and (\d+) failed$`, testCtx.pagesSucceededAndFailed)
	sc.Step(`^the first (\d+) pages? succeeded$`, testCtx.theFirstPagesSucceeded)
	sc.Step(`^the remaining pages are cancelled without any attempt$`, testCtx.theRemainingPagesAreCancelledWithoutAnyAttempt)
	sc.Step(`^every page is cancelled without any attempt$`, testCtx.everyPageIsCancelledWithoutAnyAttempt)

	// Service observations.
	sc.Step(`^the service saw (\d+) calls? for page (\d+)$`, testCtx.theServiceSawCallsForPage)
	sc.Step(`^the service received no calls$`, testCtx.theServiceReceivedNoCalls)
	sc.Step(`^at most (\d+) calls? were in flight at once$`, testCtx.atMostCallsWereInFlightAtOnce)
	sc.Step(`^no page needed more than (\d+) attempts?$`, testCtx.noPageNeededMoreThanAttempts)

	// Progress.
	sc.Step(`^progress reached (\d+) of (\d+) pages?$`, testCtx.progressReachedOfPages)
	sc.Step(`^completion was reported once$`, testCtx.completionWasReportedOnce)
	sc.Step(`^cancellation was reported$`, testCtx.cancellationWasReported)
}
