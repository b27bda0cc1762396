package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/fssbcheck/internal/report"
	"github.com/roach88/fssbcheck/internal/sandbox"
)

// Runner dispatches one phase of one test case.
type Runner struct {
	registry *Registry
	locator  *sandbox.Locator
	reporter *report.Reporter
	sources  *report.SourceCache
	logger   *slog.Logger
}

// NewRunner creates a runner. The registry is frozen by the first Run.
func NewRunner(registry *Registry, locator *sandbox.Locator, reporter *report.Reporter, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		registry: registry,
		locator:  locator,
		reporter: reporter,
		sources:  report.NewSourceCache(),
		logger:   logger,
	}
}

// PhaseError wraps an error returned by a test behavior, as opposed to a
// configuration problem found before the behavior started.
type PhaseError struct {
	Phase Phase
	Test  string
	Err   error
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Test, e.Err)
}

// Unwrap returns the behavior's error.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Run executes phase of the named test.
//
// The test is looked up before anything is printed, and verify locates the
// sandbox instance before its behavior starts, so configuration errors
// never leave a half-run phase behind. Errors from the behavior itself are
// returned as *PhaseError.
func (r *Runner) Run(ctx context.Context, phase Phase, name string) error {
	r.registry.Freeze()

	tc, err := r.registry.Lookup(name)
	if err != nil {
		return err
	}

	switch phase {
	case PhaseExercise:
		r.reporter.Header(string(phase), name)
		r.logger.Debug("running exercise", "test", name, "source", tc.Source)
		if err := tc.Exercise(ctx, r.logger); err != nil {
			return &PhaseError{Phase: phase, Test: name, Err: err}
		}
		return nil

	case PhaseVerify:
		r.reporter.Header(string(phase), name)
		inst, err := r.locator.Current()
		if err != nil {
			return err
		}
		r.logger.Debug("running verify", "test", name, "source", tc.Source, "instance", inst.Path)
		checker := NewChecker(name, inst, r.reporter, r.sources, r.logger)
		if err := tc.Verify(ctx, checker); err != nil {
			return &PhaseError{Phase: phase, Test: name, Err: err}
		}
		return nil
	}

	return &InvalidPhaseError{Phase: string(phase)}
}
