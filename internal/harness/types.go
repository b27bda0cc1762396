package harness

import (
	"context"
	"log/slog"
)

// Phase selects which half of a test case runs in this process.
type Phase string

const (
	// PhaseExercise runs under the sandbox and performs file operations.
	PhaseExercise Phase = "exercise"
	// PhaseVerify runs outside the sandbox and inspects its artifacts.
	PhaseVerify Phase = "verify"
)

// Phases lists the valid phases in the order they run.
var Phases = []Phase{PhaseExercise, PhaseVerify}

// ParsePhase validates a phase argument.
func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases {
		if string(p) == s {
			return p, nil
		}
	}
	return "", &InvalidPhaseError{Phase: s}
}

// ExerciseFunc performs the file operations of a test case. It runs with
// the working directory the outer invoker chose, under the sandbox.
type ExerciseFunc func(ctx context.Context, logger *slog.Logger) error

// VerifyFunc inspects the sandbox instance through a Checker. Returning an
// error aborts the phase; failed assertions do not.
type VerifyFunc func(ctx context.Context, c *Checker) error

// TestCase is a named pair of behaviors. Nothing is carried from Exercise
// to Verify: they run in different processes.
type TestCase struct {
	Name        string
	Description string
	Exercise    ExerciseFunc
	Verify      VerifyFunc

	// Source is where the case was defined: "builtin" or a scenario path.
	Source string
}
