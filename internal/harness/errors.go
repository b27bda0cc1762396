package harness

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRegistryFrozen is returned by Register once dispatch has begun.
var ErrRegistryFrozen = errors.New("test registry is frozen")

// DuplicateTestError is returned when a name is registered twice.
type DuplicateTestError struct {
	Name     string
	Existing string // source of the case already registered
	Incoming string // source of the rejected case
}

// Error implements the error interface.
func (e *DuplicateTestError) Error() string {
	return fmt.Sprintf("test %q from %s is already registered from %s", e.Name, e.Incoming, e.Existing)
}

// UnknownTestError is returned when a test name is not in the registry.
type UnknownTestError struct {
	Name  string
	Known []string
}

// Error implements the error interface.
func (e *UnknownTestError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown test %q: no tests registered", e.Name)
	}
	return fmt.Sprintf("unknown test %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// InvalidPhaseError is returned for a phase other than exercise or verify.
type InvalidPhaseError struct {
	Phase string
}

// Error implements the error interface.
func (e *InvalidPhaseError) Error() string {
	return fmt.Sprintf("invalid phase %q: must be %q or %q", e.Phase, PhaseExercise, PhaseVerify)
}

// ScenarioError describes a scenario file that cannot be loaded.
// Line is 0 when the problem is not tied to a line.
type ScenarioError struct {
	Path    string
	Line    int
	Message string
}

// Error implements the error interface.
func (e *ScenarioError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}
