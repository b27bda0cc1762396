package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Exit codes for the command.
const (
	ExitSuccess      = 0 // Phase completed, whatever its assertions reported
	ExitFailure      = 1 // A phase behavior returned an error
	ExitCommandError = 2 // Usage, invalid phase, unknown test, no sandbox, bad scenario file
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// UsageError is returned when the command line does not name a phase and
// a test.
type UsageError struct {
	Args []string
}

func (e *UsageError) Error() string {
	switch {
	case len(e.Args) == 0:
		return "missing <phase> and <test>"
	case len(e.Args) == 1:
		return fmt.Sprintf("missing <test> after phase %q", e.Args[0])
	default:
		return fmt.Sprintf("expected 2 arguments, got %d: %s", len(e.Args), strings.Join(e.Args, " "))
	}
}

// OutputFormatter writes --list output as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// TestListing is one entry of --list output.
type TestListing struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// CLIResponse is the JSON envelope for --list.
type CLIResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	RunID  string      `json:"run_id,omitempty"`
}

// List writes the registered tests. Text output is one test per line with
// descriptions aligned.
func (f *OutputFormatter) List(tests []TestListing, runID string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   tests,
			RunID:  runID,
		})
	}

	width := 0
	for _, t := range tests {
		if len(t.Name) > width {
			width = len(t.Name)
		}
	}
	for _, t := range tests {
		if _, err := fmt.Fprintf(f.Writer, "%-*s  %s\n", width, t.Name, t.Description); err != nil {
			return err
		}
	}
	return nil
}
