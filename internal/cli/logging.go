package cli

import (
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"
)

// newLogger builds the stderr logger for one invocation. Every record
// carries the run ID so the exercise and verify processes can be told
// apart in a combined log.
func newLogger(w io.Writer, verbose bool, runID string) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler).With("run_id", runID)
}

// newRunID returns a time-sortable identifier for this invocation.
func newRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// envBool reads a boolean environment variable. Unset, empty and
// unparsable values are false.
func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
