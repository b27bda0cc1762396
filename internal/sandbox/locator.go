package sandbox

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Defaults match the paths the sandboxing tool uses.
const (
	DefaultRoot   = "/tmp"
	DefaultPrefix = "fssb"

	// ManifestName is the file-map location relative to an instance directory.
	ManifestName = "file-map"
)

// Instance is one run's staging directory.
type Instance struct {
	Path    string `json:"path"`
	Ordinal int    `json:"ordinal"`
}

// ManifestPath returns the path of the instance's file-map.
// It does not check that the file exists.
func (i Instance) ManifestPath() string {
	return filepath.Join(i.Path, ManifestName)
}

// ArtifactPath returns where the tool stores the redirected copy of
// originalName inside this instance.
func (i Instance) ArtifactPath(originalName string) string {
	return filepath.Join(i.Path, ContentKey(originalName))
}

// NoSandboxError is returned when no instance directory exists under the
// scratch root. Verify phases cannot run without one.
type NoSandboxError struct {
	Root    string
	Pattern string
}

// Error implements the error interface.
func (e *NoSandboxError) Error() string {
	return fmt.Sprintf("no sandbox instance found: nothing matches %s in %s", e.Pattern, e.Root)
}

// Is lets callers match with errors.Is(err, ErrNoSandboxFound).
func (e *NoSandboxError) Is(target error) bool {
	return target == ErrNoSandboxFound
}

// ErrNoSandboxFound matches any *NoSandboxError.
var ErrNoSandboxFound = &NoSandboxError{}

// Locator finds sandbox instances under a scratch root.
type Locator struct {
	Root   string
	Prefix string

	logger *slog.Logger
}

// NewLocator creates a locator. Empty root or prefix fall back to the defaults.
func NewLocator(root, prefix string, logger *slog.Logger) *Locator {
	if root == "" {
		root = DefaultRoot
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Locator{Root: root, Prefix: prefix, logger: logger}
}

// Pattern describes the directory names the locator accepts.
func (l *Locator) Pattern() string {
	return l.Prefix + "-<ordinal>"
}

// Instances lists every candidate instance, greatest ordinal first.
// Ties keep directory-listing order; callers must not rely on it.
func (l *Locator) Instances() ([]Instance, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read scratch root %s: %w", l.Root, err)
	}

	var instances []Instance
	for _, entry := range entries {
		ordinal, ok := l.parseOrdinal(entry.Name())
		if !ok {
			continue
		}
		if !entry.IsDir() {
			l.logger.Debug("skipping non-directory candidate", "name", entry.Name())
			continue
		}
		instances = append(instances, Instance{
			Path:    filepath.Join(l.Root, entry.Name()),
			Ordinal: ordinal,
		})
	}

	sort.SliceStable(instances, func(a, b int) bool {
		return instances[a].Ordinal > instances[b].Ordinal
	})
	return instances, nil
}

// Current returns the instance with the greatest ordinal.
func (l *Locator) Current() (Instance, error) {
	instances, err := l.Instances()
	if err != nil {
		return Instance{}, err
	}
	if len(instances) == 0 {
		return Instance{}, &NoSandboxError{Root: l.Root, Pattern: l.Pattern()}
	}

	current := instances[0]
	l.logger.Debug("selected sandbox instance",
		"path", current.Path,
		"ordinal", current.Ordinal,
		"candidates", len(instances),
	)
	return current, nil
}

// parseOrdinal extracts the ordinal from "<prefix>-<digits>".
// Signs, spaces and empty suffixes are rejected.
func (l *Locator) parseOrdinal(name string) (int, bool) {
	suffix, found := strings.CutPrefix(name, l.Prefix+"-")
	if !found || suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			l.logger.Debug("skipping candidate with non-numeric ordinal", "name", name)
			return 0, false
		}
	}
	ordinal, err := strconv.Atoi(suffix)
	if err != nil {
		l.logger.Debug("skipping candidate with unparsable ordinal", "name", name, "error", err)
		return 0, false
	}
	return ordinal, true
}
