package harness

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/fssbcheck/internal/manifest"
	"github.com/roach88/fssbcheck/internal/report"
	"github.com/roach88/fssbcheck/internal/sandbox"
)

// Checker is handed to verify behaviors. Every assertion method reports its
// outcome immediately and returns whether it passed; a failed assertion
// never stops the behavior.
//
// Call sites are captured from the stack, so assertion methods must be
// called directly from the verify body, not from a helper. Helpers that
// want their caller's line should use ThatAt with a site from Site.
type Checker struct {
	test     string
	instance sandbox.Instance
	reporter *report.Reporter
	sources  *report.SourceCache
	logger   *slog.Logger
}

// NewChecker creates a checker for one test against one sandbox instance.
func NewChecker(test string, instance sandbox.Instance, reporter *report.Reporter, sources *report.SourceCache, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sources == nil {
		sources = report.NewSourceCache()
	}
	return &Checker{
		test:     test,
		instance: instance,
		reporter: reporter,
		sources:  sources,
		logger:   logger,
	}
}

// Test returns the name of the test being verified.
func (c *Checker) Test() string {
	return c.test
}

// Instance returns the sandbox instance under inspection.
func (c *Checker) Instance() sandbox.Instance {
	return c.instance
}

// That reports ok, displaying args on failure.
func (c *Checker) That(ok bool, args ...any) bool {
	return c.record(ok, args, nil)
}

// True reports ok with no arguments to display.
func (c *Checker) True(ok bool) bool {
	return c.record(ok, nil, nil)
}

// Equal reports whether got and want are equal under cmp.Equal. Errors
// compare with errors.Is. Values cmp cannot compare, such as structs with
// unexported fields, are reported as a failure with the reason in kwargs.
func (c *Checker) Equal(got, want any) bool {
	ok, err := c.compare(got, want)
	var kwargs map[string]any
	if err != nil {
		kwargs = map[string]any{"error": err}
	}
	return c.record(ok, []any{got, want}, kwargs)
}

func (c *Checker) compare(got, want any) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("cannot compare: %v", r)
		}
	}()
	ok = cmp.Equal(got, want, cmpopts.EquateErrors())
	if !ok {
		c.logger.Debug("values differ",
			"test", c.test,
			"diff", cmp.Diff(want, got, cmpopts.EquateErrors()))
	}
	return ok, nil
}

// NotExists reports whether nothing exists at path.
func (c *Checker) NotExists(path string) bool {
	_, err := os.Lstat(path)
	ok := errors.Is(err, fs.ErrNotExist)
	var kwargs map[string]any
	if !ok && err != nil {
		kwargs = map[string]any{"error": err}
	}
	return c.record(ok, []any{path}, kwargs)
}

// ThatAt reports ok against an explicit call site. Declarative scenarios
// use it to point at the line of the scenario file.
func (c *Checker) ThatAt(site report.CallSite, ok bool, args []any, kwargs map[string]any) bool {
	if site.Caller == "" {
		site.Caller = c.test
	}
	c.report(ok, site, args, kwargs)
	return ok
}

// Site captures the call site skip frames above the caller of Site.
func (c *Checker) Site(skip int) report.CallSite {
	return c.sources.Capture(skip+1, c.test)
}

// ReadManifest reads and parses the instance's file-map.
func (c *Checker) ReadManifest() (*manifest.Manifest, error) {
	return manifest.Read(c.instance.ManifestPath())
}

// ReadManifestRaw returns the exact bytes of the instance's file-map.
func (c *Checker) ReadManifestRaw() ([]byte, error) {
	data, err := os.ReadFile(c.instance.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read file-map: %w", err)
	}
	return data, nil
}

// ReadArtifact returns the content the tool staged for originalName.
func (c *Checker) ReadArtifact(originalName string) ([]byte, error) {
	path := c.instance.ArtifactPath(originalName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact for %q: %w", originalName, err)
	}
	return data, nil
}

// record is called by the exported assertion methods only, so the verify
// body is always two frames up.
func (c *Checker) record(ok bool, args []any, kwargs map[string]any) bool {
	site := c.sources.Capture(2, c.test)
	c.report(ok, site, args, kwargs)
	return ok
}

func (c *Checker) report(ok bool, site report.CallSite, args []any, kwargs map[string]any) {
	c.logger.Debug("assertion",
		"test", c.test,
		"passed", ok,
		"file", site.File,
		"line", site.Line)
	c.reporter.Report(report.Outcome{
		Passed: ok,
		Site:   site,
		Args:   args,
		Kwargs: kwargs,
	})
}
