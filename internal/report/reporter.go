// Package report prints assertion outcomes as colored status lines.
//
// Each outcome is printed as soon as it is reported and then forgotten: the
// reporter keeps no tally, and a failure never interrupts the caller. A
// runner wrapping the harness decides pass/fail by scanning the output.
//
// Passed assertion:
//
//	Assert in line 42 passed: save_empty_file
//
// Failed assertion:
//
//	Assert in line 43 failed: save_empty_file
//	args = ("a", "b"), kwargs = {}
//	v.Equal(got, "b")
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// CallSite identifies where an assertion was made. It is for display only
// and has no effect on whether the assertion passed.
type CallSite struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line"`
	Caller string `json:"caller"` // enclosing test name
	Source string `json:"source"` // literal text of the asserting statement
}

// Outcome is the result of a single assertion.
type Outcome struct {
	Passed bool
	Site   CallSite
	Args   []any
	Kwargs map[string]any
}

// Reporter writes outcomes to a stream.
type Reporter struct {
	out     io.Writer
	palette Palette
}

// New creates a reporter writing to out with the given palette.
func New(out io.Writer, palette Palette) *Reporter {
	return &Reporter{out: out, palette: palette}
}

// Header announces the phase about to run.
func (r *Reporter) Header(phase, test string) {
	r.line(r.palette.Header, fmt.Sprintf("Launching %s on %s", phase, test))
}

// Report prints one outcome: a single line when it passed, three lines
// (header, arguments, source) when it failed.
func (r *Reporter) Report(o Outcome) {
	if o.Passed {
		r.line(r.palette.Pass, fmt.Sprintf("Assert in line %d passed: %s", o.Site.Line, o.Site.Caller))
		return
	}

	r.line(r.palette.Fail, fmt.Sprintf("Assert in line %d failed: %s", o.Site.Line, o.Site.Caller))
	r.line(r.palette.Detail, fmt.Sprintf("args = %s, kwargs = %s", FormatArgs(o.Args), FormatKwargs(o.Kwargs)))
	source := strings.TrimSpace(o.Site.Source)
	if source == "" {
		source = "<source unavailable>"
	}
	r.line(r.palette.Detail, source)
}

// line writes one styled line. Write errors are ignored: there is nowhere
// left to report them.
func (r *Reporter) line(style lipgloss.Style, text string) {
	fmt.Fprintln(r.out, style.Render(text))
}

// FormatArgs renders positional arguments as a parenthesized list of Go
// literals, e.g. ("a", "b").
func FormatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatValue(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// FormatKwargs renders keyword arguments sorted by key, e.g. {name: "a"}.
func FormatKwargs(kwargs map[string]any) string {
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + formatValue(kwargs[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []byte:
		return fmt.Sprintf("%q", val)
	case error:
		return fmt.Sprintf("error(%q)", val.Error())
	default:
		return fmt.Sprintf("%#v", val)
	}
}
