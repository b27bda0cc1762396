package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fssbcheck/internal/fsops"
	"github.com/roach88/fssbcheck/internal/manifest"
	"github.com/roach88/fssbcheck/internal/report"
	"github.com/roach88/fssbcheck/internal/sandbox"
)

// Scenario is a test case written as data. Exercise steps run in order
// under the sandbox; verify expectations are each reported as one
// assertion pointing at their line in the scenario file.
type Scenario struct {
	// Name is the test name used on the command line.
	Name string `yaml:"name"`

	// Description is shown by --list.
	Description string `yaml:"description"`

	// Exercise lists file operations. May be empty.
	Exercise []Step `yaml:"exercise,omitempty"`

	// Verify lists expectations about the sandbox instance.
	Verify []Expectation `yaml:"verify"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-"`
}

// Step is one file operation. Exactly one of the operation keys is set.
type Step struct {
	Create string `yaml:"create,omitempty"`
	Append string `yaml:"append,omitempty"`
	Remove string `yaml:"remove,omitempty"`
	Read   string `yaml:"read,omitempty"`
	Rename string `yaml:"rename,omitempty"`

	// To is the new name for rename.
	To string `yaml:"to,omitempty"`

	// Content is written by create (default empty) and append (required).
	Content *string `yaml:"content,omitempty"`

	// Expect, when set on read, must equal what was read.
	Expect *string `yaml:"expect,omitempty"`

	Line   int    `yaml:"-"`
	Source string `yaml:"-"`
}

// Expectation is one verify assertion. Exactly one of Manifest,
// ManifestRaw, Artifact and Absent is set.
type Expectation struct {
	// Manifest lists the expected original names. Compared as a multiset
	// unless Ordered is set.
	Manifest []string `yaml:"manifest,omitempty"`
	Ordered  bool     `yaml:"ordered,omitempty"`

	// ManifestRaw is the exact expected file-map content after expansion
	// of ${instance}, ${key:NAME} and ${artifact:NAME}.
	ManifestRaw *string `yaml:"manifest_raw,omitempty"`

	// Artifact names a file whose staged content must equal Content.
	Artifact string  `yaml:"artifact,omitempty"`
	Content  *string `yaml:"content,omitempty"`

	// Absent names a file that must have no artifact.
	Absent string `yaml:"absent,omitempty"`

	Line   int    `yaml:"-"`
	Source string `yaml:"-"`

	hasManifest bool
}

// Step operation names.
const (
	OpCreate = "create"
	OpAppend = "append"
	OpRemove = "remove"
	OpRead   = "read"
	OpRename = "rename"
)

// Expectation kinds.
const (
	ExpectManifest    = "manifest"
	ExpectManifestRaw = "manifest_raw"
	ExpectArtifact    = "artifact"
	ExpectAbsent      = "absent"
)

// Op returns the operation of the step and its file name.
func (s *Step) Op() (string, string) {
	switch {
	case s.Create != "":
		return OpCreate, s.Create
	case s.Append != "":
		return OpAppend, s.Append
	case s.Remove != "":
		return OpRemove, s.Remove
	case s.Read != "":
		return OpRead, s.Read
	case s.Rename != "":
		return OpRename, s.Rename
	}
	return "", ""
}

// Kind returns which expectation this is.
func (e *Expectation) Kind() string {
	switch {
	case e.hasManifest:
		return ExpectManifest
	case e.ManifestRaw != nil:
		return ExpectManifestRaw
	case e.Artifact != "":
		return ExpectArtifact
	case e.Absent != "":
		return ExpectAbsent
	}
	return ""
}

// LoadScenario reads, validates and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario validates and parses scenario YAML. path is used for
// error messages and call sites only.
func ParseScenario(path string, data []byte) (*Scenario, error) {
	if err := validateSchema(path, data); err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ScenarioError{Path: path, Message: fmt.Sprintf("failed to parse YAML: %v", err)}
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, &ScenarioError{Path: path, Message: fmt.Sprintf("failed to parse YAML: %v", err)}
	}
	scenario.Path = path

	lines := strings.Split(string(data), "\n")
	annotate(&root, lines, &scenario)

	if err := validateScenario(&scenario); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// annotate copies each list item's line and raw text from the node tree.
func annotate(root *yaml.Node, lines []string, s *Scenario) {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]
		if value.Kind != yaml.SequenceNode {
			continue
		}
		switch key.Value {
		case "exercise":
			for j, item := range value.Content {
				if j < len(s.Exercise) {
					s.Exercise[j].Line = item.Line
					s.Exercise[j].Source = sourceLine(lines, item.Line)
				}
			}
		case "verify":
			for j, item := range value.Content {
				if j < len(s.Verify) {
					s.Verify[j].Line = item.Line
					s.Verify[j].Source = sourceLine(lines, item.Line)
					s.Verify[j].hasManifest = hasKey(item, "manifest")
				}
			}
		}
	}
}

func hasKey(n *yaml.Node, name string) bool {
	if n.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == name {
			return true
		}
	}
	return false
}

func sourceLine(lines []string, line int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}

// validateScenario checks what the schema cannot: exactly one operation
// per step, keys that only make sense together, and file names.
func validateScenario(s *Scenario) error {
	fail := func(line int, format string, args ...any) error {
		return &ScenarioError{Path: s.Path, Line: line, Message: fmt.Sprintf(format, args...)}
	}

	for i := range s.Exercise {
		step := &s.Exercise[i]
		ops := 0
		for _, name := range []string{step.Create, step.Append, step.Remove, step.Read, step.Rename} {
			if name != "" {
				ops++
			}
		}
		if ops != 1 {
			return fail(step.Line, "exercise[%d]: exactly one of create, append, remove, read, rename is required", i)
		}

		op, name := step.Op()
		if err := checkFileName(name); err != nil {
			return fail(step.Line, "exercise[%d]: %v", i, err)
		}
		switch op {
		case OpAppend:
			if step.Content == nil {
				return fail(step.Line, "exercise[%d]: append requires content", i)
			}
		case OpRename:
			if step.To == "" {
				return fail(step.Line, "exercise[%d]: rename requires to", i)
			}
			if err := checkFileName(step.To); err != nil {
				return fail(step.Line, "exercise[%d]: %v", i, err)
			}
		}
		if step.To != "" && op != OpRename {
			return fail(step.Line, "exercise[%d]: to is only valid with rename", i)
		}
		if step.Content != nil && op != OpCreate && op != OpAppend {
			return fail(step.Line, "exercise[%d]: content is only valid with create or append", i)
		}
		if step.Expect != nil && op != OpRead {
			return fail(step.Line, "exercise[%d]: expect is only valid with read", i)
		}
	}

	for i := range s.Verify {
		exp := &s.Verify[i]
		kinds := 0
		for _, set := range []bool{exp.hasManifest, exp.ManifestRaw != nil, exp.Artifact != "", exp.Absent != ""} {
			if set {
				kinds++
			}
		}
		if kinds != 1 {
			return fail(exp.Line, "verify[%d]: exactly one of manifest, manifest_raw, artifact, absent is required", i)
		}

		switch exp.Kind() {
		case ExpectManifest:
			for _, name := range exp.Manifest {
				if err := checkFileName(name); err != nil {
					return fail(exp.Line, "verify[%d]: %v", i, err)
				}
			}
		case ExpectArtifact:
			if exp.Content == nil {
				return fail(exp.Line, "verify[%d]: artifact requires content", i)
			}
			if err := checkFileName(exp.Artifact); err != nil {
				return fail(exp.Line, "verify[%d]: %v", i, err)
			}
		case ExpectAbsent:
			if err := checkFileName(exp.Absent); err != nil {
				return fail(exp.Line, "verify[%d]: %v", i, err)
			}
		}
		if exp.Ordered && exp.Kind() != ExpectManifest {
			return fail(exp.Line, "verify[%d]: ordered is only valid with manifest", i)
		}
		if exp.Content != nil && exp.Kind() != ExpectArtifact {
			return fail(exp.Line, "verify[%d]: content is only valid with artifact", i)
		}
	}

	return nil
}

// checkFileName rejects names whose content key would depend on how the
// YAML was written: the tool hashes raw bytes, so a scenario author typing
// a composed character must get the bytes they see.
func checkFileName(name string) error {
	if !norm.NFC.IsNormalString(name) {
		return fmt.Errorf("file name %q is not in Unicode NFC form", name)
	}
	return nil
}

// LoadScenarios loads every .yaml and .yml file directly under dir, sorted
// by file name. Names must be unique across the directory.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	seen := make(map[string]string)
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, &ScenarioError{Path: path, Message: fmt.Sprintf("scenario %q is already defined in %s", s.Name, prev)}
		}
		seen[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// RegisterScenarios adds each scenario to r as a test case.
func RegisterScenarios(r *Registry, scenarios []*Scenario) error {
	for _, s := range scenarios {
		if err := r.Register(s.TestCase()); err != nil {
			return err
		}
	}
	return nil
}

// TestCase turns the scenario into a runnable test case.
func (s *Scenario) TestCase() TestCase {
	return TestCase{
		Name:        s.Name,
		Description: s.Description,
		Exercise:    s.exercise,
		Verify:      s.verify,
		Source:      s.Path,
	}
}

func (s *Scenario) exercise(ctx context.Context, logger *slog.Logger) error {
	for i := range s.Exercise {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := &s.Exercise[i]
		op, name := step.Op()
		logger.Debug("exercise step", "scenario", s.Name, "line", step.Line, "op", op, "name", name)
		if err := runStep(step); err != nil {
			return fmt.Errorf("%s:%d: %w", s.Path, step.Line, err)
		}
	}
	return nil
}

func runStep(step *Step) error {
	op, name := step.Op()
	switch op {
	case OpCreate:
		return fsops.Create(name, []byte(deref(step.Content)))
	case OpAppend:
		return fsops.Append(name, []byte(deref(step.Content)))
	case OpRemove:
		return fsops.Remove(name)
	case OpRename:
		return fsops.Rename(name, step.To)
	case OpRead:
		got, err := fsops.Read(name)
		if err != nil {
			return err
		}
		if step.Expect != nil && string(got) != *step.Expect {
			return fmt.Errorf("read %q from %s, expected %q", got, name, *step.Expect)
		}
		return nil
	}
	return fmt.Errorf("step has no operation")
}

func (s *Scenario) verify(ctx context.Context, c *Checker) error {
	inst := c.Instance()
	for i := range s.Verify {
		exp := &s.Verify[i]
		site := report.CallSite{
			File:   s.Path,
			Line:   exp.Line,
			Caller: s.Name,
			Source: exp.Source,
		}

		switch exp.Kind() {
		case ExpectManifest:
			m, err := c.ReadManifest()
			if err != nil {
				return err
			}
			want := make([]manifest.Entry, 0, len(exp.Manifest))
			for _, name := range exp.Manifest {
				want = append(want, manifest.Entry{ArtifactPath: inst.ArtifactPath(name), OriginalName: name})
			}
			ok := manifest.SameEntries(m.Entries, want)
			if exp.Ordered {
				ok = manifest.SameOrder(m.Entries, want)
			}
			c.ThatAt(site, ok, []any{m.OriginalNames(), exp.Manifest}, map[string]any{"ordered": exp.Ordered})

		case ExpectManifestRaw:
			raw, err := c.ReadManifestRaw()
			if err != nil {
				return err
			}
			want := ExpandManifest(*exp.ManifestRaw, inst)
			c.ThatAt(site, string(raw) == want, []any{string(raw), want}, nil)

		case ExpectArtifact:
			data, err := c.ReadArtifact(exp.Artifact)
			if err != nil {
				c.ThatAt(site, false, []any{exp.Artifact}, map[string]any{"error": err})
				continue
			}
			c.ThatAt(site, string(data) == *exp.Content, []any{string(data), *exp.Content}, nil)

		case ExpectAbsent:
			path := inst.ArtifactPath(exp.Absent)
			_, err := os.Lstat(path)
			ok := errors.Is(err, fs.ErrNotExist)
			c.ThatAt(site, ok, []any{path}, nil)
		}
	}
	return nil
}

// ExpandManifest substitutes ${instance}, ${key:NAME} and ${artifact:NAME}
// in a manifest_raw expectation. Other ${...} references are left as is.
func ExpandManifest(text string, inst sandbox.Instance) string {
	var b strings.Builder
	for {
		start := strings.Index(text, "${")
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		end := strings.IndexByte(text[start:], '}')
		if end < 0 {
			b.WriteString(text)
			return b.String()
		}
		end += start

		b.WriteString(text[:start])
		ref := text[start+2 : end]
		switch {
		case ref == "instance":
			b.WriteString(inst.Path)
		case strings.HasPrefix(ref, "key:"):
			b.WriteString(sandbox.ContentKey(strings.TrimPrefix(ref, "key:")))
		case strings.HasPrefix(ref, "artifact:"):
			b.WriteString(inst.ArtifactPath(strings.TrimPrefix(ref, "artifact:")))
		default:
			b.WriteString(text[start : end+1])
		}
		text = text[end+1:]
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
