// Package manifest reads and writes the sandboxing tool's file-map.
//
// The file-map is UTF-8 text with one redirection per line:
//
//	<artifactPath> = <originalName>\n
//
// An empty file-map is the valid representation of "no file operations
// observed". The trailing newline after the last entry is what the current
// tool emits, but it is reported (Manifest.TrailingNewline) rather than
// assumed, so verify phases can assert on it.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Separator sits between the artifact path and the original name.
const Separator = " = "

// Entry is one redirection recorded by the tool.
type Entry struct {
	ArtifactPath string `json:"artifact_path"`
	OriginalName string `json:"original_name"`
}

// String renders the entry as a file-map line without the newline.
func (e Entry) String() string {
	return e.ArtifactPath + Separator + e.OriginalName
}

// Manifest is a parsed file-map. Raw keeps the exact bytes so byte-level
// assertions stay possible.
type Manifest struct {
	Raw             []byte
	Entries         []Entry
	TrailingNewline bool
}

// Empty reports whether the tool recorded nothing.
func (m *Manifest) Empty() bool {
	return len(m.Raw) == 0
}

// OriginalNames returns the original names in recorded order.
func (m *Manifest) OriginalNames() []string {
	names := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		names[i] = e.OriginalName
	}
	return names
}

// Lookup returns the first entry recorded for originalName.
func (m *Manifest) Lookup(originalName string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.OriginalName == originalName {
			return e, true
		}
	}
	return Entry{}, false
}

// ParseError reports a malformed file-map line.
type ParseError struct {
	Line   int // 1-indexed
	Text   string
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("file-map line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Parse decodes file-map content. A missing trailing newline is accepted and
// reported through TrailingNewline.
//
// Lines are split at the first separator: artifact paths are generated by
// the tool from the scratch root and a hex key, while original names are
// arbitrary and may themselves contain " = ".
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{Raw: data}
	if len(data) == 0 {
		return m, nil
	}

	body := data
	if bytes.HasSuffix(body, []byte("\n")) {
		m.TrailingNewline = true
		body = body[:len(body)-1]
	}

	for i, line := range strings.Split(string(body), "\n") {
		artifact, name, found := strings.Cut(line, Separator)
		switch {
		case line == "":
			return nil, &ParseError{Line: i + 1, Text: line, Reason: "empty line"}
		case !found:
			return nil, &ParseError{Line: i + 1, Text: line, Reason: fmt.Sprintf("missing %q separator", Separator)}
		case artifact == "":
			return nil, &ParseError{Line: i + 1, Text: line, Reason: "empty artifact path"}
		case name == "":
			return nil, &ParseError{Line: i + 1, Text: line, Reason: "empty original name"}
		}
		m.Entries = append(m.Entries, Entry{ArtifactPath: artifact, OriginalName: name})
	}

	return m, nil
}

// Read loads and parses the file-map at path.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file-map: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}

// Format encodes entries the way the tool writes them: every entry on its
// own line, each terminated by a newline. Entries that cannot be represented
// in the line format are rejected.
func Format(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	for i, e := range entries {
		if e.ArtifactPath == "" || e.OriginalName == "" {
			return nil, fmt.Errorf("entry %d: artifact path and original name are required", i)
		}
		if strings.ContainsAny(e.ArtifactPath, "\n") || strings.ContainsAny(e.OriginalName, "\n") {
			return nil, fmt.Errorf("entry %d: newlines cannot be represented in a file-map", i)
		}
		if strings.Contains(e.ArtifactPath, Separator) {
			return nil, fmt.Errorf("entry %d: artifact path %q contains the separator", i, e.ArtifactPath)
		}
		buf.WriteString(e.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// SameEntries reports whether a and b hold the same entries as a multiset,
// ignoring recorded order.
func SameEntries(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	return equalEntries(sortedCopy(a), sortedCopy(b))
}

// SameOrder reports whether a and b hold the same entries in the same order.
func SameOrder(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	return equalEntries(a, b)
}

func equalEntries(a, b []Entry) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedCopy(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].OriginalName != out[j].OriginalName {
			return out[i].OriginalName < out[j].OriginalName
		}
		return out[i].ArtifactPath < out[j].ArtifactPath
	})
	return out
}
