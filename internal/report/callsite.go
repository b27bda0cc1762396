package report

import (
	"bufio"
	"os"
	"runtime"
	"sync"
)

// SourceCache reads source lines for call sites. Files are read once and
// kept for the life of the process. When the source is not available (the
// binary runs away from its checkout) lines come back empty.
type SourceCache struct {
	mu    sync.Mutex
	files map[string][]string
}

// NewSourceCache creates an empty cache.
func NewSourceCache() *SourceCache {
	return &SourceCache{files: make(map[string][]string)}
}

// Line returns the 1-indexed line of file, or "" if it cannot be read.
func (c *SourceCache) Line(file string, line int) string {
	if file == "" || line < 1 {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lines, ok := c.files[file]
	if !ok {
		lines = readLines(file)
		c.files[file] = lines
	}
	if line > len(lines) {
		return ""
	}
	return lines[line-1]
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// Capture builds the call site of the function skip frames above the
// caller of Capture: Capture(0) describes the function calling Capture,
// Capture(1) its caller, and so on. caller names the enclosing test.
func (c *SourceCache) Capture(skip int, caller string) CallSite {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return CallSite{Caller: caller}
	}
	return CallSite{
		File:   file,
		Line:   line,
		Caller: caller,
		Source: c.Line(file, line),
	}
}
