// Package testutil provides a stand-in for the sandboxing tool so verify
// phases can be tested without it.
//
// The fake writes exactly what the tool leaves behind: a <prefix>-<n>
// directory per run holding one artifact per content key and a file-map
// listing them in recording order. Operations follow the tool's rules:
// writes are deduplicated by content key, unlink forgets the entry, and
// rename moves the artifact and re-records it under the new name.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fssbcheck/internal/manifest"
	"github.com/roach88/fssbcheck/internal/sandbox"
)

// Root is a scratch root that hands out instance ordinals in sequence.
type Root struct {
	Dir    string
	Prefix string

	mu   sync.Mutex
	next int
}

// NewRoot creates an empty scratch root under t.TempDir().
func NewRoot(t testing.TB) *Root {
	t.Helper()
	return &Root{Dir: t.TempDir(), Prefix: sandbox.DefaultPrefix}
}

// Locator returns a locator over the root.
func (r *Root) Locator() *sandbox.Locator {
	return sandbox.NewLocator(r.Dir, r.Prefix, nil)
}

// Next creates the instance after the highest one handed out so far.
func (r *Root) Next(t testing.TB) *Instance {
	t.Helper()
	r.mu.Lock()
	r.next++
	ordinal := r.next
	r.mu.Unlock()
	return r.At(t, ordinal)
}

// At creates the instance with the given ordinal and an empty file-map.
// Later calls to Next continue above ordinal.
func (r *Root) At(t testing.TB, ordinal int) *Instance {
	t.Helper()
	r.mu.Lock()
	if ordinal > r.next {
		r.next = ordinal
	}
	r.mu.Unlock()

	dir := filepath.Join(r.Dir, fmt.Sprintf("%s-%d", r.Prefix, ordinal))
	require.NoError(t, os.MkdirAll(dir, 0o755))

	inst := &Instance{
		Instance: sandbox.Instance{Path: dir, Ordinal: ordinal},
		t:        t,
	}
	inst.flush()
	return inst
}

// Instance is one fake sandbox run.
type Instance struct {
	sandbox.Instance

	t       testing.TB
	entries []manifest.Entry
}

// Op is one recorded file operation, for Replay.
type Op struct {
	Kind string // "create", "append", "unlink", "rename", "read"
	Name string
	To   string
	Data []byte
}

// Replay applies ops in order.
func (i *Instance) Replay(ops ...Op) *Instance {
	i.t.Helper()
	for _, op := range ops {
		switch op.Kind {
		case "create":
			i.Create(op.Name, op.Data)
		case "append":
			i.Append(op.Name, op.Data)
		case "unlink":
			i.Unlink(op.Name)
		case "rename":
			i.Rename(op.Name, op.To)
		case "read":
			// Read-only opens never add entries.
		default:
			i.t.Fatalf("unknown op kind %q", op.Kind)
		}
	}
	return i
}

// Create records an open for writing with O_TRUNC and writes data.
func (i *Instance) Create(name string, data []byte) *Instance {
	i.t.Helper()
	path := i.proxy(name)
	require.NoError(i.t, os.WriteFile(path, data, 0o644))
	i.flush()
	return i
}

// Append records an open with O_APPEND and appends data. The tool records
// the entry before redirecting the open, so appending to a name it never
// staged leaves an entry with no artifact.
func (i *Instance) Append(name string, data []byte) *Instance {
	i.t.Helper()
	path := i.proxy(name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if os.IsNotExist(err) {
		i.flush()
		return i
	}
	require.NoError(i.t, err)
	_, err = f.Write(data)
	require.NoError(i.t, err)
	require.NoError(i.t, f.Close())
	i.flush()
	return i
}

// Unlink removes the artifact and forgets the entry.
func (i *Instance) Unlink(name string) *Instance {
	i.t.Helper()
	path := i.ArtifactPath(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		require.NoError(i.t, err)
	}
	i.forget(name)
	i.flush()
	return i
}

// Rename moves the artifact of oldName to newName's key. As with the tool,
// an entry is only re-recorded when oldName was known.
func (i *Instance) Rename(oldName, newName string) *Instance {
	i.t.Helper()
	err := os.Rename(i.ArtifactPath(oldName), i.ArtifactPath(newName))
	if err != nil && !os.IsNotExist(err) {
		require.NoError(i.t, err)
	}
	if i.forget(oldName) {
		i.entries = append(i.entries, i.entry(newName))
	}
	i.flush()
	return i
}

// WriteManifest replaces the file-map with raw bytes, bypassing the model.
func (i *Instance) WriteManifest(raw string) *Instance {
	i.t.Helper()
	require.NoError(i.t, os.WriteFile(i.ManifestPath(), []byte(raw), 0o644))
	return i
}

// WriteArtifact writes an artifact without recording anything.
func (i *Instance) WriteArtifact(name string, data []byte) *Instance {
	i.t.Helper()
	require.NoError(i.t, os.WriteFile(i.ArtifactPath(name), data, 0o644))
	return i
}

// RemoveManifest deletes the file-map, as if the tool died early.
func (i *Instance) RemoveManifest() *Instance {
	i.t.Helper()
	require.NoError(i.t, os.Remove(i.ManifestPath()))
	return i
}

// Entries returns the modelled file-map entries.
func (i *Instance) Entries() []manifest.Entry {
	return append([]manifest.Entry(nil), i.entries...)
}

func (i *Instance) entry(name string) manifest.Entry {
	return manifest.Entry{ArtifactPath: i.ArtifactPath(name), OriginalName: name}
}

// proxy returns the artifact path for name, recording it on first use.
func (i *Instance) proxy(name string) string {
	for _, e := range i.entries {
		if e.OriginalName == name {
			return e.ArtifactPath
		}
	}
	e := i.entry(name)
	i.entries = append(i.entries, e)
	return e.ArtifactPath
}

func (i *Instance) forget(name string) bool {
	for idx, e := range i.entries {
		if e.OriginalName == name {
			i.entries = append(i.entries[:idx], i.entries[idx+1:]...)
			return true
		}
	}
	return false
}

func (i *Instance) flush() {
	i.t.Helper()
	data, err := manifest.Format(i.entries)
	require.NoError(i.t, err)
	require.NoError(i.t, os.WriteFile(i.ManifestPath(), data, 0o644))
}
