package harness

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/fssbcheck/internal/fsops"
	"github.com/roach88/fssbcheck/internal/manifest"
	"github.com/roach88/fssbcheck/internal/sandbox"
)

// BuiltinSource is the TestCase.Source of the compiled-in cases.
const BuiltinSource = "builtin"

// File names and contents used by the built-in cases. Verify recomputes
// everything it expects from these.
const (
	saveEmptyFileName = "save_empty_file"

	saveWithContentName = "save_file_with_content"
	saveWithContentData = "fssb\n"

	writeTwiceName   = "write_same_file_twice"
	writeTwiceFirst  = "first write\n"
	writeTwiceSecond = "second write\n"

	readOwnWriteName = "read_own_write"
	readOwnWriteData = "written and read back under the sandbox\n"

	unlinkName = "unlink_saved_file"

	renameSourceName = "rename_source"
	renameTargetName = "rename_target"
	renameData       = "renamed\n"
)

// Builtins returns the compiled-in test cases.
func Builtins() []TestCase {
	return []TestCase{
		{
			Name:        "no_syscalls",
			Description: "A phase that touches no files leaves an empty file-map",
			Exercise:    exerciseNothing,
			Verify:      verifyNoSyscalls,
		},
		{
			Name:        saveEmptyFileName,
			Description: "Creating an empty file records one entry and an empty artifact",
			Exercise:    exerciseSaveEmptyFile,
			Verify:      verifySaveEmptyFile,
		},
		{
			Name:        saveWithContentName,
			Description: "Written bytes land in the artifact, not the real file",
			Exercise:    exerciseSaveWithContent,
			Verify:      verifySaveWithContent,
		},
		{
			Name:        writeTwiceName,
			Description: "Opening the same name twice for writing reuses one artifact",
			Exercise:    exerciseWriteTwice,
			Verify:      verifyWriteTwice,
		},
		{
			Name:        readOwnWriteName,
			Description: "A sandboxed process reads back what it wrote",
			Exercise:    exerciseReadOwnWrite,
			Verify:      verifyReadOwnWrite,
		},
		{
			Name:        "read_existing_file",
			Description: "Read-only opens of files the tool does not proxy are not recorded",
			Exercise:    exerciseReadExisting,
			Verify:      verifyNoSyscalls,
		},
		{
			Name:        unlinkName,
			Description: "Unlinking a saved file removes its artifact and its entry",
			Exercise:    exerciseUnlink,
			Verify:      verifyUnlink,
		},
		{
			Name:        "rename_saved_file",
			Description: "Renaming a saved file moves the artifact and re-records the entry",
			Exercise:    exerciseRename,
			Verify:      verifyRename,
		},
	}
}

// RegisterBuiltins adds the compiled-in cases to r.
func RegisterBuiltins(r *Registry) error {
	for _, tc := range Builtins() {
		tc.Source = BuiltinSource
		if err := r.Register(tc); err != nil {
			return err
		}
	}
	return nil
}

// expectedManifest is the file-map the tool writes after redirecting names
// in order, once each.
func expectedManifest(inst sandbox.Instance, names ...string) (string, error) {
	entries := make([]manifest.Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, manifest.Entry{
			ArtifactPath: inst.ArtifactPath(name),
			OriginalName: name,
		})
	}
	data, err := manifest.Format(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func exerciseNothing(ctx context.Context, logger *slog.Logger) error {
	return nil
}

func verifyNoSyscalls(ctx context.Context, c *Checker) error {
	raw, err := c.ReadManifestRaw()
	if err != nil {
		return err
	}
	c.Equal(string(raw), "")
	return nil
}

func exerciseSaveEmptyFile(ctx context.Context, logger *slog.Logger) error {
	logger.Debug("creating empty file", "name", saveEmptyFileName)
	return fsops.Create(saveEmptyFileName, nil)
}

func verifySaveEmptyFile(ctx context.Context, c *Checker) error {
	raw, err := c.ReadManifestRaw()
	if err != nil {
		return err
	}
	want, err := expectedManifest(c.Instance(), saveEmptyFileName)
	if err != nil {
		return err
	}
	c.Equal(string(raw), want)

	content, err := c.ReadArtifact(saveEmptyFileName)
	if c.That(err == nil, saveEmptyFileName, err) {
		c.Equal(string(content), "")
	}
	return nil
}

func exerciseSaveWithContent(ctx context.Context, logger *slog.Logger) error {
	return fsops.Create(saveWithContentName, []byte(saveWithContentData))
}

func verifySaveWithContent(ctx context.Context, c *Checker) error {
	raw, err := c.ReadManifestRaw()
	if err != nil {
		return err
	}
	want, err := expectedManifest(c.Instance(), saveWithContentName)
	if err != nil {
		return err
	}
	c.Equal(string(raw), want)

	content, err := c.ReadArtifact(saveWithContentName)
	if c.That(err == nil, saveWithContentName, err) {
		c.Equal(string(content), saveWithContentData)
	}
	return nil
}

func exerciseWriteTwice(ctx context.Context, logger *slog.Logger) error {
	if err := fsops.Create(writeTwiceName, []byte(writeTwiceFirst)); err != nil {
		return err
	}
	return fsops.Append(writeTwiceName, []byte(writeTwiceSecond))
}

func verifyWriteTwice(ctx context.Context, c *Checker) error {
	raw, err := c.ReadManifestRaw()
	if err != nil {
		return err
	}
	want, err := expectedManifest(c.Instance(), writeTwiceName)
	if err != nil {
		return err
	}
	c.Equal(string(raw), want)

	content, err := c.ReadArtifact(writeTwiceName)
	if c.That(err == nil, writeTwiceName, err) {
		c.Equal(string(content), writeTwiceFirst+writeTwiceSecond)
	}
	return nil
}

func exerciseReadOwnWrite(ctx context.Context, logger *slog.Logger) error {
	if err := fsops.Create(readOwnWriteName, []byte(readOwnWriteData)); err != nil {
		return err
	}
	got, err := fsops.Read(readOwnWriteName)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, []byte(readOwnWriteData)) {
		return fmt.Errorf("read back %q from %s, wrote %q", got, readOwnWriteName, readOwnWriteData)
	}
	return nil
}

func verifyReadOwnWrite(ctx context.Context, c *Checker) error {
	raw, err := c.ReadManifestRaw()
	if err != nil {
		return err
	}
	want, err := expectedManifest(c.Instance(), readOwnWriteName)
	if err != nil {
		return err
	}
	c.Equal(string(raw), want)

	content, err := c.ReadArtifact(readOwnWriteName)
	if c.That(err == nil, readOwnWriteName, err) {
		c.Equal(string(content), readOwnWriteData)
	}
	return nil
}

// exerciseReadExisting opens the running executable read-only: a file that
// certainly exists and that the tool has never proxied.
func exerciseReadExisting(ctx context.Context, logger *slog.Logger) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	logger.Debug("reading existing file", "path", exe)
	_, err = fsops.Read(exe)
	return err
}

func exerciseUnlink(ctx context.Context, logger *slog.Logger) error {
	if err := fsops.Create(unlinkName, []byte("short lived\n")); err != nil {
		return err
	}
	return fsops.Remove(unlinkName)
}

func verifyUnlink(ctx context.Context, c *Checker) error {
	raw, err := c.ReadManifestRaw()
	if err != nil {
		return err
	}
	c.Equal(string(raw), "")
	c.NotExists(c.Instance().ArtifactPath(unlinkName))
	return nil
}

func exerciseRename(ctx context.Context, logger *slog.Logger) error {
	if err := fsops.Create(renameSourceName, []byte(renameData)); err != nil {
		return err
	}
	return fsops.Rename(renameSourceName, renameTargetName)
}

func verifyRename(ctx context.Context, c *Checker) error {
	raw, err := c.ReadManifestRaw()
	if err != nil {
		return err
	}
	want, err := expectedManifest(c.Instance(), renameTargetName)
	if err != nil {
		return err
	}
	c.Equal(string(raw), want)
	c.NotExists(c.Instance().ArtifactPath(renameSourceName))

	content, err := c.ReadArtifact(renameTargetName)
	if c.That(err == nil, renameTargetName, err) {
		c.Equal(string(content), renameData)
	}
	return nil
}
