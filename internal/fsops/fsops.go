//go:build unix

// Package fsops performs the file operations exercise phases drive.
//
// The sandboxing tool intercepts the classic path-based system calls
// (open, unlink, rename) rather than their *at variants, which is what Go's
// os package uses on Linux. On architectures that still have the classic
// calls, this package issues them directly so the tool sees the exact
// operation and path a C program would produce. Elsewhere it falls back to
// the *at calls relative to the working directory.
//
// Paths are passed through untouched: the tool derives artifact names from
// the raw path bytes, so relative names must stay relative.
package fsops

import (
	"bytes"
	"fmt"
)

const (
	filePerm = 0o644
)

// Create creates or truncates name and writes data to it.
func Create(name string, data []byte) error {
	return writeWith(name, flagCreate, data)
}

// Append appends data to an existing file.
func Append(name string, data []byte) error {
	return writeWith(name, flagAppend, data)
}

// Read returns the content of name, opened read-only.
func Read(name string) ([]byte, error) {
	fd, err := open(name, flagRead, 0)
	if err != nil {
		return nil, &OpError{Op: "open", Path: name, Err: err}
	}
	defer closeFD(fd)

	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	for {
		n, err := read(fd, chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			return nil, &OpError{Op: "read", Path: name, Err: err}
		}
		if n == 0 {
			return buf.Bytes(), nil
		}
	}
}

// Remove unlinks name.
func Remove(name string) error {
	if err := unlink(name); err != nil {
		return &OpError{Op: "unlink", Path: name, Err: err}
	}
	return nil
}

// Rename renames oldName to newName.
func Rename(oldName, newName string) error {
	if err := rename(oldName, newName); err != nil {
		return &OpError{Op: "rename", Path: oldName + " -> " + newName, Err: err}
	}
	return nil
}

// OpError records a failed operation and the path it was applied to.
type OpError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying errno.
func (e *OpError) Unwrap() error {
	return e.Err
}

func writeWith(name string, flags int, data []byte) error {
	fd, err := open(name, flags, filePerm)
	if err != nil {
		return &OpError{Op: "open", Path: name, Err: err}
	}

	for len(data) > 0 {
		n, err := write(fd, data)
		if err != nil {
			closeFD(fd)
			return &OpError{Op: "write", Path: name, Err: err}
		}
		data = data[n:]
	}

	if err := closeFD(fd); err != nil {
		return &OpError{Op: "close", Path: name, Err: err}
	}
	return nil
}
