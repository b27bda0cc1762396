//go:build unix && !(linux && (amd64 || 386))

package fsops

import (
	"golang.org/x/sys/unix"
)

func open(name string, flags int, perm uint32) (int, error) {
	for {
		fd, err := unix.Openat(unix.AT_FDCWD, name, flags, perm)
		if err == unix.EINTR {
			continue
		}
		return fd, err
	}
}

func unlink(name string) error {
	return unix.Unlinkat(unix.AT_FDCWD, name, 0)
}

func rename(oldName, newName string) error {
	return unix.Renameat(unix.AT_FDCWD, oldName, unix.AT_FDCWD, newName)
}
