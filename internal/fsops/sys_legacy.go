//go:build linux && (amd64 || 386)

package fsops

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// The classic calls, as the sandboxing tool's syscall table expects them.
// Flags are passed through unchanged: a read-only open is only redirected
// when its flags are exactly O_RDONLY.

func open(name string, flags int, perm uint32) (int, error) {
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return -1, err
	}
	for {
		fd, _, errno := unix.Syscall(unix.SYS_OPEN, uintptr(unsafe.Pointer(p)), uintptr(flags), uintptr(perm))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return -1, errno
		}
		return int(fd), nil
	}
}

func unlink(name string) error {
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	if _, _, errno := unix.Syscall(unix.SYS_UNLINK, uintptr(unsafe.Pointer(p)), 0, 0); errno != 0 {
		return errno
	}
	return nil
}

func rename(oldName, newName string) error {
	oldp, err := unix.BytePtrFromString(oldName)
	if err != nil {
		return err
	}
	newp, err := unix.BytePtrFromString(newName)
	if err != nil {
		return err
	}
	if _, _, errno := unix.Syscall(unix.SYS_RENAME, uintptr(unsafe.Pointer(oldp)), uintptr(unsafe.Pointer(newp)), 0); errno != 0 {
		return errno
	}
	return nil
}
