//go:build unix

package fsops

import (
	"golang.org/x/sys/unix"
)

var (
	flagCreate = unix.O_WRONLY | unix.O_CREAT | unix.O_TRUNC
	flagAppend = unix.O_WRONLY | unix.O_APPEND
	flagRead   = unix.O_RDONLY
)

func read(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func write(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func closeFD(fd int) error {
	return unix.Close(fd)
}
