//go:build linux

package sdr

import (
	"fmt"
	"io"
	"syscall"

	"golang.org/x/sys/unix"
)

// enlargePipe grows the kernel buffer behind a pipe so that short scheduling
// stalls of the reader do not back-pressure the SDR tool.
func enlargePipe(r io.Reader, size int) error {
	sc, ok := r.(syscall.Conn)
	if !ok {
		return nil // not a file descriptor
	}

	rc, err := sc.SyscallConn()
	if err != nil {
		return err
	}

	var fcntlErr error
	if err = rc.Control(func(fd uintptr) {
		_, fcntlErr = unix.FcntlInt(fd, unix.F_SETPIPE_SZ, size)
	}); err != nil {
		return err
	}
	if fcntlErr != nil {
		return fmt.Errorf("F_SETPIPE_SZ %d: %w", size, fcntlErr)
	}

	return nil
}
