//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// recvBufferControl returns a dialer hook that sizes the kernel receive
// buffer of the data socket before connect.
func recvBufferControl(size int) func(network, address string, c syscall.RawConn) error {
	if size <= 0 {
		return nil
	}
	return func(_, _ string, c syscall.RawConn) error {
		var serr error
		if err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
		}); err != nil {
			return err
		}
		return serr
	}
}
