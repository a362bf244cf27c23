//go:build !unix

package transport

import "syscall"

func recvBufferControl(int) func(network, address string, c syscall.RawConn) error {
	return nil
}
