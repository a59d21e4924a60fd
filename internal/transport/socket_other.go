//go:build !unix

package transport

import "syscall"

// tuneSocket is a no-op on non-unix platforms; golang.org/x/sys/unix's
// socket option constants are unix-specific.
func tuneSocket(rcvBuf, sndBuf int) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		return nil
	}
}
