//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// tuneSocket returns a net.ListenConfig.Control func that sets
// SO_REUSEADDR and the requested receive/send buffer sizes on the raw
// UDP socket before it's bound, per SPEC_FULL.md §11.
func tuneSocket(rcvBuf, sndBuf int) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
				sockErr = err
				return
			}
			if rcvBuf > 0 {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, rcvBuf); err != nil {
					sockErr = err
					return
				}
			}
			if sndBuf > 0 {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, sndBuf); err != nil {
					sockErr = err
					return
				}
			}
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
