package netio

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Options bundles the socket-level tunables the spec surfaces: Nagle
// disable, corking, quick-ACK, and explicit buffer sizing. Zero-value
// fields are left at the OS default.
type Options struct {
	NoDelay   bool
	Cork      bool
	QuickAck  bool
	SendBuf   int
	RecvBuf   int
	ReusePort bool
}

// Apply sets every requested option on the Channel's underlying socket,
// via SyscallConn so it works uniformly for sockets obtained from Dial,
// Listen/Accept, or test doubles backed by a real *net.TCPConn.
func (c *Channel) Apply(opts Options) error {
	sc, ok := c.conn.(syscall.Conn)
	if !ok {
		return fmt.Errorf("netio: connection does not support raw socket options")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return fmt.Errorf("netio: syscall conn: %w", err)
	}

	var setErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		setErr = applyOptions(int(fd), opts)
	})
	if ctrlErr != nil {
		return fmt.Errorf("netio: control: %w", ctrlErr)
	}
	return setErr
}

func applyOptions(fd int, opts Options) error {
	if opts.NoDelay {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return fmt.Errorf("TCP_NODELAY: %w", err)
		}
	}
	if opts.Cork {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_CORK, 1); err != nil {
			return fmt.Errorf("TCP_CORK: %w", err)
		}
	}
	if opts.QuickAck {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1); err != nil {
			return fmt.Errorf("TCP_QUICKACK: %w", err)
		}
	}
	if opts.SendBuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBuf); err != nil {
			return fmt.Errorf("SO_SNDBUF: %w", err)
		}
	}
	if opts.RecvBuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBuf); err != nil {
			return fmt.Errorf("SO_RCVBUF: %w", err)
		}
	}
	if opts.ReusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return fmt.Errorf("SO_REUSEPORT: %w", err)
		}
	}
	return nil
}

// ListenWithOptions is like Listen but applies SO_REUSEPORT (when
// requested) before bind, matching how multiple gateway workers would
// share one listen port.
func ListenWithOptions(addr string, backlog int, opts Options) (*Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var setErr error
			ctrlErr := c.Control(func(fd uintptr) {
				setErr = applyOptions(int(fd), opts)
			})
			if ctrlErr != nil {
				return ctrlErr
			}
			return setErr
		},
	}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netio: listen %s: %w", addr, err)
	}
	_ = backlog
	return &Listener{ln: ln}, nil
}
