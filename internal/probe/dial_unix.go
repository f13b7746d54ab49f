//go:build unix

package probe

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// dial connects a datagram socket to path. Connecting never sends data, so
// the peer is not disturbed.
func dial(path string) (State, string) {
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	if err == nil {
		conn.Close()
		return StateLive, ""
	}
	switch {
	case errors.Is(err, unix.ECONNREFUSED):
		return StateStale, ""
	case errors.Is(err, unix.EPROTOTYPE):
		// A stream or seqpacket socket: somebody is bound, but not for datagrams.
		return StateLive, "not a datagram socket"
	default:
		return StateUnknown, err.Error()
	}
}
