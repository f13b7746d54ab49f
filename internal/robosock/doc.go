// Package robosock manages Unix datagram sockets that own their socket
// file.
//
// A Socket is created with New, which binds the path and records the
// file's device and inode in a Registry. Within one process at most one
// live Socket may own a given file, however its path is spelled; a second
// New for the same file fails with ErrAlreadyOpen. When the path is
// occupied by a file no live Socket owns, New treats it as left behind by
// a crashed run, deletes it and binds again.
//
// The socket file is removed when the Socket is released:
//
//	s, err := robosock.New(ctx, robosock.Process(), "/run/robo/ctl.sock")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	...
//	if err := s.Unlink(ctx); err != nil {
//		// The file is still there and s is still usable.
//	}
//
// Unlink reports failures to the caller. Close never fails and logs
// instead. A Socket that becomes unreachable without either is released
// by the garbage collector the same way Close releases it.
//
// Ownership is only tracked within one process. Two processes binding the
// same path each treat the other's file as stale.
package robosock
