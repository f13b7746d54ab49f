//go:build !unix

package probe

func dial(string) (State, string) {
	return StateUnknown, "unix sockets are not supported on this platform"
}
