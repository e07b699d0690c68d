package connection

import (
	"errors"
	"fmt"
)

// Session errors.
var (
	// ErrConnectFailure means the daemon could not be reached.
	ErrConnectFailure = errors.New("connect failed")

	// ErrCommandTimeout means a response line did not arrive in time.
	ErrCommandTimeout = errors.New("command timeout")

	// ErrConnectionLost means the socket failed mid-session.
	ErrConnectionLost = errors.New("connection lost")

	// ErrDaemonRejected means the daemon answered with a non-zero RPRT code.
	ErrDaemonRejected = errors.New("daemon rejected command")

	// ErrNotConnected is returned for commands on a session without a socket.
	ErrNotConnected = errors.New("not connected")
)

// RejectedError carries the RPRT code of a rejected command.
// It matches ErrDaemonRejected with errors.Is.
type RejectedError struct {
	Command string
	Code    int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("daemon rejected %q: RPRT %d", e.Command, e.Code)
}

// Is reports ErrDaemonRejected as a match.
func (e *RejectedError) Is(target error) bool {
	return target == ErrDaemonRejected
}

// State represents the connection state of a session.
type State uint8

const (
	// StateDisconnected indicates no socket. Initial and post-failure state.
	StateDisconnected State = iota

	// StateConnecting indicates a dial is in progress.
	StateConnecting

	// StateConnected indicates an open socket.
	StateConnected

	// StateError indicates the last connect attempt failed.
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
