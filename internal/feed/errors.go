package feed

import (
	"errors"
	"fmt"
)

// Reason classifies a feed failure.
type Reason int

const (
	// ConnectFailed covers dial errors and failed login handshakes.
	ConnectFailed Reason = iota
	// ReadTimeout means no line arrived within the idle timeout.
	ReadTimeout
	// ConnectionReset means the peer closed the socket or an I/O error occurred.
	ConnectionReset
	// Closed means the stream was closed locally or its context was cancelled.
	Closed
)

func (r Reason) String() string {
	switch r {
	case ConnectFailed:
		return "connect_failed"
	case ReadTimeout:
		return "read_timeout"
	case ConnectionReset:
		return "connection_reset"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error is the only error type returned by Client and Stream.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("feed: %s", e.Reason)
	}
	return fmt.Sprintf("feed: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the Reason from err. Errors that are not a *Error are
// reported as ConnectionReset.
func ReasonOf(err error) Reason {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ConnectionReset
}
