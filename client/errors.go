package mbclient

import (
	"errors"
	"fmt"
)

// errClientClosed is wrapped in an IOError whenever a caller submits a
// request after the reader goroutine has already torn the connection
// down.
var errClientClosed = errors.New("mbclient: client closed")

// IOError reports a transport-level failure: a write that could not be
// sent, or a read failure (including orderly close) observed by the
// background reader and fanned out to every pending caller.
type IOError struct {
	Cause error
}

func (e *IOError) Error() string { return fmt.Sprintf("mbclient: i/o error: %v", e.Cause) }
func (e *IOError) Unwrap() error { return e.Cause }

// ArgumentsOutOfRangeError is returned when a caller-supplied address or
// length violates a length/overflow policy before anything is sent on the
// wire.
type ArgumentsOutOfRangeError struct {
	Reason string
}

func (e *ArgumentsOutOfRangeError) Error() string {
	return fmt.Sprintf("mbclient: arguments out of range: %s", e.Reason)
}

// InvalidResponseError reports a framing, function-code, echoed-field or
// PDU-decode anomaly in a response that is otherwise not a protocol
// exception.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("mbclient: invalid response: %s", e.Reason)
}
