package transport

import "fmt"

// ConnectionError reports a failed connect attempt, carrying the underlying
// cause.
type ConnectionError struct {
	URL   string
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("error while connecting to %s: %v", e.URL, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// ConnectionClosedError reports a channel closed mid-session, carrying the
// close code and reason so callers can tell a graceful server shutdown from
// an abnormal closure.
type ConnectionClosedError struct {
	Code   int
	Reason string
	Cause  error
}

func (e *ConnectionClosedError) Error() string {
	return fmt.Sprintf("connection closed. code: %d, reason: %s", e.Code, e.Reason)
}

func (e *ConnectionClosedError) Unwrap() error { return e.Cause }
