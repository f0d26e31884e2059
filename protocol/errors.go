package protocol

import "fmt"

// ProtocolError reports a message from the server that violates the session
// contract. It is fatal to the session.
type ProtocolError struct {
	Type   MessageType
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("received invalid %s message from server: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("received unknown message (%d) from server", int(e.Type))
}

// EpisodeStartError wraps a failure raised by the simulation's EpisodeStart.
type EpisodeStartError struct {
	Cause error
}

func (e *EpisodeStartError) Error() string {
	return fmt.Sprintf("episode start failed: %v", e.Cause)
}

func (e *EpisodeStartError) Unwrap() error { return e.Cause }

// SimulateError wraps a failure raised by the simulation's Simulate.
type SimulateError struct {
	Cause error
}

func (e *SimulateError) Error() string {
	return fmt.Sprintf("simulate failed: %v", e.Cause)
}

func (e *SimulateError) Unwrap() error { return e.Cause }
