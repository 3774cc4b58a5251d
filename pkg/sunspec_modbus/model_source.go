package sunspec_modbus

import (
	"fmt"
)

// PowerSourceReader is the capability shared by all energy metering
// sources: it yields one instantaneous power value per call.
// Positive values mean surplus power available for consumption.
//
// A reader exclusively owns its transport connection. Implementations
// do not retry failed reads beyond a single reconnect attempt; retry
// across cycles is the poll loop's responsibility.
type PowerSourceReader interface {
	Open() error
	Close() error
	ReadPowerWatt() (float64, error)
}

// ConnectionError reports an unreachable transport or a failed
// reconnect attempt.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("source connection error: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// ProtocolError reports a malformed or unexpected response from a
// device that was otherwise reachable.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("source protocol error: %s", e.Reason)
}
