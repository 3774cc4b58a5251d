package lambda_modbus

import (
	"fmt"
)

// ConnectionError reports an unreachable heat pump or a failed
// reconnect attempt during the health check.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("heat pump connection error: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// DeviceOffError means the heat pump reported the off state; no write
// is attempted while the device is off.
type DeviceOffError struct{}

func (e *DeviceOffError) Error() string {
	return "heat pump is turned off"
}

// DeviceFaultError means the heat pump reported the error state; no
// write is attempted until the device recovers.
type DeviceFaultError struct {
	Status uint16
}

func (e *DeviceFaultError) Error() string {
	return fmt.Sprintf("heat pump reports error state (status %d)", e.Status)
}

// WriteError reports a rejected or failed control-register write.
type WriteError struct {
	Register uint16
	Cause    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write heat pump register %d: %v", e.Register, e.Cause)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}
