package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Nothing in the kernel terminates the process; these reject bad requests
// synchronously and leave state untouched.

var (
	// Executive errors
	ErrBadFrequency = errors.New("task frequency must be > 0 Hz")
	ErrUnknownTask  = errors.New("task id is not registered")

	// State manager errors
	ErrNotAdjacent = errors.New("target mode is not adjacent to the current mode")
	ErrUnknownMode = errors.New("mode is outside the closed enumeration")

	// Device-health errors
	ErrUnknownDevice = errors.New("device is not in the health registry")
	ErrDeviceDead    = errors.New("device is marked DEAD — reboots suppressed")

	// Telemetry store errors
	ErrStreamExists   = errors.New("telemetry stream already registered")
	ErrStreamUnknown  = errors.New("telemetry stream not registered")
	ErrLayoutMismatch = errors.New("record does not match the stream layout")

	// Command surface errors
	ErrUnknownCommand     = errors.New("unknown command id")
	ErrPreconditionFailed = errors.New("command precondition failed")
	ErrArgumentMismatch   = errors.New("command argument count mismatch")
	ErrUplinkQueueFull    = errors.New("uplink command queue is full")
)

// ErrDeviceFault wraps a hardware error code with its device name. The
// code survives errors.As extraction via FaultError.
func ErrDeviceFault(device string, code ErrorCode) error {
	return &FaultError{Device: device, Code: code}
}

// FaultError carries a device error code across the driver boundary.
type FaultError struct {
	Device string
	Code   ErrorCode
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s: hardware fault 0x%X", e.Device, e.Code)
}
