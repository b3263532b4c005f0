// Package tasks holds the flight task bodies scheduled by the executive.
// Each task is a run-to-completion unit: it samples what it owns, appends
// telemetry, and returns. Nothing here blocks on hardware or I/O longer
// than one tick budget.
package tasks

import (
	"github.com/kestrel-flight/kestrel/internal/command"
	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/telemetry"
)

// Base carries the identity shared by every task body.
type Base struct {
	id domain.TaskID
}

// ID returns the task's closed-enumeration identity.
func (b Base) ID() domain.TaskID { return b.id }

// Name returns the task's downlink name.
func (b Base) Name() string { return b.id.String() }

// ModeReader is the read-only mode surface task bodies observe.
type ModeReader interface {
	Current() domain.Mode
}

// TransitionRequester is the mode surface for tasks that autonomously
// request transitions (the EPS low-power hysteresis).
type TransitionRequester interface {
	ModeReader
	RequestTransition(target domain.Mode) error
}

// TickSource exposes the logical tick counter for telemetry stamping.
type TickSource interface {
	CurrentTick() uint64
}

// Appender receives telemetry frames from task bodies.
type Appender interface {
	Append(stream string, tick uint64, values []float64) error
}

// ─── Stream Declarations ────────────────────────────────────────────────────

// Fixed stream shapes. Layouts are part of the downlink contract.
var streamDecls = []struct {
	name     string
	fields   []string
	layout   string
	rotation int
}{
	{"eps", []string{"tick", "soc_pct", "bus_v", "bus_ma"}, "Qfff", 4096},
	{"imu", []string{"tick", "gyro_x", "gyro_y", "gyro_z", "mag_x", "mag_y", "mag_z"}, "Qffffff", 4096},
	{"gps", []string{"tick", "lat", "lon", "alt_km", "num_sats"}, "QfffB", 1024},
	{"thermal", []string{"tick", "batt_temp_c", "heater_on"}, "QfB", 2048},
	{command.HeartbeatStream, command.HeartbeatFields, command.HeartbeatLayout, 512},
}

// RegisterStreams declares every flight stream with the store. Safe to
// call on each boot.
func RegisterStreams(store *telemetry.Store) error {
	for _, d := range streamDecls {
		if err := store.RegisterStream(d.name, d.fields, d.layout, d.rotation); err != nil {
			return err
		}
	}
	return nil
}
