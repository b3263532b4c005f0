package tasks

import (
	"errors"

	"github.com/kestrel-flight/kestrel/internal/command"
	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/exec"
	"github.com/kestrel-flight/kestrel/internal/hal"
	"github.com/kestrel-flight/kestrel/internal/health"
	"github.com/kestrel-flight/kestrel/internal/telemetry"
)

// Deps is everything the flight task set is wired against.
type Deps struct {
	Bank   *hal.Bank
	Health *health.Monitor
	Store  *telemetry.Store
	Proc   *command.Processor
	Modes  TransitionRequester
	Ticks  TickSource
	TM     Appender
}

// Build assembles the full flight task set, one instance per TaskID.
// The state manager activates and deactivates these per mode; instances
// persist across transitions so phase state survives.
func Build(d Deps) (map[domain.TaskID]exec.Task, error) {
	if d.Bank == nil || d.Health == nil || d.Store == nil || d.Proc == nil || d.Modes == nil || d.Ticks == nil {
		return nil, errors.New("tasks: incomplete dependency set")
	}

	imu := NewIMU(d.Bank, d.Ticks, d.TM)
	set := map[domain.TaskID]exec.Task{
		domain.TaskCommand:   NewCommand(d.Proc),
		domain.TaskTiming:    NewTiming(d.Bank),
		domain.TaskEPS:       NewEPS(d.Bank, d.Modes, d.Ticks, d.TM),
		domain.TaskOBDH:      NewOBDH(d.Store),
		domain.TaskIMU:       imu,
		domain.TaskADCS:      NewADCS(imu),
		domain.TaskComms:     NewComms(d.Bank),
		domain.TaskThermal:   NewThermal(d.Bank, d.Ticks, d.TM),
		domain.TaskGPS:       NewGPS(d.Bank, d.Ticks, d.TM),
		domain.TaskTelemetry: NewTelemetry(d.Proc),
		domain.TaskMonitor:   NewMonitor(d.Bank, d.Health),
	}
	return set, nil
}
