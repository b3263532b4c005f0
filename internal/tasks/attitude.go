package tasks

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/hal"
)

// ─── IMU ────────────────────────────────────────────────────────────────────

// IMU samples the inertial unit and appends the attitude frame. The
// latest sample is cached for the ADCS control step.
type IMU struct {
	Base
	bank  *hal.Bank
	ticks TickSource
	tm    Appender

	last map[string]float64
}

// NewIMU creates the inertial sampling task.
func NewIMU(bank *hal.Bank, ticks TickSource, tm Appender) *IMU {
	return &IMU{Base: Base{id: domain.TaskIMU}, bank: bank, ticks: ticks, tm: tm}
}

func (i *IMU) Execute(ctx context.Context) error {
	dev, err := i.bank.Device(hal.DeviceIMU)
	if err != nil {
		return fmt.Errorf("imu: %w", err)
	}
	sample, err := dev.Sample()
	if err != nil {
		return fmt.Errorf("imu: %w", err)
	}
	i.last = sample

	if i.tm != nil {
		tick := i.ticks.CurrentTick()
		frame := []float64{
			float64(tick),
			sample["gyro_x"], sample["gyro_y"], sample["gyro_z"],
			sample["mag_x"], sample["mag_y"], sample["mag_z"],
		}
		if err := i.tm.Append("imu", tick, frame); err != nil {
			return fmt.Errorf("imu: %w", err)
		}
	}
	return nil
}

// Last returns the most recent inertial sample, nil before the first run.
func (i *IMU) Last() map[string]float64 { return i.last }

// ─── ADCS ───────────────────────────────────────────────────────────────────

// detumbleExit is the body-rate magnitude (rad/s) below which the
// controller hands over from detumble to pointing.
const detumbleExit = 0.05

// ADCSPhase is the attitude controller's phase.
type ADCSPhase uint8

const (
	PhaseDetumble ADCSPhase = iota
	PhasePointing
)

// String returns the downlink name of the phase.
func (p ADCSPhase) String() string {
	if p == PhaseDetumble {
		return "DETUMBLE"
	}
	return "POINTING"
}

// ADCS runs the attitude control step against the latest inertial
// sample. The controller is a two-phase machine: detumble until body
// rates settle, then hold pointing.
type ADCS struct {
	Base
	imu *IMU

	phase ADCSPhase
}

// NewADCS creates the attitude control task.
func NewADCS(imu *IMU) *ADCS {
	return &ADCS{Base: Base{id: domain.TaskADCS}, imu: imu}
}

func (a *ADCS) Execute(ctx context.Context) error {
	sample := a.imu.Last()
	if sample == nil {
		// IMU has not produced a sample yet this mode.
		return nil
	}

	rate := gyroMagnitude(sample)
	switch a.phase {
	case PhaseDetumble:
		if rate < detumbleExit {
			a.phase = PhasePointing
			log.Printf("[adcs] body rate %.4f rad/s settled — pointing", rate)
		}
	case PhasePointing:
		if rate >= detumbleExit*2 {
			a.phase = PhaseDetumble
			log.Printf("[adcs] body rate %.4f rad/s — back to detumble", rate)
		}
	}
	return nil
}

// Phase returns the controller's current phase.
func (a *ADCS) Phase() ADCSPhase { return a.phase }

func gyroMagnitude(sample map[string]float64) float64 {
	x, y, z := sample["gyro_x"], sample["gyro_y"], sample["gyro_z"]
	return math.Sqrt(x*x + y*y + z*z)
}
