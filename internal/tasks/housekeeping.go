package tasks

import (
	"context"
	"fmt"
	"log"

	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/hal"
	"github.com/kestrel-flight/kestrel/internal/health"
	"github.com/kestrel-flight/kestrel/internal/telemetry"
)

// ─── Timing ─────────────────────────────────────────────────────────────────

// Timing samples the RTC every base tick and keeps the latest board time.
// It is the reference every other task stamps against.
type Timing struct {
	Base
	bank *hal.Bank

	lastUnix float64
}

// NewTiming creates the timekeeping task.
func NewTiming(bank *hal.Bank) *Timing {
	return &Timing{Base: Base{id: domain.TaskTiming}, bank: bank}
}

func (t *Timing) Execute(ctx context.Context) error {
	dev, err := t.bank.Device(hal.DeviceRTC)
	if err != nil {
		return fmt.Errorf("timing: %w", err)
	}
	sample, err := dev.Sample()
	if err != nil {
		return fmt.Errorf("timing: %w", err)
	}
	t.lastUnix = sample["unix_time"]
	return nil
}

// BoardTime returns the last RTC reading.
func (t *Timing) BoardTime() float64 { return t.lastUnix }

// ─── EPS ────────────────────────────────────────────────────────────────────

// Battery state-of-charge hysteresis bounds. Entry below the floor,
// recovery above the ceiling, so the mode machine does not flap around
// a single threshold.
const (
	socLowPowerEntry = 40.0
	socLowPowerExit  = 60.0
)

// EPS polls the power monitor, appends the power frame, and drives the
// autonomous low-power hysteresis.
type EPS struct {
	Base
	bank  *hal.Bank
	modes TransitionRequester
	ticks TickSource
	tm    Appender
}

// NewEPS creates the electrical power task.
func NewEPS(bank *hal.Bank, modes TransitionRequester, ticks TickSource, tm Appender) *EPS {
	return &EPS{Base: Base{id: domain.TaskEPS}, bank: bank, modes: modes, ticks: ticks, tm: tm}
}

func (e *EPS) Execute(ctx context.Context) error {
	dev, err := e.bank.Device(hal.DevicePowerMonitor)
	if err != nil {
		return fmt.Errorf("eps: %w", err)
	}
	sample, err := dev.Sample()
	if err != nil {
		return fmt.Errorf("eps: %w", err)
	}

	soc := sample["soc_pct"]
	tick := e.ticks.CurrentTick()
	if e.tm != nil {
		if err := e.tm.Append("eps", tick, []float64{float64(tick), soc, sample["bus_v"], sample["bus_ma"]}); err != nil {
			return fmt.Errorf("eps: %w", err)
		}
	}

	switch e.modes.Current() {
	case domain.ModeNominal:
		if soc < socLowPowerEntry {
			log.Printf("[eps] soc %.1f%% below %.0f%% — requesting LOW_POWER", soc, socLowPowerEntry)
			return e.modes.RequestTransition(domain.ModeLowPower)
		}
	case domain.ModeLowPower:
		if soc > socLowPowerExit {
			log.Printf("[eps] soc %.1f%% recovered above %.0f%% — requesting NOMINAL", soc, socLowPowerExit)
			return e.modes.RequestTransition(domain.ModeNominal)
		}
	}
	return nil
}

// ─── OBDH ───────────────────────────────────────────────────────────────────

// obdhAuditEvery spaces store audits: the task runs at its scheduled
// rate but only audits every Nth run.
const obdhAuditEvery = 10

// OBDH performs onboard data handling maintenance: periodic telemetry
// store audits and record-count logging.
type OBDH struct {
	Base
	store *telemetry.Store

	runs int
}

// NewOBDH creates the data-handling task.
func NewOBDH(store *telemetry.Store) *OBDH {
	return &OBDH{Base: Base{id: domain.TaskOBDH}, store: store}
}

func (o *OBDH) Execute(ctx context.Context) error {
	o.runs++
	if o.runs%obdhAuditEvery != 0 {
		return nil
	}
	streams, err := o.store.Streams()
	if err != nil {
		return fmt.Errorf("obdh: %w", err)
	}
	total := 0
	for _, s := range streams {
		total += s.Records
	}
	log.Printf("[obdh] store audit: %d streams, %d records", len(streams), total)
	return nil
}

// ─── Thermal ────────────────────────────────────────────────────────────────

// Battery heater bounds in Celsius.
const (
	heaterOnBelow  = 4.0
	heaterOffAbove = 10.0
)

// Thermal keeps the battery inside its heater band and appends the
// thermal frame.
type Thermal struct {
	Base
	bank  *hal.Bank
	ticks TickSource
	tm    Appender

	heaterOn bool
}

// NewThermal creates the thermal control task.
func NewThermal(bank *hal.Bank, ticks TickSource, tm Appender) *Thermal {
	return &Thermal{Base: Base{id: domain.TaskThermal}, bank: bank, ticks: ticks, tm: tm}
}

func (t *Thermal) Execute(ctx context.Context) error {
	dev, err := t.bank.Device(hal.DeviceHeater)
	if err != nil {
		return fmt.Errorf("thermal: %w", err)
	}
	sample, err := dev.Sample()
	if err != nil {
		return fmt.Errorf("thermal: %w", err)
	}

	temp := sample["batt_temp_c"]
	switch {
	case !t.heaterOn && temp < heaterOnBelow:
		t.heaterOn = true
		log.Printf("[thermal] battery %.1fC — heater on", temp)
	case t.heaterOn && temp > heaterOffAbove:
		t.heaterOn = false
		log.Printf("[thermal] battery %.1fC — heater off", temp)
	}

	if t.tm != nil {
		tick := t.ticks.CurrentTick()
		on := 0.0
		if t.heaterOn {
			on = 1
		}
		if err := t.tm.Append("thermal", tick, []float64{float64(tick), temp, on}); err != nil {
			return fmt.Errorf("thermal: %w", err)
		}
	}
	return nil
}

// HeaterOn reports the current heater command.
func (t *Thermal) HeaterOn() bool { return t.heaterOn }

// ─── Telemetry ──────────────────────────────────────────────────────────────

// Heartbeater emits one heartbeat frame.
type Heartbeater interface {
	Heartbeat() error
}

// Telemetry appends the periodic heartbeat frame. Ground can also force
// one out of cycle via REQUEST_TM_HEARTBEAT.
type Telemetry struct {
	Base
	hb Heartbeater
}

// NewTelemetry creates the heartbeat task.
func NewTelemetry(hb Heartbeater) *Telemetry {
	return &Telemetry{Base: Base{id: domain.TaskTelemetry}, hb: hb}
}

func (t *Telemetry) Execute(ctx context.Context) error {
	return t.hb.Heartbeat()
}

// ─── Monitor ────────────────────────────────────────────────────────────────

// Monitor drains every device's error queue into the health ledger. It
// runs in every mode: fault escalation must survive SAFE.
type Monitor struct {
	Base
	bank   *hal.Bank
	health *health.Monitor
}

// NewMonitor creates the device-health sweep task.
func NewMonitor(bank *hal.Bank, h *health.Monitor) *Monitor {
	return &Monitor{Base: Base{id: domain.TaskMonitor}, bank: bank, health: h}
}

func (m *Monitor) Execute(ctx context.Context) error {
	for _, name := range m.bank.Names() {
		dev, err := m.bank.Device(name)
		if err != nil {
			// Retired or unbuildable slots have nothing to drain.
			continue
		}
		for _, code := range dev.DrainErrors() {
			if _, err := m.health.ReportError(name, code); err != nil {
				log.Printf("[monitor] report %s 0x%X: %v", name, code, err)
			}
		}
	}
	return nil
}
