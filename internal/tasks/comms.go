package tasks

import (
	"context"
	"fmt"
	"log"

	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/hal"
)

// ─── Comms ──────────────────────────────────────────────────────────────────

// rxWindowRuns is how many task runs the receive window stays open after
// a transmit completes.
const rxWindowRuns = 3

// CommsPhase is the radio link phase.
type CommsPhase uint8

const (
	PhaseTransmit CommsPhase = iota
	PhaseListen
)

// String returns the downlink name of the phase.
func (p CommsPhase) String() string {
	if p == PhaseTransmit {
		return "TRANSMIT"
	}
	return "LISTEN"
}

// Comms runs the radio link as a transmit-then-listen cycle: one beacon
// transmit, then a bounded receive window, then back to transmit. The
// cycle never blocks; each run advances the phase machine at most once.
type Comms struct {
	Base
	bank *hal.Bank

	phase    CommsPhase
	window   int
	beacons  int64
	lastRSSI float64
}

// NewComms creates the radio link task.
func NewComms(bank *hal.Bank) *Comms {
	return &Comms{Base: Base{id: domain.TaskComms}, bank: bank}
}

func (c *Comms) Execute(ctx context.Context) error {
	dev, err := c.bank.Device(hal.DeviceRadio)
	if err != nil {
		return fmt.Errorf("comms: %w", err)
	}
	sample, err := dev.Sample()
	if err != nil {
		return fmt.Errorf("comms: %w", err)
	}
	c.lastRSSI = sample["rssi_dbm"]

	switch c.phase {
	case PhaseTransmit:
		if sample["tx_ready"] < 1 {
			// Radio busy; try again next run.
			return nil
		}
		c.beacons++
		c.phase = PhaseListen
		c.window = rxWindowRuns
	case PhaseListen:
		c.window--
		if c.window <= 0 {
			c.phase = PhaseTransmit
		}
	}
	return nil
}

// Phase returns the link phase.
func (c *Comms) Phase() CommsPhase { return c.phase }

// Beacons returns the number of beacons transmitted since boot.
func (c *Comms) Beacons() int64 { return c.beacons }

// ─── GPS ────────────────────────────────────────────────────────────────────

// GPS takes the low-rate position fix and appends the navigation frame.
type GPS struct {
	Base
	bank  *hal.Bank
	ticks TickSource
	tm    Appender
}

// NewGPS creates the navigation task.
func NewGPS(bank *hal.Bank, ticks TickSource, tm Appender) *GPS {
	return &GPS{Base: Base{id: domain.TaskGPS}, bank: bank, ticks: ticks, tm: tm}
}

func (g *GPS) Execute(ctx context.Context) error {
	dev, err := g.bank.Device(hal.DeviceGPS)
	if err != nil {
		return fmt.Errorf("gps: %w", err)
	}
	sample, err := dev.Sample()
	if err != nil {
		return fmt.Errorf("gps: %w", err)
	}
	if sample["fix_ok"] < 1 {
		log.Printf("[gps] no fix (%v sats)", sample["num_sats"])
		return nil
	}

	if g.tm != nil {
		tick := g.ticks.CurrentTick()
		frame := []float64{float64(tick), sample["lat"], sample["lon"], sample["alt_km"], sample["num_sats"]}
		if err := g.tm.Append("gps", tick, frame); err != nil {
			return fmt.Errorf("gps: %w", err)
		}
	}
	return nil
}
