// Package health aggregates per-device hardware error reports and decides
// graduated responses. The policy is table-driven and indexed by ASIL
// criticality rather than hardcoded per device, so new hardware reuses
// the same engine. Escalation is the sole feedback path from hardware
// faults into the mode machine.
package health

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/infra/metrics"
)

// Action is a fault-escalation verdict.
type Action uint8

const (
	NoReboot Action = iota
	RebootDevice
	GracefulReboot
	ForceSafeMode
)

// String returns the downlink name of the action.
func (a Action) String() string {
	switch a {
	case NoReboot:
		return "NO_REBOOT"
	case RebootDevice:
		return "REBOOT_DEVICE"
	case GracefulReboot:
		return "GRACEFUL_REBOOT"
	case ForceSafeMode:
		return "FORCE_SAFE_MODE"
	default:
		return "UNKNOWN"
	}
}

// Forcer is the state-manager surface the monitor escalates through.
type Forcer interface {
	ForceTransition(target domain.Mode, reason string) error
}

// Rebooter is the device-layer surface for reboot verdicts.
type Rebooter interface {
	Reboot(device string) error
	Invalidate(device string)
}

// ─── Policy ─────────────────────────────────────────────────────────────────

// Rung maps an escalation count to an action. Rungs fire in order as
// consecutive errors accumulate; after the highest rung fires, the
// escalation counter resets and the ladder restarts.
type Rung struct {
	Count  int
	Action Action
}

// Policy is the ASIL-indexed escalation ladder.
type Policy map[domain.ASIL][]Rung

// DefaultPolicy returns the flight ladders. Higher-ASIL devices escalate
// after fewer faults: the radio (ASIL4) reaches a forced SAFE entry on
// its third consecutive error, while an ASIL1 light sensor only ever
// earns device reboots.
func DefaultPolicy() Policy {
	return Policy{
		domain.ASIL4: {{1, NoReboot}, {2, RebootDevice}, {3, GracefulReboot}},
		domain.ASIL3: {{2, RebootDevice}, {4, GracefulReboot}},
		domain.ASIL2: {{3, RebootDevice}, {6, GracefulReboot}},
		domain.ASIL1: {{5, RebootDevice}},
	}
}

// Config tunes the monitor.
type Config struct {
	Policy        Policy
	DegradedAfter int // cumulative errors before a device reads DEGRADED
	DeadAfter     int // cumulative errors before a device is written off
}

// DefaultConfig returns the flight thresholds.
func DefaultConfig() Config {
	return Config{
		Policy:        DefaultPolicy(),
		DegradedAfter: 3,
		DeadAfter:     10,
	}
}

// ─── Records ────────────────────────────────────────────────────────────────

// Record is the health ledger entry for one device. Status is monotonic:
// OK -> DEGRADED -> DEAD, never silently back.
type Record struct {
	Name       string              `json:"name"`
	ASIL       domain.ASIL         `json:"asil"`
	ErrorCount int                 `json:"error_count"`
	LastError  domain.ErrorCode    `json:"last_error"`
	Status     domain.DeviceStatus `json:"status"`

	escalation int // rung counter, reset after the top rung fires
}

// ─── Monitor ────────────────────────────────────────────────────────────────

// Monitor owns the device health ledger.
type Monitor struct {
	cfg      Config
	forcer   Forcer
	rebooter Rebooter

	mu      sync.Mutex
	records map[string]*Record
}

// NewMonitor creates a monitor over the given device registry. The
// rebooter may be nil when no reboot path exists (pure simulation).
func NewMonitor(cfg Config, forcer Forcer, rebooter Rebooter) *Monitor {
	return &Monitor{
		cfg:      cfg,
		forcer:   forcer,
		rebooter: rebooter,
		records:  make(map[string]*Record),
	}
}

// Track registers a device with the ledger. Reporting against an
// untracked name is rejected, mirroring the closed device list.
func (m *Monitor) Track(name string, asil domain.ASIL) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[name]; ok {
		return
	}
	m.records[name] = &Record{Name: name, ASIL: asil, Status: domain.DeviceOK}
}

// ReportError ingests one hardware error report, updates the ledger, and
// applies the escalation ladder. It returns the verdict taken.
func (m *Monitor) ReportError(name string, code domain.ErrorCode) (Action, error) {
	m.mu.Lock()
	rec, ok := m.records[name]
	if !ok {
		m.mu.Unlock()
		return NoReboot, fmt.Errorf("report for %q: %w", name, domain.ErrUnknownDevice)
	}

	rec.ErrorCount++
	rec.LastError = code
	metrics.DeviceErrors.WithLabelValues(name).Inc()

	// Status escalates monotonically; DEAD suppresses all further action.
	if rec.Status == domain.DeviceDead {
		m.mu.Unlock()
		log.Printf("[health] %s reported 0x%X while DEAD — suppressed", name, code)
		return NoReboot, domain.ErrDeviceDead
	}
	if rec.ErrorCount >= m.cfg.DeadAfter {
		rec.Status = domain.DeviceDead
		m.mu.Unlock()
		if m.rebooter != nil {
			m.rebooter.Invalidate(name)
		}
		log.Printf("[health] %s declared DEAD after %d errors (last 0x%X)", name, m.cfg.DeadAfter, code)
		return NoReboot, nil
	}
	if rec.Status == domain.DeviceOK && rec.ErrorCount >= m.cfg.DegradedAfter {
		rec.Status = domain.DeviceDegraded
		log.Printf("[health] %s DEGRADED after %d errors", name, rec.ErrorCount)
	}

	rec.escalation++
	action, top := m.cfg.Policy.lookup(rec.ASIL, rec.escalation)
	if top {
		rec.escalation = 0
	}
	asil := rec.ASIL
	m.mu.Unlock()

	m.act(name, asil, code, action)
	return action, nil
}

// Evaluate returns the verdict the ladder would produce for the device's
// next error, without ingesting one.
func (m *Monitor) Evaluate(name string) (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[name]
	if !ok {
		return NoReboot, fmt.Errorf("evaluate %q: %w", name, domain.ErrUnknownDevice)
	}
	if rec.Status == domain.DeviceDead {
		return NoReboot, domain.ErrDeviceDead
	}
	action, _ := m.cfg.Policy.lookup(rec.ASIL, rec.escalation+1)
	return action, nil
}

// lookup returns the action for the given escalation count and whether it
// was the ladder's top rung. Counts between rungs take no action.
func (p Policy) lookup(asil domain.ASIL, count int) (Action, bool) {
	ladder := p[asil]
	for i, r := range ladder {
		if r.Count == count {
			return r.Action, i == len(ladder)-1
		}
	}
	return NoReboot, false
}

// act carries out a verdict. GRACEFUL_REBOOT and FORCE_SAFE_MODE both
// force entry into SAFE; graceful additionally power-cycles the device.
func (m *Monitor) act(name string, asil domain.ASIL, code domain.ErrorCode, action Action) {
	metrics.Escalations.WithLabelValues(action.String()).Inc()

	switch action {
	case NoReboot:
		// Logged by the caller's telemetry; nothing to do.
	case RebootDevice:
		log.Printf("[health] rebooting %s (ASIL%d, last 0x%X)", name, asil, code)
		if m.rebooter != nil {
			if err := m.rebooter.Reboot(name); err != nil {
				log.Printf("[health] reboot %s failed: %v", name, err)
			}
		}
	case GracefulReboot:
		log.Printf("[health] graceful reboot for %s (ASIL%d, last 0x%X) — forcing SAFE", name, asil, code)
		if m.rebooter != nil {
			if err := m.rebooter.Reboot(name); err != nil {
				log.Printf("[health] reboot %s failed: %v", name, err)
			}
		}
		m.forceSafe(name, code)
	case ForceSafeMode:
		log.Printf("[health] forcing SAFE for %s (ASIL%d, last 0x%X)", name, asil, code)
		m.forceSafe(name, code)
	}
}

func (m *Monitor) forceSafe(name string, code domain.ErrorCode) {
	if m.forcer == nil {
		return
	}
	reason := fmt.Sprintf("device %s error 0x%X", name, code)
	if err := m.forcer.ForceTransition(domain.ModeSafe, reason); err != nil {
		log.Printf("[health] forced SAFE transition rejected: %v", err)
	}
}

// ─── Inspection ─────────────────────────────────────────────────────────────

// Records returns a copy of the ledger sorted by device name.
func (m *Monitor) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Status returns one device's status.
func (m *Monitor) Status(name string) (domain.DeviceStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[name]
	if !ok {
		return domain.DeviceOK, fmt.Errorf("status of %q: %w", name, domain.ErrUnknownDevice)
	}
	return rec.Status, nil
}
