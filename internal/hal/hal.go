// Package hal is the device layer boundary. The kernel consumes hardware
// through two narrow surfaces: a bounded Sample poll and a DrainErrors
// query returning stable small-integer error codes. Driver internals stay
// behind this package.
package hal

import (
	"fmt"
	"sync"

	"github.com/kestrel-flight/kestrel/internal/domain"
)

// Canonical device names. The set is closed per build; the health ledger
// and the activation tables reference these.
const (
	DeviceRTC          = "RTC"
	DeviceIMU          = "IMU"
	DeviceGPS          = "GPS"
	DeviceRadio        = "RADIO"
	DevicePowerMonitor = "POWER_MONITOR"
	DeviceLightSensor  = "LIGHT_SENSOR"
	DeviceTorqueCoil   = "TORQUE_COIL"
	DeviceCharger      = "CHARGER"
	DeviceHeater       = "HEATER"
	DeviceWatchdog     = "WATCHDOG"
)

// Device is the uniform surface a driver exposes to the kernel. Sample is
// a bounded poll: it returns whatever is available now and never blocks
// the tick loop. DrainErrors returns and clears the codes accumulated
// since the previous drain.
type Device interface {
	Name() string
	Sample() (map[string]float64, error)
	DrainErrors() []domain.ErrorCode
}

// ─── Slots ──────────────────────────────────────────────────────────────────

// slot is an owned optional device: built on first access, explicitly
// invalidated when the health ledger writes the device off.
type slot struct {
	name  string
	asil  domain.ASIL
	build func() (Device, error)

	mu   sync.Mutex
	dev  Device
	dead bool
}

func (s *slot) device() (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return nil, fmt.Errorf("%s: %w", s.name, domain.ErrDeviceDead)
	}
	if s.dev == nil {
		dev, err := s.build()
		if err != nil {
			return nil, fmt.Errorf("init %s: %w", s.name, err)
		}
		s.dev = dev
	}
	return s.dev, nil
}

// ─── Bank ───────────────────────────────────────────────────────────────────

// Bank owns every device slot. It satisfies the health package's Rebooter
// surface: reboots drop and rebuild a slot, invalidation retires it.
type Bank struct {
	mu    sync.Mutex
	slots map[string]*slot
	order []string
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{slots: make(map[string]*slot)}
}

// Add declares a device slot. The builder runs lazily on first access.
func (b *Bank) Add(name string, asil domain.ASIL, build func() (Device, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.slots[name]; ok {
		return
	}
	b.slots[name] = &slot{name: name, asil: asil, build: build}
	b.order = append(b.order, name)
}

// Device returns the named device, building it on first access.
func (b *Bank) Device(name string) (Device, error) {
	s, err := b.slot(name)
	if err != nil {
		return nil, err
	}
	return s.device()
}

// Names returns every declared device name in declaration order.
func (b *Bank) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// ASIL returns the criticality level assigned to the named device.
func (b *Bank) ASIL(name string) (domain.ASIL, error) {
	s, err := b.slot(name)
	if err != nil {
		return 0, err
	}
	return s.asil, nil
}

// Reboot drops the device instance so the next access rebuilds it.
// Rebooting a retired slot is suppressed.
func (b *Bank) Reboot(name string) error {
	s, err := b.slot(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return fmt.Errorf("reboot %s: %w", name, domain.ErrDeviceDead)
	}
	s.dev = nil
	return nil
}

// Invalidate retires a slot: the instance is dropped and every later
// access fails until an explicit maintenance action outside the kernel.
func (b *Bank) Invalidate(name string) {
	s, err := b.slot(name)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = true
	s.dev = nil
}

func (b *Bank) slot(name string) (*slot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.slots[name]
	if !ok {
		return nil, fmt.Errorf("device %q not declared", name)
	}
	return s, nil
}
