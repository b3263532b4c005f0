package hal

import (
	"math"
	"sync"

	"github.com/kestrel-flight/kestrel/internal/domain"
)

// SimDevice is a deterministic simulated driver. Readings are pure
// functions of an internal sample counter, so a run with the same seed
// replays identically. Errors are injected through a queue and surface
// on the next Sample plus the next DrainErrors.
type SimDevice struct {
	name string
	seed int64
	gen  func(n uint64, seed int64) map[string]float64

	mu      sync.Mutex
	n       uint64
	pending []domain.ErrorCode
	drained []domain.ErrorCode
}

// NewSimDevice creates a simulated device with the given reading
// generator. A nil generator yields empty samples.
func NewSimDevice(name string, seed int64, gen func(n uint64, seed int64) map[string]float64) *SimDevice {
	return &SimDevice{name: name, seed: seed, gen: gen}
}

func (d *SimDevice) Name() string { return d.name }

// Sample returns the current synthetic readings. A pending injected
// error makes the sample fail once and moves the code to the drain queue.
func (d *SimDevice) Sample() (map[string]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.n++
	if len(d.pending) > 0 {
		code := d.pending[0]
		d.pending = d.pending[1:]
		d.drained = append(d.drained, code)
		return nil, domain.ErrDeviceFault(d.name, code)
	}
	if d.gen == nil {
		return map[string]float64{}, nil
	}
	return d.gen(d.n, d.seed), nil
}

// DrainErrors returns and clears the codes surfaced since the last drain.
func (d *SimDevice) DrainErrors() []domain.ErrorCode {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.drained
	d.drained = nil
	return out
}

// InjectError queues a fault for the next Sample call.
func (d *SimDevice) InjectError(code domain.ErrorCode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, code)
}

// ─── Flight Set ─────────────────────────────────────────────────────────────

// deviceSpec pairs a name with its criticality and reading generator.
type deviceSpec struct {
	name string
	asil domain.ASIL
	gen  func(n uint64, seed int64) map[string]float64
}

// flightSet is the simulated hardware manifest. Criticality follows the
// flight assignment: the radio and watchdog are mission-critical, the
// light sensors are expendable.
var flightSet = []deviceSpec{
	{DeviceRTC, domain.ASIL4, genRTC},
	{DeviceIMU, domain.ASIL3, genIMU},
	{DeviceGPS, domain.ASIL3, genGPS},
	{DeviceRadio, domain.ASIL4, genRadio},
	{DevicePowerMonitor, domain.ASIL2, genPower},
	{DeviceLightSensor, domain.ASIL1, genLight},
	{DeviceTorqueCoil, domain.ASIL2, nil},
	{DeviceCharger, domain.ASIL3, genCharger},
	{DeviceHeater, domain.ASIL2, genHeater},
	{DeviceWatchdog, domain.ASIL4, nil},
}

// NewSimBank builds a bank populated with the full simulated flight set.
func NewSimBank(seed int64) *Bank {
	b := NewBank()
	for _, spec := range flightSet {
		spec := spec
		b.Add(spec.name, spec.asil, func() (Device, error) {
			return NewSimDevice(spec.name, seed, spec.gen), nil
		})
	}
	return b
}

// ─── Generators ─────────────────────────────────────────────────────────────

// phase turns the sample counter and seed into a slow angle sweep.
func phase(n uint64, seed int64, period float64) float64 {
	return 2 * math.Pi * (float64(n) + float64(seed%997)) / period
}

func genRTC(n uint64, seed int64) map[string]float64 {
	return map[string]float64{"unix_time": float64(seed) + float64(n)*0.1}
}

func genIMU(n uint64, seed int64) map[string]float64 {
	p := phase(n, seed, 600)
	return map[string]float64{
		"gyro_x": 0.02 * math.Sin(p),
		"gyro_y": 0.02 * math.Cos(p),
		"gyro_z": 0.001,
		"mag_x":  25e-6 * math.Sin(p),
		"mag_y":  25e-6 * math.Cos(p),
		"mag_z":  40e-6,
	}
}

func genGPS(n uint64, seed int64) map[string]float64 {
	p := phase(n, seed, 5400)
	return map[string]float64{
		"lat":      51.6 * math.Sin(p),
		"lon":      math.Mod(float64(n)*0.07+float64(seed%360), 360) - 180,
		"alt_km":   550 + 2*math.Sin(p*2),
		"fix_ok":   1,
		"num_sats": 8,
	}
}

func genRadio(n uint64, seed int64) map[string]float64 {
	return map[string]float64{
		"rssi_dbm":  -95 + 5*math.Sin(phase(n, seed, 300)),
		"temp_c":    12 + 3*math.Sin(phase(n, seed, 900)),
		"tx_ready":  1,
		"modem_err": 0,
	}
}

func genPower(n uint64, seed int64) map[string]float64 {
	p := phase(n, seed, 5400)
	sun := math.Max(0, math.Sin(p))
	return map[string]float64{
		"bus_v":   7.4 + 0.3*sun,
		"bus_ma":  180 + 60*sun,
		"soc_pct": 62 + 20*sun,
	}
}

func genLight(n uint64, seed int64) map[string]float64 {
	p := phase(n, seed, 5400)
	return map[string]float64{"lux": 120000 * math.Max(0, math.Sin(p))}
}

func genCharger(n uint64, seed int64) map[string]float64 {
	p := phase(n, seed, 5400)
	return map[string]float64{
		"charging":  math.Max(0, math.Sin(p)),
		"input_v":   8.1,
		"charge_ma": 250 * math.Max(0, math.Sin(p)),
	}
}

func genHeater(n uint64, seed int64) map[string]float64 {
	return map[string]float64{
		"batt_temp_c": 8 + 6*math.Sin(phase(n, seed, 5400)),
		"heater_on":   0,
	}
}
