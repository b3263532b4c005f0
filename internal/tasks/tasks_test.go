package tasks

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/kestrel-flight/kestrel/internal/command"
	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/exec"
	"github.com/kestrel-flight/kestrel/internal/hal"
	"github.com/kestrel-flight/kestrel/internal/health"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type fakeTicks struct{ tick uint64 }

func (f *fakeTicks) CurrentTick() uint64 { return f.tick }

type fakeModes struct {
	current   domain.Mode
	requested []domain.Mode
}

func (f *fakeModes) Current() domain.Mode { return f.current }

func (f *fakeModes) RequestTransition(target domain.Mode) error {
	f.requested = append(f.requested, target)
	f.current = target
	return nil
}

func (f *fakeModes) ForceTransition(target domain.Mode, reason string) error {
	f.current = target
	return nil
}

type fakeAppender struct {
	streams []string
	values  [][]float64
}

func (f *fakeAppender) Append(stream string, tick uint64, values []float64) error {
	f.streams = append(f.streams, stream)
	f.values = append(f.values, values)
	return nil
}

// controlledBank builds a bank holding one device whose readings come
// from the supplied map pointer, so tests steer the sample values.
func controlledBank(t *testing.T, name string, asil domain.ASIL, readings *map[string]float64) (*hal.Bank, *hal.SimDevice) {
	t.Helper()
	dev := hal.NewSimDevice(name, 1, func(n uint64, seed int64) map[string]float64 {
		out := make(map[string]float64, len(*readings))
		for k, v := range *readings {
			out[k] = v
		}
		return out
	})
	b := hal.NewBank()
	b.Add(name, asil, func() (hal.Device, error) { return dev, nil })
	return b, dev
}

// ─── EPS ────────────────────────────────────────────────────────────────────

func TestEPS_LowPowerHysteresis(t *testing.T) {
	readings := map[string]float64{"soc_pct": 70, "bus_v": 7.5, "bus_ma": 200}
	bank, _ := controlledBank(t, hal.DevicePowerMonitor, domain.ASIL2, &readings)
	modes := &fakeModes{current: domain.ModeNominal}
	tm := &fakeAppender{}
	eps := NewEPS(bank, modes, &fakeTicks{}, tm)

	// Healthy battery: no transition.
	if err := eps.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(modes.requested) != 0 {
		t.Fatalf("healthy soc requested %v", modes.requested)
	}

	// Below the entry floor: request LOW_POWER once.
	readings["soc_pct"] = 35
	if err := eps.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(modes.requested) != 1 || modes.requested[0] != domain.ModeLowPower {
		t.Fatalf("requested = %v, want [LOW_POWER]", modes.requested)
	}

	// Inside the hysteresis band: hold LOW_POWER.
	readings["soc_pct"] = 50
	if err := eps.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(modes.requested) != 1 {
		t.Fatalf("band soc requested %v", modes.requested)
	}

	// Recovered past the ceiling: back to NOMINAL.
	readings["soc_pct"] = 65
	if err := eps.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(modes.requested) != 2 || modes.requested[1] != domain.ModeNominal {
		t.Fatalf("requested = %v, want recovery to NOMINAL", modes.requested)
	}

	if len(tm.streams) != 4 {
		t.Errorf("eps frames appended = %d, want 4", len(tm.streams))
	}
}

// ─── Thermal ────────────────────────────────────────────────────────────────

func TestThermal_HeaterBand(t *testing.T) {
	readings := map[string]float64{"batt_temp_c": 8}
	bank, _ := controlledBank(t, hal.DeviceHeater, domain.ASIL2, &readings)
	th := NewThermal(bank, &fakeTicks{}, nil)

	if err := th.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if th.HeaterOn() {
		t.Error("heater on at 8C")
	}

	readings["batt_temp_c"] = 2
	th.Execute(context.Background())
	if !th.HeaterOn() {
		t.Error("heater off at 2C")
	}

	// Inside the band: stays on.
	readings["batt_temp_c"] = 7
	th.Execute(context.Background())
	if !th.HeaterOn() {
		t.Error("heater dropped out inside the band")
	}

	readings["batt_temp_c"] = 12
	th.Execute(context.Background())
	if th.HeaterOn() {
		t.Error("heater still on at 12C")
	}
}

// ─── Attitude ───────────────────────────────────────────────────────────────

func TestADCS_DetumbleToPointing(t *testing.T) {
	readings := map[string]float64{"gyro_x": 0.2, "gyro_y": 0, "gyro_z": 0}
	bank, _ := controlledBank(t, hal.DeviceIMU, domain.ASIL3, &readings)
	imu := NewIMU(bank, &fakeTicks{}, nil)
	adcs := NewADCS(imu)

	// No sample yet: controller idles in detumble.
	if err := adcs.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if adcs.Phase() != PhaseDetumble {
		t.Fatalf("phase = %v before first sample", adcs.Phase())
	}

	// High body rate: stay detumbling.
	imu.Execute(context.Background())
	adcs.Execute(context.Background())
	if adcs.Phase() != PhaseDetumble {
		t.Errorf("phase = %v at 0.2 rad/s, want DETUMBLE", adcs.Phase())
	}

	// Settled: hand over to pointing.
	readings["gyro_x"] = 0.01
	imu.Execute(context.Background())
	adcs.Execute(context.Background())
	if adcs.Phase() != PhasePointing {
		t.Errorf("phase = %v at 0.01 rad/s, want POINTING", adcs.Phase())
	}

	// Kicked again: fall back to detumble.
	readings["gyro_x"] = 0.3
	imu.Execute(context.Background())
	adcs.Execute(context.Background())
	if adcs.Phase() != PhaseDetumble {
		t.Errorf("phase = %v after kick, want DETUMBLE", adcs.Phase())
	}
}

func TestIMU_AppendsAttitudeFrame(t *testing.T) {
	readings := map[string]float64{"gyro_x": 0.1, "gyro_y": 0.2, "gyro_z": 0.3, "mag_x": 1, "mag_y": 2, "mag_z": 3}
	bank, _ := controlledBank(t, hal.DeviceIMU, domain.ASIL3, &readings)
	tm := &fakeAppender{}
	ticks := &fakeTicks{tick: 55}
	imu := NewIMU(bank, ticks, tm)

	if err := imu.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(tm.streams) != 1 || tm.streams[0] != "imu" {
		t.Fatalf("streams = %v", tm.streams)
	}
	frame := tm.values[0]
	if frame[0] != 55 || frame[1] != 0.1 || frame[6] != 3 {
		t.Errorf("frame = %v", frame)
	}
}

// ─── Comms ──────────────────────────────────────────────────────────────────

func TestComms_TransmitListenCycle(t *testing.T) {
	readings := map[string]float64{"tx_ready": 1, "rssi_dbm": -90}
	bank, _ := controlledBank(t, hal.DeviceRadio, domain.ASIL4, &readings)
	c := NewComms(bank)

	// First run transmits a beacon and opens the receive window.
	c.Execute(context.Background())
	if c.Beacons() != 1 || c.Phase() != PhaseListen {
		t.Fatalf("after first run: beacons=%d phase=%v", c.Beacons(), c.Phase())
	}

	// The window holds for rxWindowRuns runs, then transmit resumes.
	for i := 0; i < rxWindowRuns; i++ {
		c.Execute(context.Background())
	}
	if c.Phase() != PhaseTransmit {
		t.Errorf("phase = %v after window, want TRANSMIT", c.Phase())
	}
	c.Execute(context.Background())
	if c.Beacons() != 2 {
		t.Errorf("beacons = %d, want 2", c.Beacons())
	}
}

func TestComms_WaitsForRadioReady(t *testing.T) {
	readings := map[string]float64{"tx_ready": 0}
	bank, _ := controlledBank(t, hal.DeviceRadio, domain.ASIL4, &readings)
	c := NewComms(bank)

	for i := 0; i < 3; i++ {
		c.Execute(context.Background())
	}
	if c.Beacons() != 0 {
		t.Errorf("beacons = %d with radio busy, want 0", c.Beacons())
	}
	if c.Phase() != PhaseTransmit {
		t.Errorf("phase = %v, want TRANSMIT held", c.Phase())
	}
}

// ─── GPS ────────────────────────────────────────────────────────────────────

func TestGPS_SkipsFramesWithoutFix(t *testing.T) {
	readings := map[string]float64{"fix_ok": 0, "num_sats": 2}
	bank, _ := controlledBank(t, hal.DeviceGPS, domain.ASIL3, &readings)
	tm := &fakeAppender{}
	g := NewGPS(bank, &fakeTicks{}, tm)

	g.Execute(context.Background())
	if len(tm.streams) != 0 {
		t.Errorf("appended %v without a fix", tm.streams)
	}

	readings["fix_ok"] = 1
	readings["lat"] = 12.5
	readings["lon"] = -45
	readings["alt_km"] = 550
	readings["num_sats"] = 9
	if err := g.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(tm.streams) != 1 {
		t.Fatalf("frames = %d with a fix, want 1", len(tm.streams))
	}
	if tm.values[0][1] != 12.5 {
		t.Errorf("frame = %v", tm.values[0])
	}
}

// ─── Monitor ────────────────────────────────────────────────────────────────

func TestMonitor_DrainsDeviceErrorsIntoLedger(t *testing.T) {
	bank := hal.NewSimBank(1)
	h := health.NewMonitor(health.DefaultConfig(), &fakeModes{}, bank)
	for _, name := range bank.Names() {
		asil, err := bank.ASIL(name)
		if err != nil {
			t.Fatal(err)
		}
		h.Track(name, asil)
	}
	m := NewMonitor(bank, h)

	dev, err := bank.Device(hal.DeviceIMU)
	if err != nil {
		t.Fatal(err)
	}
	sim := dev.(*hal.SimDevice)
	sim.InjectError(domain.IMUErrorCode)
	sim.InjectError(domain.IMUFatalError)
	sim.Sample()
	sim.Sample()

	if err := m.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, rec := range h.Records() {
		if rec.Name == hal.DeviceIMU {
			if rec.ErrorCount != 2 {
				t.Errorf("IMU error count = %d, want 2", rec.ErrorCount)
			}
			if rec.LastError != domain.IMUFatalError {
				t.Errorf("IMU last error = 0x%X", rec.LastError)
			}
			return
		}
	}
	t.Fatal("IMU record missing from the ledger")
}

// ─── Command ────────────────────────────────────────────────────────────────

type fakeTaskControl struct{}

func (fakeTaskControl) SetEnabled(domain.TaskID, bool) error     { return nil }
func (fakeTaskControl) Retune(domain.TaskID, float64, int) error { return nil }
func (fakeTaskControl) Snapshot() []exec.TaskStatus              { return nil }
func (fakeTaskControl) CurrentTick() uint64                      { return 0 }

func TestCommand_DrainsWithinBudget(t *testing.T) {
	q := command.NewQueue(16)
	proc := command.NewProcessor(q, &fakeModes{current: domain.ModeNominal}, fakeTaskControl{}, &fakeAppender{}, nil)
	c := NewCommand(proc)

	for i := 0; i < commandBudget+2; i++ {
		if err := q.Push(command.Envelope{ID: uuid.New(), Command: command.RequestTMHeartbeat}); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if q.Len() != 2 {
		t.Errorf("queue depth = %d after one run, want 2", q.Len())
	}
	c.Execute(context.Background())
	if q.Len() != 0 {
		t.Errorf("queue depth = %d after second run, want 0", q.Len())
	}
}
