package exec

import (
	"context"
	"errors"
	"testing"

	"github.com/kestrel-flight/kestrel/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

type fakeTask struct {
	id   domain.TaskID
	name string
	fn   func(ctx context.Context) error
	runs int
}

func (f *fakeTask) ID() domain.TaskID { return f.id }
func (f *fakeTask) Name() string      { return f.name }

func (f *fakeTask) Execute(ctx context.Context) error {
	f.runs++
	if f.fn != nil {
		return f.fn(ctx)
	}
	return nil
}

func newTestExec(t *testing.T) *Executive {
	t.Helper()
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func mustRegister(t *testing.T, e *Executive, task Task, hz float64, prio int, deferFirst bool) {
	t.Helper()
	err := e.Register(task, domain.TaskParams{FrequencyHz: hz, Priority: prio, DeferFirstRun: deferFirst})
	if err != nil {
		t.Fatalf("Register(%s) error: %v", task.Name(), err)
	}
}

func runTicks(e *Executive, n int) {
	for i := 0; i < n; i++ {
		e.Tick(context.Background())
	}
}

// ─── Construction & Registration ────────────────────────────────────────────

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := New(Config{BaseHz: 0, FaultBudget: 5}); err == nil {
		t.Error("New accepted zero base rate")
	}
	if _, err := New(Config{BaseHz: 10, FaultBudget: 0}); err == nil {
		t.Error("New accepted zero fault budget")
	}
}

func TestRegister_RejectsBadFrequency(t *testing.T) {
	e := newTestExec(t)
	task := &fakeTask{id: domain.TaskIMU, name: "IMU"}

	err := e.Register(task, domain.TaskParams{FrequencyHz: 0, Priority: 1})
	if !errors.Is(err, domain.ErrBadFrequency) {
		t.Errorf("Register(0 Hz) error = %v, want ErrBadFrequency", err)
	}
	if e.Registered(domain.TaskIMU) {
		t.Error("rejected registration still landed in the table")
	}
}

func TestRegister_ResetIsNotAnError(t *testing.T) {
	e := newTestExec(t)
	task := &fakeTask{id: domain.TaskIMU, name: "IMU"}
	mustRegister(t, e, task, 1, 3, false)
	runTicks(e, 5)

	// Re-registering resets the phase from the current tick.
	mustRegister(t, e, task, 1, 3, false)
	snap := e.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() len = %d, want 1", len(snap))
	}
	if snap[0].NextDueTick != e.CurrentTick() {
		t.Errorf("NextDueTick = %d, want reset to current tick %d", snap[0].NextDueTick, e.CurrentTick())
	}
}

// ─── Cadence ────────────────────────────────────────────────────────────────

func TestTick_CadenceAtBaseRate(t *testing.T) {
	// 10 Hz task on a 10 Hz base: invoked on every tick.
	e := newTestExec(t)
	task := &fakeTask{id: domain.TaskCommand, name: "COMMAND"}
	mustRegister(t, e, task, 10, 1, false)

	runTicks(e, 100)
	if task.runs != 100 {
		t.Errorf("10 Hz task ran %d times over 100 ticks, want 100", task.runs)
	}
}

func TestTick_CadenceSlowTask(t *testing.T) {
	// 0.5 Hz task on a 10 Hz base: once per 20 ticks.
	e := newTestExec(t)
	task := &fakeTask{id: domain.TaskGPS, name: "GPS"}
	mustRegister(t, e, task, 0.5, 5, false)

	runTicks(e, 100)
	if task.runs < 4 || task.runs > 6 {
		t.Errorf("0.5 Hz task ran %d times over 100 ticks, want 5 (±1 phase tolerance)", task.runs)
	}
}

func TestTick_DeferFirstRun(t *testing.T) {
	e := newTestExec(t)
	eager := &fakeTask{id: domain.TaskEPS, name: "EPS"}
	deferred := &fakeTask{id: domain.TaskADCS, name: "ADCS"}
	mustRegister(t, e, eager, 1, 1, false)
	mustRegister(t, e, deferred, 1, 2, true)

	runTicks(e, 1)
	if eager.runs != 1 {
		t.Errorf("eager task runs = %d after first tick, want 1", eager.runs)
	}
	if deferred.runs != 0 {
		t.Errorf("defer-first-run task ran on the first tick")
	}

	runTicks(e, 10)
	if deferred.runs == 0 {
		t.Error("defer-first-run task never started")
	}
}

// ─── Ordering ───────────────────────────────────────────────────────────────

func TestTick_PriorityOrder(t *testing.T) {
	e := newTestExec(t)
	var order []domain.TaskID
	record := func(id domain.TaskID) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, id)
			return nil
		}
	}

	// Same frequency; priorities 3, 1, 2, and a tie at 2 broken by id.
	mustRegister(t, e, &fakeTask{id: domain.TaskGPS, name: "GPS", fn: record(domain.TaskGPS)}, 10, 3, false)
	mustRegister(t, e, &fakeTask{id: domain.TaskCommand, name: "COMMAND", fn: record(domain.TaskCommand)}, 10, 1, false)
	mustRegister(t, e, &fakeTask{id: domain.TaskIMU, name: "IMU", fn: record(domain.TaskIMU)}, 10, 2, false)
	mustRegister(t, e, &fakeTask{id: domain.TaskTiming, name: "TIMING", fn: record(domain.TaskTiming)}, 10, 2, false)

	runTicks(e, 1)

	want := []domain.TaskID{domain.TaskCommand, domain.TaskTiming, domain.TaskIMU, domain.TaskGPS}
	if len(order) != len(want) {
		t.Fatalf("ran %d tasks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: got %v, want %v (full order %v)", i, order[i], want[i], order)
		}
	}
}

// ─── Fault Containment ──────────────────────────────────────────────────────

func TestTick_PanicIsContained(t *testing.T) {
	e := newTestExec(t)
	panicker := &fakeTask{id: domain.TaskIMU, name: "IMU", fn: func(context.Context) error {
		panic("bus lockup")
	}}
	bystander := &fakeTask{id: domain.TaskGPS, name: "GPS"}
	mustRegister(t, e, panicker, 10, 1, false)
	mustRegister(t, e, bystander, 10, 2, false)

	runTicks(e, 3)

	if bystander.runs != 3 {
		t.Errorf("bystander ran %d times, want 3 — a fault leaked out of containment", bystander.runs)
	}
	if panicker.runs != 3 {
		t.Errorf("faulting task ran %d times, want 3 — faults must not skip scheduling early", panicker.runs)
	}
}

func TestTick_FaultBudgetAutoDisables(t *testing.T) {
	e := newTestExec(t)
	always := &fakeTask{id: domain.TaskThermal, name: "THERMAL", fn: func(context.Context) error {
		return errors.New("sensor invalid")
	}}
	healthy := &fakeTask{id: domain.TaskEPS, name: "EPS"}
	mustRegister(t, e, always, 10, 2, false)
	mustRegister(t, e, healthy, 10, 1, false)

	runTicks(e, 20)

	// Budget is 5: invoked on each of the first 5 ticks, never after.
	if always.runs != 5 {
		t.Errorf("chronically faulting task ran %d times, want exactly 5", always.runs)
	}
	if healthy.runs != 20 {
		t.Errorf("healthy task ran %d times, want 20 — disablement must not leak", healthy.runs)
	}

	snap := e.Snapshot()
	for _, s := range snap {
		if s.ID == domain.TaskThermal && s.Enabled {
			t.Error("faulting task still enabled after exceeding the budget")
		}
	}
}

func TestTick_SuccessResetsFaultCount(t *testing.T) {
	e := newTestExec(t)
	n := 0
	flaky := &fakeTask{id: domain.TaskComms, name: "COMMS", fn: func(context.Context) error {
		n++
		if n%2 == 1 {
			return errors.New("timeout")
		}
		return nil
	}}
	mustRegister(t, e, flaky, 10, 1, false)

	// Alternating fault/success never accumulates to the budget.
	runTicks(e, 50)
	if flaky.runs != 50 {
		t.Errorf("flaky task ran %d times, want 50 — alternating faults must not disable", flaky.runs)
	}
}

// ─── Boundary Semantics ─────────────────────────────────────────────────────

func TestDeregister_TakesEffectAtBoundary(t *testing.T) {
	e := newTestExec(t)
	var second *fakeTask
	first := &fakeTask{id: domain.TaskCommand, name: "COMMAND"}
	first.fn = func(context.Context) error {
		// Deregistering mid-tick must not stop the later task this tick.
		e.Deregister(domain.TaskGPS)
		return nil
	}
	second = &fakeTask{id: domain.TaskGPS, name: "GPS"}
	mustRegister(t, e, first, 10, 1, false)
	mustRegister(t, e, second, 10, 2, false)

	runTicks(e, 1)
	if second.runs != 1 {
		t.Errorf("task deregistered mid-tick ran %d times this tick, want 1 (admitted ticks finish)", second.runs)
	}

	runTicks(e, 5)
	if second.runs != 1 {
		t.Errorf("deregistered task ran %d times, want 1 — removal must hold from the next boundary", second.runs)
	}
}

func TestRegister_MidTickLandsNextBoundary(t *testing.T) {
	e := newTestExec(t)
	late := &fakeTask{id: domain.TaskGPS, name: "GPS"}
	spawner := &fakeTask{id: domain.TaskCommand, name: "COMMAND"}
	spawner.fn = func(context.Context) error {
		if !e.Registered(domain.TaskGPS) {
			return e.Register(late, domain.TaskParams{FrequencyHz: 10, Priority: 5})
		}
		return nil
	}
	mustRegister(t, e, spawner, 10, 1, false)

	runTicks(e, 1)
	if late.runs != 0 {
		t.Error("task registered mid-tick ran in the same tick")
	}
	runTicks(e, 1)
	if late.runs != 1 {
		t.Errorf("task registered mid-tick ran %d times on the following tick, want 1", late.runs)
	}
}

func TestRetune_KeepsPhase(t *testing.T) {
	e := newTestExec(t)
	task := &fakeTask{id: domain.TaskOBDH, name: "OBDH"}
	mustRegister(t, e, task, 1, 2, false)
	runTicks(e, 3)

	before := snapshotOf(t, e, domain.TaskOBDH)
	if err := e.Retune(domain.TaskOBDH, 0.2, 2); err != nil {
		t.Fatalf("Retune() error: %v", err)
	}
	after := snapshotOf(t, e, domain.TaskOBDH)

	if after.NextDueTick != before.NextDueTick {
		t.Errorf("Retune reset the phase: due %d -> %d", before.NextDueTick, after.NextDueTick)
	}
	if after.FrequencyHz != 0.2 {
		t.Errorf("FrequencyHz = %v, want 0.2", after.FrequencyHz)
	}
}

func TestRetune_UnknownTask(t *testing.T) {
	e := newTestExec(t)
	if err := e.Retune(domain.TaskGPS, 1, 1); !errors.Is(err, domain.ErrUnknownTask) {
		t.Errorf("Retune(unregistered) error = %v, want ErrUnknownTask", err)
	}
}

func TestSetEnabled_Toggle(t *testing.T) {
	e := newTestExec(t)
	task := &fakeTask{id: domain.TaskIMU, name: "IMU"}
	mustRegister(t, e, task, 10, 1, false)

	runTicks(e, 2)
	if err := e.SetEnabled(domain.TaskIMU, false); err != nil {
		t.Fatalf("SetEnabled(false) error: %v", err)
	}
	runTicks(e, 5)
	if task.runs != 2 {
		t.Errorf("disabled task ran %d times, want 2", task.runs)
	}

	if err := e.SetEnabled(domain.TaskIMU, true); err != nil {
		t.Fatalf("SetEnabled(true) error: %v", err)
	}
	runTicks(e, 5)
	if task.runs <= 2 {
		t.Error("re-enabled task never resumed")
	}
}

func snapshotOf(t *testing.T, e *Executive, id domain.TaskID) TaskStatus {
	t.Helper()
	for _, s := range e.Snapshot() {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("task %v not in snapshot", id)
	return TaskStatus{}
}
