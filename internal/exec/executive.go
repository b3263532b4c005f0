// Package exec implements the cooperative tick executive. It owns the
// logical tick counter and the per-task due-time table, and it executes
// the task set declared active by the state manager: every tick, each due
// task runs to completion, in ascending priority order, with fault
// containment around every invocation.
//
// There is no preemption anywhere in this package. "Concurrency" is
// cooperative multiplexing: a task that must wait on hardware polls with
// a bounded timeout, stores its continuation state in its own fields, and
// is simply invoked again on schedule.
package exec

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/infra/metrics"
)

// Task is the uniform shape every periodic unit of work must satisfy.
// Execute runs to completion within one tick. A body may call back into
// the executive or the state manager; such calls are deferred to the
// next tick boundary, so the tick in flight always finishes on the
// table it started with.
type Task interface {
	ID() domain.TaskID
	Name() string
	Execute(ctx context.Context) error
}

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures the executive.
type Config struct {
	BaseHz      float64 // base tick rate; 10 Hz = 100 ms period
	FaultBudget int     // consecutive faults before a task is auto-disabled
}

// DefaultConfig returns the flight defaults: a 100 ms base period and a
// budget of five consecutive faults.
func DefaultConfig() Config {
	return Config{
		BaseHz:      10,
		FaultBudget: 5,
	}
}

// Period returns the wall-clock duration of one base tick.
func (c Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.BaseHz)
}

// ─── Descriptors ────────────────────────────────────────────────────────────

// descriptor is the executive's bookkeeping for one registered task.
type descriptor struct {
	task        Task
	frequencyHz float64
	priority    int
	interval    uint64 // ticks between invocations, ceil(BaseHz/frequencyHz)
	nextDue     uint64
	faults      int // consecutive faults; reset on success
	enabled     bool
}

// TaskStatus is a read-only snapshot of one descriptor.
type TaskStatus struct {
	ID          domain.TaskID `json:"id"`
	Name        string        `json:"name"`
	FrequencyHz float64       `json:"frequency_hz"`
	Priority    int           `json:"priority"`
	NextDueTick uint64        `json:"next_due_tick"`
	Faults      int           `json:"consecutive_faults"`
	Enabled     bool          `json:"enabled"`
}

// ─── Executive ──────────────────────────────────────────────────────────────

// Executive drives the single thread of control. Only the tick loop
// mutates the due-time table mid-flight; calls arriving from inside a
// running tick (task bodies, the command path) are applied at the next
// tick boundary so a tick already admitted always finishes on the table
// it started with.
type Executive struct {
	cfg Config

	mu       sync.Mutex
	tick     uint64
	tasks    map[domain.TaskID]*descriptor
	inTick   bool
	deferred []func()

	totalRuns     atomic.Int64
	totalFaults   atomic.Int64
	totalDisabled atomic.Int64
}

// New creates an executive. Rejects a non-positive base rate or fault
// budget at construction, not at run time.
func New(cfg Config) (*Executive, error) {
	if cfg.BaseHz <= 0 {
		return nil, errors.New("exec: base rate must be > 0 Hz")
	}
	if cfg.FaultBudget < 1 {
		return nil, errors.New("exec: fault budget must be >= 1")
	}
	return &Executive{
		cfg:   cfg,
		tasks: make(map[domain.TaskID]*descriptor),
	}, nil
}

// CurrentTick returns the monotonic logical tick counter.
func (e *Executive) CurrentTick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// interval converts a task frequency to a due-time offset in ticks.
// A task faster than the base rate runs every tick.
func (e *Executive) interval(frequencyHz float64) uint64 {
	iv := uint64(math.Ceil(e.cfg.BaseHz / frequencyHz))
	if iv < 1 {
		iv = 1
	}
	return iv
}

// ─── Registration ───────────────────────────────────────────────────────────

// Register inserts or resets a task descriptor. Re-registering a present
// id is a reset, not an error: the phase is recomputed from the current
// tick so a task returning to the active set never runs a catch-up burst.
// Takes effect at the next tick boundary when called from inside a tick.
func (e *Executive) Register(task Task, params domain.TaskParams) error {
	if params.FrequencyHz <= 0 {
		return fmt.Errorf("task %s: %w", task.Name(), domain.ErrBadFrequency)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.boundaryLocked(func() {
		iv := e.interval(params.FrequencyHz)
		due := e.tick
		if params.DeferFirstRun {
			due = e.tick + iv
		}
		e.tasks[task.ID()] = &descriptor{
			task:        task,
			frequencyHz: params.FrequencyHz,
			priority:    params.Priority,
			interval:    iv,
			nextDue:     due,
			enabled:     true,
		}
	})
	return nil
}

// Deregister removes a task from the due-computation set. Takes effect at
// the next tick boundary; it never interrupts a task mid-execution.
func (e *Executive) Deregister(id domain.TaskID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boundaryLocked(func() {
		delete(e.tasks, id)
	})
}

// Retune updates a registered task's rate and priority without resetting
// its phase: the already-computed due tick stands, and the new interval
// applies from the next invocation on.
func (e *Executive) Retune(id domain.TaskID, frequencyHz float64, priority int) error {
	if frequencyHz <= 0 {
		return fmt.Errorf("task %s: %w", id, domain.ErrBadFrequency)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tasks[id]; !ok {
		return fmt.Errorf("retune %s: %w", id, domain.ErrUnknownTask)
	}
	e.boundaryLocked(func() {
		d, ok := e.tasks[id]
		if !ok {
			return
		}
		d.frequencyHz = frequencyHz
		d.priority = priority
		d.interval = e.interval(frequencyHz)
	})
	return nil
}

// SetEnabled toggles a task's enabled flag. Re-enabling clears the fault
// count and resets the phase, so a task returning from disablement does
// not fire a backlog.
func (e *Executive) SetEnabled(id domain.TaskID, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tasks[id]; !ok {
		return fmt.Errorf("enable %s: %w", id, domain.ErrUnknownTask)
	}
	e.boundaryLocked(func() {
		d, ok := e.tasks[id]
		if !ok {
			return
		}
		if enabled && !d.enabled {
			d.faults = 0
			d.nextDue = e.tick + d.interval
			e.totalDisabled.Add(-1)
			metrics.TasksDisabled.Dec()
		}
		if !enabled && d.enabled {
			e.totalDisabled.Add(1)
			metrics.TasksDisabled.Inc()
		}
		d.enabled = enabled
	})
	return nil
}

// Defer schedules fn to run at the next tick boundary, or immediately if
// no tick is in flight. The state manager routes its activation-table
// swaps through here so a transition is never observed half-applied.
func (e *Executive) Defer(fn func()) {
	e.mu.Lock()
	if e.inTick {
		e.deferred = append(e.deferred, fn)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	fn()
}

// boundaryLocked runs fn now, or queues it for the next boundary when a
// tick is in flight. Caller holds e.mu.
func (e *Executive) boundaryLocked(fn func()) {
	if e.inTick {
		e.deferred = append(e.deferred, fn)
		return
	}
	fn()
}

// ─── Tick Loop ──────────────────────────────────────────────────────────────

// Tick advances the counter by exactly one and executes every due task,
// sequentially, in (priority, id) order. The due set is fixed when the
// tick starts; registration changes made during the tick land at the next
// boundary.
func (e *Executive) Tick(ctx context.Context) {
	start := time.Now()

	// Boundary: apply operations deferred during the previous tick.
	e.mu.Lock()
	pending := e.deferred
	e.deferred = nil
	e.mu.Unlock()
	for _, fn := range pending {
		fn()
	}

	e.mu.Lock()
	e.tick++
	e.inTick = true
	due := e.dueLocked()
	e.mu.Unlock()

	metrics.Ticks.Inc()

	for _, d := range due {
		err := invoke(ctx, d.task)

		e.mu.Lock()
		// Late or faulting tasks never starve: the due tick always moves
		// forward by one full interval.
		d.nextDue += d.interval
		if err != nil {
			d.faults++
			e.totalFaults.Add(1)
			metrics.TaskFaults.WithLabelValues(d.task.Name()).Inc()
			log.Printf("[exec] task fault: [%d][%s] %v (consecutive=%d)", d.task.ID(), d.task.Name(), err, d.faults)
			if d.faults >= e.cfg.FaultBudget && d.enabled {
				d.enabled = false
				e.totalDisabled.Add(1)
				metrics.TasksDisabled.Inc()
				log.Printf("[exec] task [%d][%s] disabled after %d consecutive faults", d.task.ID(), d.task.Name(), d.faults)
			}
		} else {
			d.faults = 0
			e.totalRuns.Add(1)
			metrics.TaskRuns.WithLabelValues(d.task.Name()).Inc()
		}
		e.mu.Unlock()
	}

	e.mu.Lock()
	e.inTick = false
	e.mu.Unlock()

	metrics.TickDuration.Observe(time.Since(start).Seconds())
}

// dueLocked collects the tasks due this tick, sorted by ascending
// priority number, ties broken by ascending task id for determinism.
func (e *Executive) dueLocked() []*descriptor {
	var due []*descriptor
	for _, d := range e.tasks {
		if d.enabled && d.nextDue <= e.tick {
			due = append(due, d)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].priority != due[j].priority {
			return due[i].priority < due[j].priority
		}
		return due[i].task.ID() < due[j].task.ID()
	})
	return due
}

// invoke is the fault-containment wrapper: a panic or returned error in
// one task must never abort another task's turn or the loop itself.
func invoke(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Execute(ctx)
}

// Run drives Tick at the configured base period until ctx is cancelled.
func (e *Executive) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Period())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// ─── Inspection ─────────────────────────────────────────────────────────────

// ActiveIDs returns the ids currently in the registration set, ascending.
func (e *Executive) ActiveIDs() []domain.TaskID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]domain.TaskID, 0, len(e.tasks))
	for id := range e.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Registered reports whether id is in the registration set.
func (e *Executive) Registered(id domain.TaskID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.tasks[id]
	return ok
}

// Snapshot returns the descriptor table sorted by id.
func (e *Executive) Snapshot() []TaskStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TaskStatus, 0, len(e.tasks))
	for id, d := range e.tasks {
		out = append(out, TaskStatus{
			ID:          id,
			Name:        d.task.Name(),
			FrequencyHz: d.frequencyHz,
			Priority:    d.priority,
			NextDueTick: d.nextDue,
			Faults:      d.faults,
			Enabled:     d.enabled,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats summarizes lifetime counters.
type Stats struct {
	Tick          uint64 `json:"tick"`
	Registered    int    `json:"registered"`
	TotalRuns     int64  `json:"total_runs"`
	TotalFaults   int64  `json:"total_faults"`
	TotalDisabled int64  `json:"total_disabled"`
}

// Stats returns current executive statistics.
func (e *Executive) Stats() Stats {
	e.mu.Lock()
	registered := len(e.tasks)
	tick := e.tick
	e.mu.Unlock()
	return Stats{
		Tick:          tick,
		Registered:    registered,
		TotalRuns:     e.totalRuns.Load(),
		TotalFaults:   e.totalFaults.Load(),
		TotalDisabled: e.totalDisabled.Load(),
	}
}
