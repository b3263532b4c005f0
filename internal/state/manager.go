// Package state implements the mode machine: the sole owner of the
// current operating mode and the sole authority for transitions between
// modes. A transition swaps the executive's active task set against the
// target mode's activation table as one atomic unit — the executive never
// observes a half-applied swap.
package state

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/exec"
	"github.com/kestrel-flight/kestrel/internal/infra/metrics"
)

// Manager mediates every mode change, normal or forced. It is constructed
// explicitly and owned by the flight computer; there is no process-wide
// instance.
type Manager struct {
	exec   *exec.Executive
	tasks  map[domain.TaskID]exec.Task
	config map[domain.Mode]map[domain.TaskID]domain.TaskParams

	mu         sync.Mutex
	current    domain.Mode
	booted     bool
	lastChange time.Time
}

// NewManager wires the mode machine to the executive and the task
// instances. Every task referenced by an activation table must have an
// instance; a gap is a wiring bug caught at construction.
func NewManager(ex *exec.Executive, tasks map[domain.TaskID]exec.Task) (*Manager, error) {
	cfg := domain.ModeTaskConfig
	for mode, table := range cfg {
		for id := range table {
			if _, ok := tasks[id]; !ok {
				return nil, fmt.Errorf("state: mode %s activates task %s but no instance was provided", mode, id)
			}
		}
	}
	return &Manager{
		exec:   ex,
		tasks:  tasks,
		config: cfg,
	}, nil
}

// Current returns the operating mode. Freely callable by task bodies to
// branch behavior.
func (m *Manager) Current() domain.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SinceLastChange returns the wall time spent in the current mode.
func (m *Manager) SinceLastChange() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastChange)
}

// Boot initializes to STARTUP and installs its activation table. Must run
// before the executive's first tick.
func (m *Manager) Boot() {
	m.apply(domain.ModeStartup, false, "boot")
	m.mu.Lock()
	m.booted = true
	m.mu.Unlock()
}

// RequestTransition performs a normal transition. It succeeds only when
// target is adjacent to the current mode; on rejection the mode and task
// set are unchanged. Requesting the current mode is a no-op that resets
// no task's phase.
func (m *Manager) RequestTransition(target domain.Mode) error {
	if !target.Valid() {
		return fmt.Errorf("transition to %s: %w", target, domain.ErrUnknownMode)
	}

	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()

	if target == cur {
		return nil
	}
	if !cur.Adjacent(target) {
		return fmt.Errorf("%s -> %s: %w", cur, target, domain.ErrNotAdjacent)
	}

	m.exec.Defer(func() { m.apply(target, false, "requested") })
	return nil
}

// ForceTransition performs the same activation swap but bypasses the
// adjacency check. This is the single designed escape hatch in an
// otherwise closed graph: safety exits, principally to SAFE, must never
// be blocked by the declared topology. Device-health escalation is the
// expected caller; the ground command surface also reaches it.
func (m *Manager) ForceTransition(target domain.Mode, reason string) error {
	if !target.Valid() {
		return fmt.Errorf("forced transition to %s: %w", target, domain.ErrUnknownMode)
	}

	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()
	if target == cur {
		log.Printf("[state] forced transition to %s ignored: already there (%s)", target, reason)
		return nil
	}

	m.exec.Defer(func() { m.apply(target, true, reason) })
	return nil
}

// apply swaps the activation table and updates the mode. It always runs
// at a tick boundary (via the executive's deferred queue when a tick is
// in flight), so the whole swap lands between ticks.
func (m *Manager) apply(target domain.Mode, forced bool, reason string) {
	m.mu.Lock()
	cur := m.current
	booted := m.booted
	m.mu.Unlock()

	if booted && target == cur {
		return
	}

	curTable := m.config[cur]
	newTable := m.config[target]

	// Deactivate tasks absent from the target table.
	if booted {
		for id := range curTable {
			if _, keep := newTable[id]; !keep {
				m.exec.Deregister(id)
			}
		}
	}

	// Activate new tasks with a fresh phase; retune retained tasks to the
	// target mode's rate without touching their phase.
	ids := make([]domain.TaskID, 0, len(newTable))
	for id := range newTable {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		params := newTable[id]
		_, retained := curTable[id]
		if retained && booted {
			if err := m.exec.Retune(id, params.FrequencyHz, params.Priority); err != nil {
				log.Printf("[state] retune %s for %s: %v", id, target, err)
			}
			continue
		}
		if err := m.exec.Register(m.tasks[id], params); err != nil {
			log.Printf("[state] register %s for %s: %v", id, target, err)
		}
	}

	m.mu.Lock()
	m.current = target
	m.lastChange = time.Now()
	m.mu.Unlock()

	metrics.CurrentMode.Set(float64(target))
	metrics.ModeTransitions.WithLabelValues(target.String(), boolLabel(forced)).Inc()
	if forced {
		log.Printf("[state] FORCED %s -> %s (%s)", cur, target, reason)
	} else {
		log.Printf("[state] %s -> %s (%s)", cur, target, reason)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
