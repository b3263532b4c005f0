// Package metrics provides Prometheus metrics for the flight kernel:
// counters, gauges, and histograms for the tick loop, task execution,
// mode transitions, and device health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Executive ──────────────────────────────────────────────────────────────

// Ticks counts scheduler base ticks since boot.
var Ticks = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "kestrel",
	Name:      "ticks_total",
	Help:      "Scheduler base ticks since boot.",
})

// TickDuration tracks wall time spent executing one tick's due set.
var TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "kestrel",
	Name:      "tick_duration_seconds",
	Help:      "Wall time spent executing one tick's due tasks.",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
})

// TaskRuns counts completed task invocations by task.
var TaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kestrel",
	Name:      "task_runs_total",
	Help:      "Completed task invocations.",
}, []string{"task"})

// TaskFaults counts contained task faults by task.
var TaskFaults = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kestrel",
	Name:      "task_faults_total",
	Help:      "Contained task faults (panics and returned errors).",
}, []string{"task"})

// TasksDisabled tracks tasks currently auto-disabled over their fault budget.
var TasksDisabled = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "kestrel",
	Name:      "tasks_disabled",
	Help:      "Tasks auto-disabled after exceeding the consecutive-fault budget.",
})

// ─── Mode Machine ───────────────────────────────────────────────────────────

// CurrentMode exposes the numeric operating mode.
var CurrentMode = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "kestrel",
	Name:      "mode_current",
	Help:      "Current operating mode (0=STARTUP 1=NOMINAL 2=DOWNLINK 3=LOW_POWER 4=SAFE).",
})

// ModeTransitions counts applied transitions by target and path.
var ModeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kestrel",
	Name:      "mode_transitions_total",
	Help:      "Applied mode transitions.",
}, []string{"to", "forced"})

// ─── Device Health ──────────────────────────────────────────────────────────

// DeviceErrors counts hardware error reports by device.
var DeviceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kestrel",
	Name:      "device_errors_total",
	Help:      "Hardware error reports.",
}, []string{"device"})

// Escalations counts fault-escalation verdicts by action.
var Escalations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kestrel",
	Name:      "escalations_total",
	Help:      "Fault-escalation verdicts by action.",
}, []string{"action"})

// ─── Telemetry ──────────────────────────────────────────────────────────────

// TelemetryAppends counts records appended by stream.
var TelemetryAppends = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kestrel",
	Name:      "telemetry_appends_total",
	Help:      "Telemetry records appended.",
}, []string{"stream"})
