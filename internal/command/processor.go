package command

import (
	"fmt"
	"log"

	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/exec"
)

// HeartbeatStream is the telemetry stream carrying commanded heartbeats:
// the current tick, the numeric mode, and pending uplink depth.
const HeartbeatStream = "heartbeat"

// HeartbeatFields and HeartbeatLayout declare the stream shape.
var (
	HeartbeatFields = []string{"tick", "mode", "queue_depth"}
	HeartbeatLayout = "QBB"
)

// ModeMachine is the state-manager surface commands act through.
type ModeMachine interface {
	Current() domain.Mode
	RequestTransition(target domain.Mode) error
	ForceTransition(target domain.Mode, reason string) error
}

// TaskControl is the scheduler surface commands act through.
type TaskControl interface {
	SetEnabled(id domain.TaskID, enabled bool) error
	Retune(id domain.TaskID, frequencyHz float64, priority int) error
	Snapshot() []exec.TaskStatus
	CurrentTick() uint64
}

// Appender receives commanded telemetry frames.
type Appender interface {
	Append(stream string, tick uint64, values []float64) error
}

// Result is the downlink outcome of one envelope.
type Result struct {
	ID      string    `json:"id"`
	Command CommandID `json:"command"`
	Name    string    `json:"name"`
	Status  Status    `json:"status"`
	Detail  string    `json:"detail,omitempty"`
}

// Processor drains the uplink queue and executes envelopes against the
// kernel. Every envelope produces a Result; a failing command never
// propagates past its own entry.
type Processor struct {
	queue  *Queue
	modes  ModeMachine
	tasks  TaskControl
	tm     Appender
	reboot func()
}

// NewProcessor wires the command surface. The reboot hook may be nil,
// which turns FORCE_REBOOT into a logged no-op (simulation).
func NewProcessor(queue *Queue, modes ModeMachine, tasks TaskControl, tm Appender, reboot func()) *Processor {
	if reboot == nil {
		reboot = func() { log.Printf("[command] FORCE_REBOOT requested — no reboot hook installed") }
	}
	return &Processor{queue: queue, modes: modes, tasks: tasks, tm: tm, reboot: reboot}
}

// Queue exposes the uplink queue for ingest surfaces.
func (p *Processor) Queue() *Queue { return p.queue }

// Dispatch validates and executes one envelope.
func (p *Processor) Dispatch(env Envelope) Result {
	res := Result{ID: env.ID.String(), Command: env.Command}

	def, ok := Lookup(env.Command)
	if !ok {
		res.Status = StatusUnknownCommand
		res.Detail = fmt.Sprintf("opcode 0x%X", uint8(env.Command))
		log.Printf("[command] %s: unknown opcode 0x%X", env.ID, uint8(env.Command))
		return res
	}
	res.Name = def.Name

	if len(env.Args) != len(def.Args) {
		err := fmt.Errorf("%s takes %d args, got %d: %w", def.Name, len(def.Args), len(env.Args), domain.ErrArgumentMismatch)
		res.Status = StatusArgumentMismatch
		res.Detail = err.Error()
		log.Printf("[command] %s %v", env.ID, err)
		return res
	}
	if def.Precondition != nil {
		if err := def.Precondition(p, env.Args); err != nil {
			res.Status = StatusPreconditionFailed
			res.Detail = err.Error()
			log.Printf("[command] %s %s precondition failed: %v", env.ID, def.Name, err)
			return res
		}
	}
	if err := def.Execute(p, env.Args); err != nil {
		res.Status = StatusExecutionFailed
		res.Detail = err.Error()
		log.Printf("[command] %s %s failed: %v", env.ID, def.Name, err)
		return res
	}

	res.Status = StatusOK
	log.Printf("[command] %s %s %v ok", env.ID, def.Name, env.Args)
	return res
}

// ProcessPending drains up to max envelopes from the queue. The COMMAND
// task calls this once per due tick with a small budget so a flooded
// queue cannot starve the rest of the due set.
func (p *Processor) ProcessPending(max int) []Result {
	var results []Result
	for i := 0; i < max; i++ {
		env, ok := p.queue.Pop()
		if !ok {
			break
		}
		results = append(results, p.Dispatch(env))
	}
	return results
}

// Heartbeat appends one commanded heartbeat frame.
func (p *Processor) Heartbeat() error {
	if p.tm == nil {
		return nil
	}
	tick := p.tasks.CurrentTick()
	return p.tm.Append(HeartbeatStream, tick, []float64{
		float64(tick),
		float64(p.modes.Current()),
		float64(p.queue.Len()),
	})
}

// retune changes a task's rate while keeping its current priority.
func (p *Processor) retune(id domain.TaskID, hz float64) error {
	for _, s := range p.tasks.Snapshot() {
		if s.ID == id {
			return p.tasks.Retune(id, hz, s.Priority)
		}
	}
	return fmt.Errorf("%s not active in the current mode: %w", id, domain.ErrUnknownTask)
}
