package command

import (
	"fmt"
	"strconv"

	"github.com/kestrel-flight/kestrel/internal/domain"
)

// CommandID is the stable uplink opcode. IDs are part of the ground
// contract and never renumbered.
type CommandID uint8

const (
	SwitchToSafeMode       CommandID = 0x01
	SwitchToAutonomousMode CommandID = 0x02
	EnableTask             CommandID = 0x03
	DisableTask            CommandID = 0x04
	SetTaskFrequency       CommandID = 0x05
	RequestTMHeartbeat     CommandID = 0x06
	ForceReboot            CommandID = 0x07
)

// Status is the per-envelope execution outcome reported back downlink.
type Status uint8

const (
	StatusOK Status = iota
	StatusUnknownCommand
	StatusPreconditionFailed
	StatusArgumentMismatch
	StatusExecutionFailed
)

// String returns the downlink name of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusUnknownCommand:
		return "UNKNOWN_COMMAND"
	case StatusPreconditionFailed:
		return "PRECONDITION_FAILED"
	case StatusArgumentMismatch:
		return "ARGUMENT_MISMATCH"
	case StatusExecutionFailed:
		return "EXECUTION_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Definition is one table entry: fixed argument arity, an optional
// precondition checked before execution, and the execution body.
type Definition struct {
	ID           CommandID
	Name         string
	Args         []string
	Precondition func(p *Processor, args []string) error
	Execute      func(p *Processor, args []string) error
}

// table is the closed command set, keyed by opcode.
var table = map[CommandID]Definition{
	SwitchToSafeMode: {
		ID:   SwitchToSafeMode,
		Name: "SWITCH_TO_SAFE_MODE",
		Execute: func(p *Processor, args []string) error {
			return p.modes.ForceTransition(domain.ModeSafe, "ground command")
		},
	},
	SwitchToAutonomousMode: {
		ID:   SwitchToAutonomousMode,
		Name: "SWITCH_TO_AUTONOMOUS_MODE",
		Args: []string{"target_mode"},
		Precondition: func(p *Processor, args []string) error {
			target, ok := domain.ParseMode(args[0])
			if !ok {
				return fmt.Errorf("mode %q: %w", args[0], domain.ErrUnknownMode)
			}
			if target == domain.ModeStartup {
				return fmt.Errorf("cannot command a return to STARTUP: %w", domain.ErrNotAdjacent)
			}
			return nil
		},
		Execute: func(p *Processor, args []string) error {
			target, ok := domain.ParseMode(args[0])
			if !ok {
				return fmt.Errorf("mode %q: %w", args[0], domain.ErrUnknownMode)
			}
			return p.modes.RequestTransition(target)
		},
	},
	EnableTask: {
		ID:   EnableTask,
		Name: "ENABLE_TASK",
		Args: []string{"task"},
		Execute: func(p *Processor, args []string) error {
			id, ok := domain.ParseTaskID(args[0])
			if !ok {
				return fmt.Errorf("task %q: %w", args[0], domain.ErrUnknownTask)
			}
			return p.tasks.SetEnabled(id, true)
		},
	},
	DisableTask: {
		ID:   DisableTask,
		Name: "DISABLE_TASK",
		Args: []string{"task"},
		Precondition: func(p *Processor, args []string) error {
			id, ok := domain.ParseTaskID(args[0])
			if !ok {
				return fmt.Errorf("task %q: %w", args[0], domain.ErrUnknownTask)
			}
			// The command drain must stay alive or the ground loses control.
			if id == domain.TaskCommand {
				return fmt.Errorf("COMMAND task cannot be disabled: %w", domain.ErrPreconditionFailed)
			}
			return nil
		},
		Execute: func(p *Processor, args []string) error {
			id, ok := domain.ParseTaskID(args[0])
			if !ok {
				return fmt.Errorf("task %q: %w", args[0], domain.ErrUnknownTask)
			}
			return p.tasks.SetEnabled(id, false)
		},
	},
	SetTaskFrequency: {
		ID:   SetTaskFrequency,
		Name: "SET_TASK_FREQUENCY",
		Args: []string{"task", "frequency_hz"},
		Precondition: func(p *Processor, args []string) error {
			if _, ok := domain.ParseTaskID(args[0]); !ok {
				return fmt.Errorf("task %q: %w", args[0], domain.ErrUnknownTask)
			}
			hz, err := strconv.ParseFloat(args[1], 64)
			if err != nil || hz <= 0 {
				return fmt.Errorf("frequency %q: %w", args[1], domain.ErrBadFrequency)
			}
			return nil
		},
		Execute: func(p *Processor, args []string) error {
			id, _ := domain.ParseTaskID(args[0])
			hz, _ := strconv.ParseFloat(args[1], 64)
			return p.retune(id, hz)
		},
	},
	RequestTMHeartbeat: {
		ID:   RequestTMHeartbeat,
		Name: "REQUEST_TM_HEARTBEAT",
		Execute: func(p *Processor, args []string) error {
			return p.Heartbeat()
		},
	},
	ForceReboot: {
		ID:   ForceReboot,
		Name: "FORCE_REBOOT",
		Execute: func(p *Processor, args []string) error {
			p.reboot()
			return nil
		},
	},
}

// Lookup returns the definition for an opcode.
func Lookup(id CommandID) (Definition, bool) {
	def, ok := table[id]
	return def, ok
}

// ParseCommand resolves a command name to its opcode.
func ParseCommand(name string) (CommandID, error) {
	for id, def := range table {
		if def.Name == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", name, domain.ErrUnknownCommand)
}
