package tasks

import (
	"context"

	"github.com/kestrel-flight/kestrel/internal/command"
	"github.com/kestrel-flight/kestrel/internal/domain"
)

// commandBudget bounds envelopes drained per due tick so a flooded
// uplink queue cannot starve the rest of the due set.
const commandBudget = 4

// Command drains the uplink FIFO through the command processor. It runs
// in every mode at priority 1: ground control is never lost.
type Command struct {
	Base
	proc *command.Processor
}

// NewCommand creates the uplink drain task.
func NewCommand(proc *command.Processor) *Command {
	return &Command{Base: Base{id: domain.TaskCommand}, proc: proc}
}

func (c *Command) Execute(ctx context.Context) error {
	c.proc.ProcessPending(commandBudget)
	return nil
}
