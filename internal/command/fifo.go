// Package command implements the uplink command surface: a bounded FIFO
// of command envelopes and a table-driven processor that validates and
// executes them against the kernel.
package command

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-flight/kestrel/internal/domain"
)

// Envelope is one uplinked command with its correlation ID.
type Envelope struct {
	ID       uuid.UUID `json:"id"`
	Command  CommandID `json:"command"`
	Args     []string  `json:"args"`
	Received time.Time `json:"received"`
}

// Queue is a bounded FIFO of pending command envelopes. Pushes past
// capacity are rejected so a flooded uplink cannot grow memory.
type Queue struct {
	mu    sync.Mutex
	items []Envelope
	cap   int
}

// NewQueue creates a queue holding at most capacity envelopes.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 16
	}
	return &Queue{cap: capacity}
}

// Push enqueues an envelope, rejecting when full.
func (q *Queue) Push(env Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.cap {
		return domain.ErrUplinkQueueFull
	}
	q.items = append(q.items, env)
	return nil
}

// Pop dequeues the oldest envelope.
func (q *Queue) Pop() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Envelope{}, false
	}
	env := q.items[0]
	q.items = q.items[1:]
	return env, true
}

// Len returns the number of pending envelopes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
