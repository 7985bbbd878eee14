package executor

import (
	"context"
	"sync"
	"sync/atomic"
)

// Unit is one schedulable piece of per-frame work.
type Unit interface {
	// ID is unique among the units registered with one executor.
	ID() string
	// Prerequisites lists the IDs of units that must complete first.
	Prerequisites() []string
	// Enabled reports whether the unit runs this frame. A disabled unit
	// completes immediately and does not block its dependents.
	Enabled() bool
	Run(ctx context.Context) error
}

// State is the per-frame state of a unit.
type State int32

const (
	// Pending units wait for prerequisites.
	Pending State = iota
	// Running units are executing on a worker.
	Running
	// Done units completed successfully.
	Done
	// Disabled units were not run this frame.
	Disabled
	// Failed units returned an error or were skipped after an upstream
	// failure.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Disabled:
		return "disabled"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// node is the per-frame bookkeeping of one unit.
type node struct {
	unit       Unit
	dependents []*node

	// depCount is the number of prerequisites not yet complete.
	depCount atomic.Int32
	state    atomic.Int32
	err      error
	skipped  bool
	skipOnce sync.Once
}

func (n *node) id() string { return n.unit.ID() }

func (n *node) setState(s State) { n.state.Store(int32(s)) }

func (n *node) getState() State { return State(n.state.Load()) }
