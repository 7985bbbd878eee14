package module

import "fmt"

// RunState is the lifecycle state of a module instance.
type RunState int32

const (
	None RunState = iota
	CreatingTasks
	BindingTasks
	PendingInitialUpdate
	Running
	Paused
)

func (s RunState) String() string {
	switch s {
	case None:
		return "none"
	case CreatingTasks:
		return "creating-tasks"
	case BindingTasks:
		return "binding-tasks"
	case PendingInitialUpdate:
		return "pending-initial-update"
	case Running:
		return "running"
	case Paused:
		return "paused"
	}
	return fmt.Sprintf("RunState(%d)", int32(s))
}

// transitions lists the legal targets of every state. Any state may return
// to None on teardown.
var transitions = map[RunState][]RunState{
	None:                 {CreatingTasks},
	CreatingTasks:        {BindingTasks, None},
	BindingTasks:         {PendingInitialUpdate, None},
	PendingInitialUpdate: {Running, Paused, None},
	Running:              {Paused, None},
	Paused:               {Running, None},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to RunState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func mustTransition(from, to RunState) {
	if !CanTransition(from, to) {
		panic(fmt.Sprintf("module: illegal run state transition %s -> %s", from, to))
	}
}
