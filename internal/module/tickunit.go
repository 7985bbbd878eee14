package module

import (
	"context"
	"fmt"
	"sync/atomic"
)

// TaskOrder places a queued task around the unit's handler.
type TaskOrder int

const (
	Before TaskOrder = iota
	After
)

// TickUnit runs one event handler of one module instance per frame. It
// implements executor.Unit.
type TickUnit struct {
	id      string
	event   EventDescriptor
	inst    *Instance
	handler Handler

	prereqs []string
	enabled atomic.Bool
	pre     *taskQueue
	post    *taskQueue
}

func newTickUnit(inst *Instance, ev EventDescriptor, h Handler) *TickUnit {
	u := &TickUnit{
		id:      fmt.Sprintf("%s/%s", inst.id, ev.Name),
		event:   ev,
		inst:    inst,
		handler: h,
		pre:     newTaskQueue(),
		post:    newTaskQueue(),
	}
	u.enabled.Store(true)
	return u
}

func (u *TickUnit) ID() string              { return u.id }
func (u *TickUnit) Prerequisites() []string { return u.prereqs }
func (u *TickUnit) Enabled() bool           { return u.enabled.Load() }
func (u *TickUnit) Event() EventDescriptor  { return u.event }
func (u *TickUnit) Instance() *Instance     { return u.inst }
func (u *TickUnit) SetEnabled(enabled bool) { u.enabled.Store(enabled) }

// QueueTask queues t to run before or after the next handler run. Safe to
// call from any goroutine.
func (u *TickUnit) QueueTask(t Task, o TaskOrder) {
	if o == After {
		u.post.push(t)
		return
	}
	u.pre.push(t)
}

// AddPrerequisite makes u wait for other within every frame.
func (u *TickUnit) AddPrerequisite(other *TickUnit) {
	for _, id := range u.prereqs {
		if id == other.id {
			return
		}
	}
	u.prereqs = append(u.prereqs, other.id)
}

// Run drains the pre queue, runs the handler, then drains the post queue.
// Post tasks run even if the handler fails.
func (u *TickUnit) Run(ctx context.Context) error {
	u.pre.drain(ctx)
	defer u.post.drain(ctx)

	if u.handler == nil {
		return nil
	}
	ec := &EventContext{ctx: ctx, unit: u, frame: frameFromContext(ctx)}
	if err := u.handler(ec); err != nil {
		return fmt.Errorf("module '%s' event '%s': %w", u.inst.name, u.event.Name, err)
	}
	return nil
}
