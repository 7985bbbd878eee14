package module

import (
	"context"

	"github.com/specialistvlad/traitgraph/internal/trait"
)

// InputEvent is an event delivered to an instance for Lifetime frames.
// A Lifetime below one is treated as one.
type InputEvent struct {
	Event    trait.Event
	Lifetime int
}

// OutputEvent is an action a handler produces. AnyThread actions run on the
// worker that completes the instance's frame; the rest are forwarded to the
// main-thread queue.
type OutputEvent struct {
	Name      string
	AnyThread bool
	Action    Task
}

// QueueInputEvent queues ev. It becomes visible to handlers from the next
// frame on. Safe to call from any goroutine.
func (inst *Instance) QueueInputEvent(ev InputEvent) {
	if ev.Lifetime < 1 {
		ev.Lifetime = 1
	}
	inst.eventsMu.Lock()
	inst.incoming = append(inst.incoming, &ev)
	inst.eventsMu.Unlock()
}

// QueueOutputEvent queues an action for the end of the current frame.
func (inst *Instance) QueueOutputEvent(ev OutputEvent) {
	inst.eventsMu.Lock()
	inst.outputs = append(inst.outputs, ev)
	inst.eventsMu.Unlock()
}

// PendingInputEvents returns how many queued input events are not yet
// visible to handlers.
func (inst *Instance) PendingInputEvents() int {
	inst.eventsMu.RLock()
	defer inst.eventsMu.RUnlock()
	return len(inst.incoming)
}

func (inst *Instance) activeInputEvents() []trait.Event {
	inst.eventsMu.RLock()
	defer inst.eventsMu.RUnlock()
	out := make([]trait.Event, len(inst.active))
	for i, ev := range inst.active {
		out[i] = ev.Event
	}
	return out
}

// ageInputEvents decrements the lifetime of visible events, purges the
// expired ones and promotes the queued ones. It returns how many expired.
func (inst *Instance) ageInputEvents() int {
	inst.eventsMu.Lock()
	defer inst.eventsMu.Unlock()
	kept := inst.active[:0]
	for _, ev := range inst.active {
		ev.Lifetime--
		if ev.Lifetime > 0 {
			kept = append(kept, ev)
		}
	}
	expired := len(inst.active) - len(kept)
	clear(inst.active[len(kept):])
	inst.active = append(kept, inst.incoming...)
	inst.incoming = nil
	return expired
}

func (inst *Instance) takeOutputEvents() []OutputEvent {
	inst.eventsMu.Lock()
	defer inst.eventsMu.Unlock()
	out := inst.outputs
	inst.outputs = nil
	return out
}

func runOutputEvents(ctx context.Context, sched Scheduler, events []OutputEvent) {
	for _, ev := range events {
		if ev.Action == nil {
			continue
		}
		if ev.AnyThread {
			ev.Action(ctx)
			continue
		}
		sched.PostMain(ev.Action)
	}
}
