package module

import (
	"context"
	"fmt"
)

// endUnit closes an instance's frame. It waits for every event unit, ages
// input events, dispatches output events and settles the state after the
// first frame.
type endUnit struct {
	id      string
	inst    *Instance
	prereqs []string
}

func newEndUnit(inst *Instance) *endUnit {
	e := &endUnit{id: fmt.Sprintf("%s/end", inst.id), inst: inst}
	for _, u := range inst.units {
		e.prereqs = append(e.prereqs, u.id)
	}
	return e
}

func (e *endUnit) ID() string              { return e.id }
func (e *endUnit) Prerequisites() []string { return e.prereqs }
func (e *endUnit) Enabled() bool           { return true }

func (e *endUnit) Run(ctx context.Context) error {
	inst := e.inst
	if n := inst.ageInputEvents(); n > 0 {
		inst.logger.Debug("Input events expired.", "count", n)
	}
	runOutputEvents(ctx, inst.sched, inst.takeOutputEvents())

	inst.stateMu.Lock()
	first := inst.state == PendingInitialUpdate
	want := inst.wantEnabled
	inst.stateMu.Unlock()
	if !first {
		return nil
	}

	if u := inst.byEvent[EventInitialize]; u != nil {
		u.SetEnabled(false)
	}
	run := inst.method == InitializeAndRun
	if want != nil {
		run = *want
	}
	if run {
		inst.setUnitsEnabled(true)
		inst.setState(Running)
		return nil
	}
	inst.setUnitsEnabled(false)
	inst.setState(Paused)
	return nil
}
