package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/specialistvlad/traitgraph/internal/executor"
	"github.com/specialistvlad/traitgraph/internal/graph"
)

// ErrNotInitialized is returned by operations that need tick units.
var ErrNotInitialized = errors.New("module instance is not initialized")

// Scheduler is where an instance registers its units and forwards actions
// that must run on the main goroutine. Manager implements it.
type Scheduler interface {
	Register(u executor.Unit) error
	Unregister(id string)
	PostMain(t Task)
}

// Instance runs one Program for one host object.
type Instance struct {
	id      uuid.UUID
	name    string
	program *Program
	method  InitMethod
	logger  *slog.Logger
	host    *graph.Host
	graph   *graph.Instance
	sched   Scheduler

	stateMu sync.Mutex
	state   RunState
	// wantEnabled overrides the init method's target state when Enable is
	// called before the first frame completes.
	wantEnabled *bool

	units   []*TickUnit
	byEvent map[string]*TickUnit
	end     *endUnit

	eventsMu sync.RWMutex
	incoming []*InputEvent
	active   []*InputEvent
	outputs  []OutputEvent
}

// NewInstance creates an uninitialized instance of p. The host variables of
// p are declared immediately so callers can set them before Initialize.
func NewInstance(name string, p *Program, method InitMethod) *Instance {
	inst := &Instance{
		id:      uuid.New(),
		name:    name,
		program: p,
		method:  method,
		host:    graph.NewHost(),
		byEvent: make(map[string]*TickUnit),
	}
	for _, v := range p.Variables {
		inst.host.Declare(v.Name, v.Type, v.Default, v.Interface)
	}
	return inst
}

func (inst *Instance) ID() uuid.UUID          { return inst.id }
func (inst *Instance) Name() string           { return inst.name }
func (inst *Instance) Program() *Program      { return inst.program }
func (inst *Instance) InitMethod() InitMethod { return inst.method }

// Graph returns the allocated graph instance, or nil before Initialize or
// when the program has no graph.
func (inst *Instance) Graph() *graph.Instance { return inst.graph }

// Host returns the variables the instance exposes to its graph.
func (inst *Instance) Host() *graph.Host { return inst.host }

// InterfaceCells implements graph.DataInterfaceHost.
func (inst *Instance) InterfaceCells(name string) ([]*graph.Cell, bool) {
	return inst.host.InterfaceCells(name)
}

// LookupCell implements graph.DataInterfaceHost.
func (inst *Instance) LookupCell(name string) (*graph.Cell, bool) {
	return inst.host.LookupCell(name)
}

// RunState returns the current state.
func (inst *Instance) RunState() RunState {
	inst.stateMu.Lock()
	defer inst.stateMu.Unlock()
	return inst.state
}

func (inst *Instance) setState(to RunState) {
	inst.stateMu.Lock()
	from := inst.state
	mustTransition(from, to)
	inst.state = to
	inst.stateMu.Unlock()
	if inst.logger != nil {
		inst.logger.Debug("Module run state changed.", "from", from, "to", to)
	}
}

// Units returns the event tick units in frame order.
func (inst *Instance) Units() []*TickUnit { return inst.units }

// Unit returns the tick unit of an event, or nil.
func (inst *Instance) Unit(event string) *TickUnit { return inst.byEvent[event] }

// EndUnitID returns the ID of the instance's end unit, or "" before
// Initialize.
func (inst *Instance) EndUnitID() string {
	if inst.end == nil {
		return ""
	}
	return inst.end.id
}

// EndUnitPrerequisites returns the units the end unit waits for.
func (inst *Instance) EndUnitPrerequisites() []string {
	if inst.end == nil {
		return nil
	}
	return inst.end.prereqs
}

// Initialize creates the instance's tick units, binds them, registers them
// with sched and allocates the graph instance. Events the program handles
// but the catalog does not know are logged and skipped.
func (inst *Instance) Initialize(ctx context.Context, sched Scheduler) error {
	inst.logger = ctxlog.FromContext(ctx).With("module", inst.name, "module_instance", inst.id.String())
	inst.sched = sched
	inst.setState(CreatingTasks)

	events := make([]EventDescriptor, 0, len(inst.program.Handlers))
	for name := range inst.program.Handlers {
		d, ok := LookupEvent(name)
		if !ok {
			inst.logger.Warn("Program handles an event missing from the catalog.", "event", name)
			continue
		}
		events = append(events, d)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Phase != events[j].Phase {
			return events[i].Phase < events[j].Phase
		}
		return events[i].order < events[j].order
	})

	var prev *TickUnit
	for _, d := range events {
		u := newTickUnit(inst, d, inst.program.Handlers[d.Name])
		if prev != nil {
			u.AddPrerequisite(prev)
		}
		if inst.method == InitializeOnly && d.Phase == Execute {
			u.SetEnabled(false)
		}
		inst.units = append(inst.units, u)
		inst.byEvent[d.Name] = u
		prev = u
	}

	inst.setState(BindingTasks)
	for _, u := range inst.units {
		if u.event.Bind != nil {
			u.event.Bind(u, inst)
		}
	}
	inst.end = newEndUnit(inst)

	registered := make([]string, 0, len(inst.units)+1)
	units := make([]executor.Unit, 0, len(inst.units)+1)
	for _, u := range inst.units {
		units = append(units, u)
	}
	units = append(units, inst.end)
	for _, u := range units {
		if err := sched.Register(u); err != nil {
			for _, id := range registered {
				sched.Unregister(id)
			}
			inst.units, inst.end = nil, nil
			inst.byEvent = make(map[string]*TickUnit)
			inst.setState(None)
			return fmt.Errorf("module '%s': registering units: %w", inst.name, err)
		}
		registered = append(registered, u.ID())
	}
	inst.setState(PendingInitialUpdate)

	if g := inst.program.Graph; g != nil {
		inst.graph = graph.Allocate(ctx, g, inst, inst.program.EntryPoint)
		if inst.graph.IsValid() {
			inst.graph.BindPublicVariables()
		}
	}
	inst.logger.Debug("Module instance initialized.", "units", len(inst.units), "init_method", inst.method)
	return nil
}

// Enable resumes or pauses ticking. Before the first frame completes it
// overrides the init method's choice instead.
func (inst *Instance) Enable(enabled bool) {
	inst.stateMu.Lock()
	state := inst.state
	switch state {
	case PendingInitialUpdate:
		inst.wantEnabled = &enabled
		inst.stateMu.Unlock()
		return
	case Running, Paused:
	default:
		inst.stateMu.Unlock()
		panic(fmt.Sprintf("module: Enable called in state %s", state))
	}
	inst.stateMu.Unlock()

	inst.setUnitsEnabled(enabled)
	if enabled && state == Paused {
		inst.setState(Running)
	} else if !enabled && state == Running {
		inst.setState(Paused)
	}
}

func (inst *Instance) setUnitsEnabled(enabled bool) {
	for _, u := range inst.units {
		if u.event.Name == EventInitialize {
			continue
		}
		u.SetEnabled(enabled)
	}
}

// QueueTask queues t on the unit of event. An empty event selects the first
// unit in frame order. An unknown event is logged and the task dropped.
func (inst *Instance) QueueTask(event string, t Task, o TaskOrder) bool {
	var u *TickUnit
	if event == "" && len(inst.units) > 0 {
		u = inst.units[0]
	} else {
		u = inst.byEvent[event]
	}
	if u == nil {
		if inst.logger != nil {
			inst.logger.Warn("No tick unit for event, task dropped.", "event", event)
		}
		return false
	}
	u.QueueTask(t, o)
	return true
}

// Release unregisters the units, releases the graph instance and returns
// the instance to None. Releasing twice is a no-op.
func (inst *Instance) Release() {
	if inst.RunState() == None {
		return
	}
	for _, u := range inst.units {
		inst.sched.Unregister(u.id)
	}
	if inst.end != nil {
		inst.sched.Unregister(inst.end.id)
	}
	if inst.graph != nil {
		inst.graph.Release()
	}
	inst.setState(None)
	inst.logger.Debug("Module instance released.")
}
