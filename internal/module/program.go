package module

import (
	"context"
	"log/slog"

	"github.com/specialistvlad/traitgraph/internal/graph"
	"github.com/specialistvlad/traitgraph/internal/trait"
	"github.com/zclconf/go-cty/cty"
)

// Handler is a program's implementation of one event.
type Handler func(ec *EventContext) error

// HostVariable is a variable the module exposes to its graph instance
// through a data interface.
type HostVariable struct {
	Name      string
	Type      cty.Type
	Default   cty.Value
	Interface string
}

// Program is a compiled module: a graph, the entry point instances start
// from, and the events it implements.
type Program struct {
	Name       string
	Graph      *graph.Graph
	EntryPoint string
	Handlers   map[string]Handler
	Variables  []HostVariable
}

// InitMethod decides what happens after an instance's first frame.
type InitMethod int

const (
	// InitializeAndRun keeps ticking after the first frame.
	InitializeAndRun InitMethod = iota
	// InitializeAndPause runs one full priming frame, then pauses.
	InitializeAndPause
	// InitializeOnly runs only the pre-execute and initialize phases, then
	// pauses.
	InitializeOnly
)

func (m InitMethod) String() string {
	switch m {
	case InitializeAndRun:
		return "initialize-and-run"
	case InitializeAndPause:
		return "initialize-and-pause"
	case InitializeOnly:
		return "initialize-only"
	}
	return "unknown"
}

// EventContext is what a handler sees while its unit runs.
type EventContext struct {
	ctx   context.Context
	unit  *TickUnit
	frame frameInfo
}

func (ec *EventContext) Context() context.Context { return ec.ctx }
func (ec *EventContext) Logger() *slog.Logger     { return ec.unit.inst.logger }
func (ec *EventContext) Instance() *Instance      { return ec.unit.inst }
func (ec *EventContext) Event() EventDescriptor   { return ec.unit.event }
func (ec *EventContext) DeltaTime() float64       { return ec.frame.dt }
func (ec *EventContext) Frame() uint64            { return ec.frame.number }

// Graph returns the instance's graph, or nil if the program has none.
func (ec *EventContext) Graph() *graph.Instance { return ec.unit.inst.graph }

// InputEvents returns the input events visible in this frame.
func (ec *EventContext) InputEvents() []trait.Event { return ec.unit.inst.activeInputEvents() }

// QueueOutputEvent schedules an action for the end of the instance's frame.
func (ec *EventContext) QueueOutputEvent(ev OutputEvent) { ec.unit.inst.QueueOutputEvent(ev) }

// UpdateGraph is a handler that runs one graph update.
func UpdateGraph(ec *EventContext) error {
	g := ec.Graph()
	if g == nil || !g.IsValid() {
		return nil
	}
	return g.Update(ec.Context(), ec.DeltaTime())
}

// DispatchInputEvents is a handler that offers every visible input event to
// the graph. Events nothing consumes are logged at debug level.
func DispatchInputEvents(ec *EventContext) error {
	g := ec.Graph()
	if g == nil || !g.IsValid() {
		return nil
	}
	for _, ev := range ec.InputEvents() {
		if !g.DispatchEvent(ec.Context(), ev) {
			ec.Logger().Debug("Input event not consumed.", "event", ev.EventName())
		}
	}
	return nil
}
