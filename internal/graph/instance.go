package graph

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/specialistvlad/traitgraph/internal/graphio"
	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/specialistvlad/traitgraph/internal/trait"
	"github.com/zclconf/go-cty/cty"
)

// BindingState tracks whether public variables read host memory.
type BindingState int

const (
	// BindingNone means the graph has no public variables.
	BindingNone BindingState = iota
	// BindingUnbound means every slot reads the instance's own cells.
	BindingUnbound
	// BindingBound means at least one slot reads a host cell.
	BindingBound
)

func (s BindingState) String() string {
	switch s {
	case BindingNone:
		return "none"
	case BindingUnbound:
		return "unbound"
	case BindingBound:
		return "bound"
	}
	return "unknown"
}

// State is the hot-reload state of an instance.
type State int

const (
	// Live instances update normally.
	Live State = iota
	// FrozenPendingThaw instances refuse updates until thawed.
	FrozenPendingThaw
)

func (s State) String() string {
	if s == FrozenPendingThaw {
		return "frozen-pending-thaw"
	}
	return "live"
}

var (
	// ErrFrozen is returned by Update while the instance is frozen.
	ErrFrozen = errors.New("graph instance is frozen")
	// ErrReleased is returned by operations on a released or empty instance.
	ErrReleased = errors.New("graph instance is released")
)

// NodeInstance is the runtime memory of one node.
type NodeInstance struct {
	Desc graphio.NodeDescription
	Data []byte
}

// Instance is one runtime allocation of a graph. Its address is stable for
// its whole lifetime.
type Instance struct {
	id     uuid.UUID
	graph  *Graph
	entry  handle.EntryPoint
	logger *slog.Logger

	host   DataInterfaceHost
	parent *Instance
	root   *Instance

	own   []*Cell
	slots []*Cell

	stateMu sync.RWMutex
	binding BindingState
	state   State

	nodes     []*NodeInstance
	nodeIndex map[handle.Node]int

	compMu     sync.Mutex
	components map[string]any

	mu       sync.Mutex
	released bool
}

// Allocate creates an instance of g rooted at the named entry point. owner
// is the natural data-interface host: a module instance or, for nested
// graphs, the parent *Instance. An unknown entry point yields an empty
// instance for which IsValid is false.
func Allocate(ctx context.Context, g *Graph, owner DataInterfaceHost, entry string) *Instance {
	inst := &Instance{
		id:     uuid.New(),
		graph:  g,
		host:   owner,
		logger: ctxlog.FromContext(ctx).With("graph", g.Name),
	}
	if p, ok := owner.(*Instance); ok && p != nil {
		inst.parent = p
		inst.root = p.root
	} else {
		inst.root = inst
	}
	inst.entry = g.EntryPoint(entry)
	inst.logger = inst.logger.With("instance", inst.id.String(), "entry", inst.entry.Name)
	if !inst.entry.IsValid() {
		inst.logger.Warn("Entry point does not resolve, graph instance is empty.")
		return inst
	}

	inst.own = make([]*Cell, len(g.variables))
	for i, v := range g.variables {
		inst.own[i] = NewCell(v.Type, v.Default)
	}
	inst.slots = append([]*Cell(nil), inst.own...)
	if g.HasPublicVariables() {
		inst.binding = BindingUnbound
	}

	inst.collect(inst.entry.Root)
	for _, n := range inst.nodes {
		for _, t := range n.Desc.Template.Implementers(trait.CapLifecycle) {
			impl := n.Desc.Template.Traits[t].Descriptor.Impl.(trait.Lifecycle)
			impl.Construct(inst.bindingFor(n, int(t)))
		}
	}

	g.track(inst)
	inst.logger.Debug("Graph instance allocated.", "nodes", len(inst.nodes), "binding", inst.binding)
	return inst
}

// collect allocates instance data for root and every node reachable through
// handle fields, in breadth-first order.
func (inst *Instance) collect(root handle.Node) {
	inst.nodeIndex = make(map[handle.Node]int)
	queue := []handle.Node{root}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if _, seen := inst.nodeIndex[h]; seen {
			continue
		}
		desc, ok := inst.graph.Node(h)
		if !ok {
			panic("graph: handle " + h.String() + " does not address a node")
		}
		inst.nodeIndex[h] = len(inst.nodes)
		inst.nodes = append(inst.nodes, &NodeInstance{Desc: desc, Data: make([]byte, desc.InstanceSize)})

		for t, l := range desc.Template.Traits {
			shared := desc.TraitSharedData(inst.graph.shared, t)
			for _, f := range l.Descriptor.Fields {
				switch f.Kind {
				case trait.KindNodeHandle:
					if child := trait.Decode(f.Kind, shared[f.Offset:]).(handle.Node); child.IsValid() {
						queue = append(queue, child)
					}
				case trait.KindTraitHandle:
					if th := trait.Decode(f.Kind, shared[f.Offset:]).(handle.Trait); th.IsValid() {
						queue = append(queue, th.Node())
					}
				}
			}
		}
	}
}

func (inst *Instance) bindingFor(n *NodeInstance, t int) trait.Binding {
	l := n.Desc.Template.Traits[t]
	return trait.Binding{
		Descriptor:   l.Descriptor,
		Node:         n.Desc.Handle,
		Trait:        handle.NewTrait(n.Desc.Handle, t),
		Shared:       n.Desc.TraitSharedData(inst.graph.shared, t),
		LatentTable:  n.Desc.TraitLatentTable(inst.graph.shared, t),
		Instance:     n.Data[l.InstanceOffset : l.InstanceOffset+l.InstanceSize],
		NodeInstance: n.Data,
	}
}

// ID returns the instance id.
func (inst *Instance) ID() uuid.UUID { return inst.id }

// Graph returns the compiled graph.
func (inst *Instance) Graph() *Graph { return inst.graph }

// EntryPoint returns the resolved entry point.
func (inst *Instance) EntryPoint() handle.EntryPoint { return inst.entry }

// IsValid reports whether the instance has a root and is not released.
func (inst *Instance) IsValid() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.entry.IsValid() && !inst.released
}

// IsRoot reports whether the instance is the root of its tree.
func (inst *Instance) IsRoot() bool { return inst.root == inst }

// Root returns the root instance of the tree.
func (inst *Instance) Root() *Instance { return inst.root }

// Parent returns the parent instance, or nil for a root.
func (inst *Instance) Parent() *Instance { return inst.parent }

// Owner returns the natural data-interface host.
func (inst *Instance) Owner() DataInterfaceHost { return inst.host }

// Binding returns the variable binding state.
func (inst *Instance) Binding() BindingState {
	inst.stateMu.RLock()
	defer inst.stateMu.RUnlock()
	return inst.binding
}

// State returns the hot-reload state.
func (inst *Instance) State() State {
	inst.stateMu.RLock()
	defer inst.stateMu.RUnlock()
	return inst.state
}

// NodeInstance returns the runtime memory of node h.
func (inst *Instance) NodeInstance(h handle.Node) (*NodeInstance, bool) {
	i, ok := inst.nodeIndex[h]
	if !ok {
		return nil, false
	}
	return inst.nodes[i], true
}

// NodeInstances returns every node instance in allocation order.
func (inst *Instance) NodeInstances() []*NodeInstance { return inst.nodes }

// Variable returns the current value of a variable through its slot.
func (inst *Instance) Variable(name string) (cty.Value, bool) {
	c, ok := inst.LookupCell(name)
	if !ok {
		return cty.NilVal, false
	}
	return c.Get(), true
}

// SetVariable writes a variable through its slot; a bound slot writes host
// memory.
func (inst *Instance) SetVariable(name string, v cty.Value) error {
	c, ok := inst.LookupCell(name)
	if !ok {
		return errors.New("unknown variable '" + name + "'")
	}
	return c.Set(v)
}

// VariableCell returns the cell a variable slot currently points at.
func (inst *Instance) VariableCell(name string) *Cell {
	c, _ := inst.LookupCell(name)
	return c
}

// LookupCell implements DataInterfaceHost for nested graphs.
func (inst *Instance) LookupCell(name string) (*Cell, bool) {
	i, ok := inst.graph.varIndex[name]
	if !ok || i >= len(inst.slots) {
		return nil, false
	}
	return inst.slots[i], true
}

// InterfaceCells implements DataInterfaceHost for nested graphs.
func (inst *Instance) InterfaceCells(name string) ([]*Cell, bool) {
	for _, iface := range inst.graph.interfaces {
		if iface.Name != name {
			continue
		}
		out := make([]*Cell, 0, len(iface.Variables))
		for _, v := range iface.Variables {
			c, ok := inst.LookupCell(v)
			if !ok {
				return nil, false
			}
			out = append(out, c)
		}
		return out, true
	}
	return nil, false
}

// Freeze moves a live instance into FrozenPendingThaw.
func (inst *Instance) Freeze() {
	inst.stateMu.Lock()
	defer inst.stateMu.Unlock()
	if inst.state != Live {
		panic("graph: Freeze on an instance that is " + inst.state.String())
	}
	inst.state = FrozenPendingThaw
}

// Thaw returns a frozen instance to Live.
func (inst *Instance) Thaw() {
	inst.stateMu.Lock()
	defer inst.stateMu.Unlock()
	if inst.state != FrozenPendingThaw {
		panic("graph: Thaw on an instance that is " + inst.state.String())
	}
	inst.state = Live
}

// Release destructs node instances, clears components and detaches the
// instance from its graph. Calling it again is a no-op.
func (inst *Instance) Release() {
	inst.mu.Lock()
	if inst.released {
		inst.mu.Unlock()
		return
	}
	inst.released = true
	inst.mu.Unlock()

	if !inst.entry.IsValid() {
		return
	}
	for i := len(inst.nodes) - 1; i >= 0; i-- {
		n := inst.nodes[i]
		for _, t := range n.Desc.Template.Implementers(trait.CapLifecycle) {
			impl := n.Desc.Template.Traits[t].Descriptor.Impl.(trait.Lifecycle)
			impl.Destruct(inst.bindingFor(n, int(t)))
		}
	}
	inst.nodes = nil
	inst.nodeIndex = nil

	inst.compMu.Lock()
	inst.components = nil
	inst.compMu.Unlock()

	inst.graph.untrack(inst)
	inst.host = nil
	inst.parent = nil
	inst.logger.Debug("Graph instance released.")
}

func (inst *Instance) isReleased() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.released
}
