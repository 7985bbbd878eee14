package graph

import (
	"context"
	"log/slog"

	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/specialistvlad/traitgraph/internal/trait"
	"github.com/zclconf/go-cty/cty"
)

// execContext is the trait.ExecutionContext of one traversal.
type execContext struct {
	ctx     context.Context
	inst    *Instance
	dt      float64
	pass    trait.Capability
	visited map[handle.Node]struct{}
}

func (ec *execContext) Context() context.Context { return ec.ctx }
func (ec *execContext) Logger() *slog.Logger     { return ec.inst.logger }
func (ec *execContext) DeltaTime() float64       { return ec.dt }

func (ec *execContext) Visit(child handle.Node) { ec.inst.visit(ec, child) }

func (ec *execContext) Variable(name string) (cty.Value, bool) { return ec.inst.Variable(name) }

func (ec *execContext) Object(index uint32) any { return ec.inst.graph.Object(index) }

// Update runs one frame over the instance: latent properties are refreshed,
// then the update pass and the evaluate pass walk the tree from the root.
// Traits implementing Hierarchy decide which children are walked; a node is
// visited at most once per pass.
func (inst *Instance) Update(ctx context.Context, dt float64) error {
	if !inst.entry.IsValid() || inst.isReleased() {
		return ErrReleased
	}
	if inst.State() == FrozenPendingThaw {
		return ErrFrozen
	}
	inst.RefreshLatent()
	for _, pass := range []trait.Capability{trait.CapUpdate, trait.CapEvaluate} {
		ec := &execContext{ctx: ctx, inst: inst, dt: dt, pass: pass, visited: make(map[handle.Node]struct{})}
		inst.visit(ec, inst.entry.Root)
	}
	return nil
}

func (inst *Instance) visit(ec *execContext, h handle.Node) {
	if _, done := ec.visited[h]; done {
		return
	}
	n, ok := inst.NodeInstance(h)
	if !ok {
		return
	}
	ec.visited[h] = struct{}{}
	tpl := n.Desc.Template

	for _, t := range tpl.Implementers(ec.pass) {
		b := inst.bindingFor(n, int(t))
		impl := tpl.Traits[t].Descriptor.Impl
		switch ec.pass {
		case trait.CapUpdate:
			impl.(trait.Updater).Update(ec, b)
		case trait.CapEvaluate:
			impl.(trait.Evaluator).Evaluate(ec, b)
		}
	}

	for _, t := range tpl.Implementers(trait.CapHierarchy) {
		impl := tpl.Traits[t].Descriptor.Impl.(trait.Hierarchy)
		for _, child := range impl.Children(inst.bindingFor(n, int(t))) {
			inst.visit(ec, child)
		}
	}
}

// DispatchEvent offers ev to event-handling traits, node by node in
// allocation order and topmost trait first, until one consumes it.
func (inst *Instance) DispatchEvent(ctx context.Context, ev trait.Event) bool {
	if inst.isReleased() || inst.State() == FrozenPendingThaw {
		return false
	}
	ec := &execContext{ctx: ctx, inst: inst, pass: trait.CapEvents, visited: make(map[handle.Node]struct{})}
	for _, n := range inst.nodes {
		tpl := n.Desc.Template
		for _, t := range tpl.Implementers(trait.CapEvents) {
			impl := tpl.Traits[t].Descriptor.Impl.(trait.EventHandler)
			if impl.OnEvent(ec, inst.bindingFor(n, int(t)), ev) {
				return true
			}
		}
	}
	return false
}
