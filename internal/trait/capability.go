package trait

import (
	"context"
	"log/slog"
	"strings"

	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/zclconf/go-cty/cty"
)

// Capability is a bit in the closed set of interfaces a trait can implement.
type Capability uint8

const (
	CapUpdate Capability = 1 << iota
	CapEvaluate
	CapHierarchy
	CapLifecycle
	CapEvents
)

// Capabilities lists every capability in dispatch-table order.
var Capabilities = []Capability{CapUpdate, CapEvaluate, CapHierarchy, CapLifecycle, CapEvents}

func (c Capability) String() string {
	var parts []string
	names := []string{"update", "evaluate", "hierarchy", "lifecycle", "events"}
	for i, cp := range Capabilities {
		if c&cp != 0 {
			parts = append(parts, names[i])
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Has reports whether every bit of other is set.
func (c Capability) Has(other Capability) bool { return c&other == other }

// Binding points a stateless trait at the memory of one node.
type Binding struct {
	Descriptor *Descriptor
	Node       handle.Node
	Trait      handle.Trait
	// Shared is this trait's slice of the shared-data buffer.
	Shared []byte
	// LatentTable is this trait's latent-handle table.
	LatentTable []byte
	// Instance is this trait's slice of the node instance data.
	Instance []byte
	// NodeInstance is the whole node instance data; latent values live here.
	NodeInstance []byte
}

// Value returns the current value of a property. Latent properties wired to a
// program read their last evaluated value; everything else reads shared data.
func (b Binding) Value(name string) (any, bool) {
	f, ok := b.Descriptor.Field(name)
	if !ok {
		return nil, false
	}
	if f.Latent {
		idx := b.Descriptor.latentIndex(name)
		if idx >= 0 && (idx+1)*LatentHandleSize <= len(b.LatentTable) {
			h := DecodeLatentHandle(b.LatentTable[idx*LatentHandleSize:])
			if h.HasProgram() && int(h.ValueOffset+f.Kind.Size()) <= len(b.NodeInstance) {
				return Decode(f.Kind, b.NodeInstance[h.ValueOffset:]), true
			}
		}
	}
	return Decode(f.Kind, b.Shared[f.Offset:]), true
}

// Event is an input event delivered to traits that handle events.
type Event interface {
	EventName() string
}

// ExecutionContext is what a trait sees while its node is being visited.
type ExecutionContext interface {
	Context() context.Context
	Logger() *slog.Logger
	DeltaTime() float64
	// Visit runs the same pass on a child node.
	Visit(child handle.Node)
	Variable(name string) (cty.Value, bool)
	// Object resolves an index into the graph's object side-table.
	Object(index uint32) any
}

// Updater advances a trait's instance state.
type Updater interface {
	Update(ctx ExecutionContext, b Binding)
}

// Evaluator produces the trait's output for the current frame.
type Evaluator interface {
	Evaluate(ctx ExecutionContext, b Binding)
}

// Hierarchy exposes the child nodes referenced by a trait.
type Hierarchy interface {
	Children(b Binding) []handle.Node
}

// Lifecycle initializes and tears down a trait's instance data.
type Lifecycle interface {
	Construct(b Binding)
	Destruct(b Binding)
}

// EventHandler reacts to input events. It returns true when the event was
// consumed.
type EventHandler interface {
	OnEvent(ctx ExecutionContext, b Binding, ev Event) bool
}

func capabilitiesOf(impl any) Capability {
	var c Capability
	if impl == nil {
		return c
	}
	if _, ok := impl.(Updater); ok {
		c |= CapUpdate
	}
	if _, ok := impl.(Evaluator); ok {
		c |= CapEvaluate
	}
	if _, ok := impl.(Hierarchy); ok {
		c |= CapHierarchy
	}
	if _, ok := impl.(Lifecycle); ok {
		c |= CapLifecycle
	}
	if _, ok := impl.(EventHandler); ok {
		c |= CapEvents
	}
	return c
}
