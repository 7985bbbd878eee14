package builder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/traitgraph/internal/config"
	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/specialistvlad/traitgraph/internal/graphio"
	"github.com/specialistvlad/traitgraph/internal/module"
	"github.com/specialistvlad/traitgraph/internal/nodetemplate"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ErrUnknownTrait is returned when a node names a trait the catalog lacks.
var ErrUnknownTrait = errors.New("unknown trait")

// ErrUnknownEvent is returned when a module lists an event the scheduler's
// catalog lacks.
var ErrUnknownEvent = errors.New("unknown event")

// Builder compiles config graphs and modules against one template registry.
type Builder struct {
	templates *nodetemplate.Registry
	writer    []graphio.WriterOption
	handlers  map[string]module.Handler
	now       func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithWriterOptions passes options to every graphio.Writer the builder runs.
func WithWriterOptions(opts ...graphio.WriterOption) Option {
	return func(b *Builder) { b.writer = append(b.writer, opts...) }
}

// WithHandler sets the handler compiled modules use for event. A nil
// handler still makes the event tick, doing nothing but draining tasks.
func WithHandler(event string, h module.Handler) Option {
	return func(b *Builder) { b.handlers[event] = h }
}

// DefaultHandlers maps the built-in events to the handlers modules get
// unless overridden with WithHandler.
func DefaultHandlers() map[string]module.Handler {
	return map[string]module.Handler{
		module.EventPrologue:    module.DispatchInputEvents,
		module.EventInitialize:  nil,
		module.EventPrePhysics:  module.UpdateGraph,
		module.EventPostPhysics: nil,
	}
}

// New creates a builder resolving traits through templates.
func New(templates *nodetemplate.Registry, opts ...Option) *Builder {
	b := &Builder{
		templates: templates,
		handlers:  DefaultHandlers(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Graph compiles one graph description into an archive.
func (b *Builder) Graph(ctx context.Context, g *config.Graph) (*graphio.Archive, error) {
	logger := ctxlog.FromContext(ctx).With("graph", g.Name)
	logger.Debug("Compiling graph.", "nodes", len(g.Nodes))

	c := &compilation{
		graph:    g,
		catalog:  b.templates.Traits(),
		programs: make(map[string]int),
	}

	// First pass: resolve trait stacks and translate values.
	specs := make([]graphio.NodeSpec, len(g.Nodes))
	for i, n := range g.Nodes {
		spec, err := c.node(n)
		if err != nil {
			return nil, fmt.Errorf("graph '%s': node '%s': %w", g.Name, n.Name, err)
		}
		specs[i] = spec
	}
	logger.Debug("Graph nodes resolved.", "programs", len(c.sources))

	// Second pass: lay the nodes out and serialize them.
	w, err := graphio.WriteGraph(b.templates, specs, b.writer...)
	if err != nil {
		return nil, fmt.Errorf("graph '%s': %w", g.Name, err)
	}

	a := &graphio.Archive{
		Name:         g.Name,
		Stream:       w.Stream(),
		DefaultEntry: g.DefaultEntry,
		Programs:     c.sources,
		Created:      b.now().UTC(),
	}
	for _, e := range g.EntryPoints {
		a.EntryPoints = append(a.EntryPoints, graphio.EntryPointEntry{Name: e.Name, Node: g.NodeIndex(e.Node)})
	}
	for _, v := range g.Variables {
		entry, err := variableEntry(v)
		if err != nil {
			return nil, fmt.Errorf("graph '%s': %w", g.Name, err)
		}
		a.Variables = append(a.Variables, entry)
	}
	for _, iface := range g.Interfaces {
		a.Interfaces = append(a.Interfaces, graphio.InterfaceEntry{Name: iface.Name, Variables: iface.Variables})
	}

	logger.Info("Graph compiled.", "nodes", len(specs), "shared_bytes", len(w.SharedData()),
		"objects", len(w.Objects()), "variables", len(a.Variables))
	return a, nil
}

// Graphs compiles every graph of the model, in declaration order.
func (b *Builder) Graphs(ctx context.Context, m *config.Model) ([]*graphio.Archive, error) {
	out := make([]*graphio.Archive, 0, len(m.Graphs))
	for _, g := range m.Graphs {
		a, err := b.Graph(ctx, g)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func variableEntry(v *config.Variable) (graphio.VariableEntry, error) {
	typ, err := ctyjson.MarshalType(v.Type)
	if err != nil {
		return graphio.VariableEntry{}, fmt.Errorf("variable '%s' type: %w", v.Name, err)
	}
	entry := graphio.VariableEntry{Name: v.Name, Type: typ, Interface: v.Interface}
	if !v.Default.IsNull() {
		if entry.Default, err = ctyjson.Marshal(v.Default, v.Type); err != nil {
			return graphio.VariableEntry{}, fmt.Errorf("variable '%s' default: %w", v.Name, err)
		}
	}
	return entry, nil
}
