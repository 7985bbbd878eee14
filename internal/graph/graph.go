package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/specialistvlad/traitgraph/internal/graphio"
	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/specialistvlad/traitgraph/internal/latent"
	"github.com/specialistvlad/traitgraph/internal/nodetemplate"
	"github.com/specialistvlad/traitgraph/internal/trait"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Graph is a loaded compiled graph. It is immutable after Load and safe to
// share between goroutines.
type Graph struct {
	ID   uuid.UUID
	Name string

	templates *nodetemplate.Registry
	shared    []byte
	nodes     []graphio.NodeDescription
	index     map[handle.Node]int
	objects   []any

	entries      map[string]handle.EntryPoint
	entryNames   []string
	defaultEntry string

	variables  []Variable
	varIndex   map[string]int
	interfaces []DataInterface
	programs   latent.Table

	warnings []error
	retained []trait.UID

	mu     sync.Mutex
	live   map[*Instance]struct{}
	closed bool
}

type loadOptions struct {
	reader []graphio.ReaderOption
}

// Option configures Load.
type Option func(*loadOptions)

// WithObjectResolver resolves the graph's object side-table.
func WithObjectResolver(res graphio.ObjectResolver) Option {
	return func(o *loadOptions) { o.reader = append(o.reader, graphio.WithObjectResolver(res)) }
}

// WithMaxSharedDataSize lowers the shared-data limit applied while reading.
func WithMaxSharedDataSize(n uint32) Option {
	return func(o *loadOptions) { o.reader = append(o.reader, graphio.WithReaderMaxSharedDataSize(n)) }
}

// Load reads an archive into a Graph. A graph too large for the encoding is
// not an error: it loads as an empty graph, logs a warning and records the
// condition in Warnings. Corrupt streams and invalid tables are errors.
func Load(ctx context.Context, templates *nodetemplate.Registry, a *graphio.Archive, opts ...Option) (*Graph, error) {
	logger := ctxlog.FromContext(ctx).With("graph", a.Name)
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	g := &Graph{
		ID:        uuid.New(),
		Name:      a.Name,
		templates: templates,
		index:     make(map[handle.Node]int),
		entries:   make(map[string]handle.EntryPoint),
		varIndex:  make(map[string]int),
		live:      make(map[*Instance]struct{}),
	}

	if err := g.loadVariables(a); err != nil {
		return nil, err
	}
	programs, err := latent.CompileTable(a.Programs)
	if err != nil {
		return nil, fmt.Errorf("graph '%s': %w", a.Name, err)
	}
	if err := programs.Validate(func(name string) bool { _, ok := g.varIndex[name]; return ok }); err != nil {
		return nil, fmt.Errorf("graph '%s': %w", a.Name, err)
	}
	g.programs = programs

	r := graphio.NewReader(templates, o.reader...)
	if err := r.ReadBytes(ctx, a.Stream); err != nil {
		if !graphio.IsCapacityError(err) {
			return nil, fmt.Errorf("graph '%s': %w", a.Name, err)
		}
		logger.Warn("Graph exceeds the encodable size and is loaded empty.", "error", err)
		g.warnings = append(g.warnings, err)
	}

	g.shared = r.SharedData()
	g.nodes = r.Nodes()
	g.objects = r.Objects()
	for i, d := range g.nodes {
		g.index[d.Handle] = i
	}

	for _, e := range a.EntryPoints {
		ep := r.ResolveEntryPointHandle(e.Name, e.Node)
		if !ep.IsValid() && len(g.warnings) == 0 {
			return nil, fmt.Errorf("graph '%s': entry point '%s' references missing node %d", a.Name, e.Name, e.Node)
		}
		g.entries[e.Name] = ep
		g.entryNames = append(g.entryNames, e.Name)
	}
	g.defaultEntry = a.DefaultEntry
	if g.defaultEntry == "" && len(g.entryNames) > 0 {
		g.defaultEntry = g.entryNames[0]
	}

	seen := make(map[trait.UID]struct{})
	for _, d := range g.nodes {
		for _, uid := range d.Template.UIDs() {
			if _, ok := seen[uid]; !ok {
				seen[uid] = struct{}{}
				g.retained = append(g.retained, uid)
			}
		}
	}
	templates.Traits().Retain(g.retained...)

	logger.Debug("Graph loaded.", "nodes", len(g.nodes), "shared_bytes", len(g.shared),
		"variables", len(g.variables), "programs", len(g.programs), "entry_points", len(g.entryNames))
	return g, nil
}

func (g *Graph) loadVariables(a *graphio.Archive) error {
	for _, v := range a.Variables {
		t, err := ctyjson.UnmarshalType(v.Type)
		if err != nil {
			return fmt.Errorf("graph '%s': variable '%s' type: %w", a.Name, v.Name, err)
		}
		def := cty.NullVal(t)
		if len(v.Default) > 0 {
			if def, err = ctyjson.Unmarshal(v.Default, t); err != nil {
				return fmt.Errorf("graph '%s': variable '%s' default: %w", a.Name, v.Name, err)
			}
		}
		if _, dup := g.varIndex[v.Name]; dup {
			return fmt.Errorf("graph '%s': duplicate variable '%s'", a.Name, v.Name)
		}
		g.varIndex[v.Name] = len(g.variables)
		g.variables = append(g.variables, Variable{Name: v.Name, Type: t, Default: def, Interface: v.Interface})
	}

	for _, iface := range a.Interfaces {
		for _, name := range iface.Variables {
			idx, ok := g.varIndex[name]
			if !ok {
				return fmt.Errorf("graph '%s': interface '%s' lists unknown variable '%s'", a.Name, iface.Name, name)
			}
			if g.variables[idx].Interface != iface.Name {
				return fmt.Errorf("graph '%s': variable '%s' is not declared in interface '%s'", a.Name, name, iface.Name)
			}
		}
		g.interfaces = append(g.interfaces, DataInterface{Name: iface.Name, Variables: iface.Variables})
	}

	// Interfaces without an explicit table take declaration order.
	listed := make(map[string]int, len(g.interfaces))
	for i, iface := range g.interfaces {
		listed[iface.Name] = i
	}
	for _, v := range g.variables {
		if !v.IsPublic() {
			continue
		}
		i, ok := listed[v.Interface]
		if !ok {
			listed[v.Interface] = len(g.interfaces)
			g.interfaces = append(g.interfaces, DataInterface{Name: v.Interface, Variables: []string{v.Name}})
			continue
		}
		if !contains(g.interfaces[i].Variables, v.Name) {
			return fmt.Errorf("graph '%s': interface '%s' does not list variable '%s'", a.Name, v.Interface, v.Name)
		}
	}
	return nil
}

// Close drops the graph's references on the trait catalog. Instances still
// alive keep working; no new instances should be allocated.
func (g *Graph) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.templates.Traits().Release(g.retained...)
}

// IsEmpty reports whether the graph has no nodes.
func (g *Graph) IsEmpty() bool { return len(g.nodes) == 0 }

// Warnings returns the recoverable problems met while loading.
func (g *Graph) Warnings() []error { return g.warnings }

// Err joins Warnings into one error, or returns nil.
func (g *Graph) Err() error { return errors.Join(g.warnings...) }

// SharedData returns the immutable shared-data buffer.
func (g *Graph) SharedData() []byte { return g.shared }

// Templates returns the template registry the graph was read with.
func (g *Graph) Templates() *nodetemplate.Registry { return g.templates }

// Nodes returns every node description in layout order.
func (g *Graph) Nodes() []graphio.NodeDescription { return g.nodes }

// Node returns the description of the node at h.
func (g *Graph) Node(h handle.Node) (graphio.NodeDescription, bool) {
	i, ok := g.index[h]
	if !ok {
		return graphio.NodeDescription{}, false
	}
	return g.nodes[i], true
}

// Object resolves an index into the object side-table.
func (g *Graph) Object(i uint32) any {
	if int(i) >= len(g.objects) {
		return nil
	}
	return g.objects[i]
}

// EntryPoint resolves a named entry point; the empty name selects the
// default. Unknown names return an invalid entry point.
func (g *Graph) EntryPoint(name string) handle.EntryPoint {
	if name == "" {
		name = g.defaultEntry
	}
	ep, ok := g.entries[name]
	if !ok {
		return handle.EntryPoint{Name: name, Root: handle.InvalidNode}
	}
	return ep
}

// EntryPoints returns entry point names in declaration order.
func (g *Graph) EntryPoints() []string { return g.entryNames }

// DefaultEntryPoint returns the name of the default entry point.
func (g *Graph) DefaultEntryPoint() string { return g.defaultEntry }

// Variables returns the declared variables.
func (g *Graph) Variables() []Variable { return g.variables }

// Variable looks a variable up by name.
func (g *Graph) Variable(name string) (Variable, bool) {
	i, ok := g.varIndex[name]
	if !ok {
		return Variable{}, false
	}
	return g.variables[i], true
}

// Interfaces returns the data interfaces the graph implements.
func (g *Graph) Interfaces() []DataInterface { return g.interfaces }

// HasPublicVariables reports whether any variable belongs to an interface.
func (g *Graph) HasPublicVariables() bool {
	for _, v := range g.variables {
		if v.IsPublic() {
			return true
		}
	}
	return false
}

// Programs returns the latent program table.
func (g *Graph) Programs() latent.Table { return g.programs }

// LiveInstances returns the number of allocated, unreleased instances.
func (g *Graph) LiveInstances() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.live)
}

// Instances returns the live instances ordered by id.
func (g *Graph) Instances() []*Instance {
	g.mu.Lock()
	out := make([]*Instance, 0, len(g.live))
	for inst := range g.live {
		out = append(out, inst)
	}
	g.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id.String() < out[j].id.String() })
	return out
}

func (g *Graph) track(inst *Instance) {
	g.mu.Lock()
	g.live[inst] = struct{}{}
	g.mu.Unlock()
}

func (g *Graph) untrack(inst *Instance) {
	g.mu.Lock()
	delete(g.live, inst)
	g.mu.Unlock()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
