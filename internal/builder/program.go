package builder

import (
	"context"
	"fmt"
	"slices"

	"github.com/agext/levenshtein"
	"github.com/specialistvlad/traitgraph/internal/config"
	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/specialistvlad/traitgraph/internal/graph"
	"github.com/specialistvlad/traitgraph/internal/module"
)

// ParseInitMethod maps a module's `init` attribute to an InitMethod.
func ParseInitMethod(s string) (module.InitMethod, error) {
	switch s {
	case "", "run":
		return module.InitializeAndRun, nil
	case "pause":
		return module.InitializeAndPause, nil
	case "initialize_only":
		return module.InitializeOnly, nil
	}
	return 0, fmt.Errorf("unknown init method '%s'", s)
}

// Program compiles a module description running the loaded graph g.
func (b *Builder) Program(ctx context.Context, m *config.Module, g *graph.Graph) (*module.Program, error) {
	logger := ctxlog.FromContext(ctx).With("module", m.Name)

	if m.EntryPoint != "" && !slices.Contains(g.EntryPoints(), m.EntryPoint) {
		return nil, fmt.Errorf("module '%s': graph '%s' has no entry point '%s'", m.Name, g.Name, m.EntryPoint)
	}

	p := &module.Program{
		Name:       m.Name,
		Graph:      g,
		EntryPoint: m.EntryPoint,
		Handlers:   make(map[string]module.Handler, len(m.Events)),
	}
	for _, name := range m.Events {
		if _, ok := module.LookupEvent(name); !ok {
			return nil, fmt.Errorf("module '%s': %w", m.Name, unknownEvent(name))
		}
		if _, dup := p.Handlers[name]; dup {
			return nil, fmt.Errorf("module '%s': event '%s' listed twice", m.Name, name)
		}
		p.Handlers[name] = b.handlers[name]
	}
	for _, v := range m.Variables {
		p.Variables = append(p.Variables, module.HostVariable{
			Name:      v.Name,
			Type:      v.Type,
			Default:   v.Default,
			Interface: v.Interface,
		})
	}

	logger.Debug("Module compiled.", "graph", g.Name, "events", len(p.Handlers), "variables", len(p.Variables))
	return p, nil
}

func unknownEvent(name string) error {
	best, bestDist := "", len(name)/2+2
	for _, d := range module.Events() {
		if dist := levenshtein.Distance(name, d.Name, nil); dist < bestDist {
			best, bestDist = d.Name, dist
		}
	}
	if best != "" {
		return fmt.Errorf("%w '%s', did you mean '%s'?", ErrUnknownEvent, name, best)
	}
	return fmt.Errorf("%w '%s'", ErrUnknownEvent, name)
}
