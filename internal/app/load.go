package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/traitgraph/internal/builder"
	"github.com/specialistvlad/traitgraph/internal/config"
	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/specialistvlad/traitgraph/internal/graph"
	"github.com/specialistvlad/traitgraph/internal/graphio"
	"github.com/specialistvlad/traitgraph/internal/module"
	"github.com/zclconf/go-cty/cty/convert"
)

// Compile loads the configured descriptions and compiles every graph
// without storing anything.
func (a *App) Compile(loader config.Loader) (*config.Model, []*graphio.Archive, error) {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Loading descriptions...", "paths", a.config.Paths)

	model, err := loader.Load(a.ctx, a.config.Paths...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load descriptions: %w", err)
	}
	logger.Debug("Descriptions loaded.", "graphs", len(model.Graphs), "modules", len(model.Modules))

	archives, err := a.builder.Graphs(a.ctx, model)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compile graphs: %w", err)
	}
	return model, archives, nil
}

// Load compiles the descriptions, puts every archive into the graph store,
// loads the graphs back from it and registers the module instances. The
// instances initialize on the first frame.
func (a *App) Load(loader config.Loader) error {
	model, archives, err := a.Compile(loader)
	if err != nil {
		return err
	}
	for _, ar := range archives {
		if err := a.store.Put(a.ctx, ar); err != nil {
			return fmt.Errorf("failed to store graph '%s': %w", ar.Name, err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ar := range archives {
		g, err := a.loadGraph(a.ctx, ar.Name)
		if err != nil {
			return err
		}
		a.graphs = append(a.graphs, g)
	}
	a.model = model

	for name := range a.config.Modules {
		if _, ok := model.Module(name); !ok {
			a.logger.Warn("Settings name a module no description declares.", "module", name)
		}
	}
	for _, m := range model.Modules {
		if err := a.registerModule(a.ctx, m); err != nil {
			return err
		}
	}
	a.logger.Info("Descriptions loaded.", "graphs", len(a.graphs), "modules", len(model.Modules))
	return nil
}

// loadGraph reads a graph back from the store.
func (a *App) loadGraph(ctx context.Context, name string) (*graph.Graph, error) {
	ar, err := a.store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph '%s' from the store: %w", name, err)
	}
	g, err := graph.Load(ctx, a.templates, ar)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph '%s': %w", name, err)
	}
	a.metrics.GraphLoaded(len(g.Warnings()))
	return g, nil
}

func (a *App) graphLocked(name string) (*graph.Graph, bool) {
	for _, g := range a.graphs {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// registerModule compiles a module description and registers its
// instances. Called with a.mu held.
func (a *App) registerModule(ctx context.Context, m *config.Module) error {
	settings := a.config.Modules[m.Name]
	if settings.Disabled {
		a.logger.Info("Module disabled by settings.", "module", m.Name)
		return nil
	}

	g, ok := a.graphLocked(m.Graph)
	if !ok {
		return fmt.Errorf("module '%s' runs unknown graph '%s'", m.Name, m.Graph)
	}
	p, err := a.builder.Program(ctx, m, g)
	if err != nil {
		return err
	}
	method, err := builder.ParseInitMethod(m.InitMethod)
	if err != nil {
		return fmt.Errorf("module '%s': %w", m.Name, err)
	}
	if err := a.applyOverrides(p, settings.Variables); err != nil {
		return err
	}

	count := max(settings.Instances, 1)
	for i := range count {
		inst := module.NewInstance(fmt.Sprintf("%s#%d", m.Name, i), p, method)
		h := a.manager.RegisterHandle(inst)
		a.handles[m.Name] = append(a.handles[m.Name], h)
	}
	a.logger.Debug("Module instances registered.", "module", m.Name, "instances", count, "init", method)
	return nil
}

// applyOverrides replaces host variable defaults with values from the
// settings file.
func (a *App) applyOverrides(p *module.Program, overrides map[string]any) error {
	for name, raw := range overrides {
		idx := -1
		for i, v := range p.Variables {
			if v.Name == name {
				idx = i
			}
		}
		if idx < 0 {
			return fmt.Errorf("module '%s' has no variable '%s'", p.Name, name)
		}
		v, err := a.converter.ToCtyValue(raw)
		if err != nil {
			return fmt.Errorf("module '%s' variable '%s': %w", p.Name, name, err)
		}
		hv := &p.Variables[idx]
		cv, err := convert.Convert(v, hv.Type)
		if err != nil {
			return fmt.Errorf("module '%s' variable '%s' is not a %s: %w", p.Name, name, hv.Type.FriendlyName(), err)
		}
		hv.Default = cv
	}
	return nil
}
