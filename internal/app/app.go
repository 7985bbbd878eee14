package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/specialistvlad/traitgraph/internal/builder"
	"github.com/specialistvlad/traitgraph/internal/config"
	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/specialistvlad/traitgraph/internal/executor"
	"github.com/specialistvlad/traitgraph/internal/graph"
	"github.com/specialistvlad/traitgraph/internal/graphstore"
	"github.com/specialistvlad/traitgraph/internal/metrics"
	"github.com/specialistvlad/traitgraph/internal/module"
	"github.com/specialistvlad/traitgraph/internal/nodetemplate"
	"github.com/specialistvlad/traitgraph/internal/trait"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	ctx       context.Context
	config    *Config
	converter config.Converter

	traits    *trait.Registry
	templates *nodetemplate.Registry
	metrics   *metrics.Collector
	store     graphstore.Store
	exec      *executor.Executor
	manager   *module.Manager
	builder   *builder.Builder

	mu      sync.RWMutex
	model   *config.Model
	graphs  []*graph.Graph
	handles map[string][]module.Handle

	httpServer *http.Server
	closeOnce  sync.Once
}

// NewApp is the constructor for the main application. It returns a fully
// wired App with its own logger, registries and store. Invalid settings are
// a programming error at this point and panic; the CLI validates first.
func NewApp(outW io.Writer, cfg *Config, converter config.Converter) *App {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:      outW,
		logger:    logger,
		ctx:       ctx,
		config:    cfg,
		converter: converter,
		metrics:   metrics.New(),
		handles:   make(map[string][]module.Handle),
	}
	a.initRegistries()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		panic(fmt.Errorf("failed to open graph store: %w", err))
	}
	a.store = graphstore.Instrument(store, cfg.Store.Backend, a.metrics)
	logger.Debug("Graph store opened.", "backend", cfg.Store.Backend)

	a.exec = executor.New(executor.WithWorkers(cfg.Workers), executor.WithObserver(a.metrics))
	a.manager = module.NewManager(ctx, a.exec, module.WithManagerObserver(a.metrics))
	a.builder = builder.New(a.templates)
	return a
}

// initRegistries creates the trait catalog and the node template registry
// and registers every trait compiled into the binary.
func (a *App) initRegistries() {
	var traitOpts []trait.Option
	if n := a.config.Arena.TraitBytes; n > 0 {
		traitOpts = append(traitOpts, trait.WithArenaBytes(n))
	}
	a.traits = trait.NewRegistry(traitOpts...)
	trait.RegisterStatics(a.traits)

	var tplOpts []nodetemplate.Option
	if n := a.config.Arena.TemplateCapacity; n > 0 {
		tplOpts = append(tplOpts, nodetemplate.WithArenaCapacity(n))
	}
	a.templates = nodetemplate.NewRegistry(a.traits, tplOpts...)
	a.metrics.WatchTemplates(a.templates)

	a.logger.Debug("Registries initialized.", "traits", a.traits.Len(), "arena_capacity", a.traits.ArenaCapacity())
}

// Context returns the application context carrying its logger.
func (a *App) Context() context.Context { return a.ctx }

// Templates returns the node template registry.
func (a *App) Templates() *nodetemplate.Registry { return a.templates }

// Traits returns the trait catalog.
func (a *App) Traits() *trait.Registry { return a.traits }

// Metrics returns the metrics collector.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Store returns the graph store.
func (a *App) Store() graphstore.Store { return a.store }

// Manager returns the module manager.
func (a *App) Manager() *module.Manager { return a.manager }

// Graphs returns the loaded graphs in declaration order.
func (a *App) Graphs() []*graph.Graph {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*graph.Graph(nil), a.graphs...)
}

// Graph returns a loaded graph by name.
func (a *App) Graph(name string) (*graph.Graph, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.graphLocked(name)
}

// Modules returns the names of the modules with registered instances.
func (a *App) Modules() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.handles))
	for name := range a.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handles returns the handles registered for a module description.
func (a *App) Handles(name string) []module.Handle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]module.Handle(nil), a.handles[name]...)
}

// Close releases every module instance and graph, then the store. It is
// safe to call more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.manager.Shutdown(a.ctx)

		a.mu.Lock()
		for _, g := range a.graphs {
			g.Close()
		}
		a.graphs = nil
		a.mu.Unlock()

		if cerr := a.store.Close(); cerr != nil {
			err = fmt.Errorf("closing graph store: %w", cerr)
		}
		a.logger.Debug("Registries released.", "traits", a.traits.Len(), "templates", a.templates.Len())
	})
	return err
}
