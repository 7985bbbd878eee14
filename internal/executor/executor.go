package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"github.com/specialistvlad/traitgraph/internal/dag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrDuplicateUnit is returned when a unit ID is registered twice.
var ErrDuplicateUnit = errors.New("unit already registered")

// ErrUnknownPrerequisite is returned when a unit depends on an unregistered ID.
var ErrUnknownPrerequisite = errors.New("unknown prerequisite")

// Observer receives frame timings. Implementations must be safe for
// concurrent use.
type Observer interface {
	UnitCompleted(id string, state State, elapsed time.Duration)
	FrameCompleted(units int, elapsed time.Duration, err error)
}

// Executor dispatches registered units once per frame.
type Executor struct {
	numWorkers int
	tracer     trace.Tracer
	observer   Observer

	mu    sync.Mutex
	units map[string]Unit
	order []string
	dirty bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.numWorkers = n
		}
	}
}

// WithTracer sets the tracer used for frame and unit spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithObserver installs a timing observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// New creates an executor. The pool defaults to GOMAXPROCS workers and the
// global OpenTelemetry tracer.
func New(opts ...Option) *Executor {
	e := &Executor{
		numWorkers: runtime.GOMAXPROCS(0),
		tracer:     otel.Tracer("github.com/specialistvlad/traitgraph/internal/executor"),
		units:      make(map[string]Unit),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a unit.
func (e *Executor) Register(u Unit) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.units[u.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateUnit, u.ID())
	}
	e.units[u.ID()] = u
	e.dirty = true
	return nil
}

// Unregister removes a unit. Unknown IDs are ignored.
func (e *Executor) Unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.units[id]; ok {
		delete(e.units, id)
		e.dirty = true
	}
}

// Len returns the number of registered units.
func (e *Executor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.units)
}

// Plan returns the registered unit IDs in a valid execution order. The order
// is cached until the unit set changes.
func (e *Executor) Plan() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.planLocked()
}

func (e *Executor) planLocked() ([]string, error) {
	if !e.dirty && e.order != nil {
		return e.order, nil
	}
	g := dag.New()
	ids := make([]string, 0, len(e.units))
	for id := range e.units {
		g.AddNode(id)
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, pre := range e.units[id].Prerequisites() {
			if _, ok := e.units[pre]; !ok {
				return nil, fmt.Errorf("%w: unit '%s' depends on '%s'", ErrUnknownPrerequisite, id, pre)
			}
			if err := g.AddEdge(pre, id); err != nil {
				return nil, err
			}
		}
	}
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	e.order = order
	e.dirty = false
	return order, nil
}

// RunFrame runs every registered unit once, respecting prerequisites, and
// returns an error if any unit failed.
func (e *Executor) RunFrame(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	e.mu.Lock()
	order, err := e.planLocked()
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("planning frame: %w", err)
	}
	nodes := make(map[string]*node, len(order))
	list := make([]*node, 0, len(order))
	for _, id := range order {
		n := &node{unit: e.units[id]}
		nodes[id] = n
		list = append(list, n)
	}
	e.mu.Unlock()

	for _, n := range list {
		for _, pre := range n.unit.Prerequisites() {
			p := nodes[pre]
			p.dependents = append(p.dependents, n)
			n.depCount.Add(1)
		}
	}
	if len(list) == 0 {
		return nil
	}

	ctx, span := e.tracer.Start(ctx, "frame", trace.WithAttributes(attribute.Int("units", len(list))))
	defer span.End()

	var wg sync.WaitGroup
	readyChan := make(chan *node, len(list))
	for _, n := range list {
		if n.depCount.Load() == 0 {
			readyChan <- n
		}
	}
	wg.Add(len(list))

	workers := min(e.numWorkers, len(list))
	for i := 0; i < workers; i++ {
		go e.worker(ctx, readyChan, &wg, i)
	}
	wg.Wait()
	close(readyChan)

	var failedUnits []string
	var rootCauseError error
	for _, n := range list {
		if n.getState() != Failed || n.skipped {
			continue
		}
		logger.Error("Tick unit failed.", "unit", n.id(), "error", n.err)
		failedUnits = append(failedUnits, n.id())
		if rootCauseError == nil {
			rootCauseError = n.err
		}
	}
	if rootCauseError != nil {
		err = fmt.Errorf("frame failed for %s: %w", strings.Join(failedUnits, ", "), rootCauseError)
		span.RecordError(err)
	}
	if e.observer != nil {
		e.observer.FrameCompleted(len(list), time.Since(start), err)
	}
	return err
}
