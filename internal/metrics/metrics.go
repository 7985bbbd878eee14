// Package metrics exposes runtime measurements as Prometheus collectors.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/specialistvlad/traitgraph/internal/executor"
	"github.com/specialistvlad/traitgraph/internal/nodetemplate"
)

const namespace = "traitgraph"

// Collector records frame, module and store activity. It implements
// executor.Observer and module.Observer.
type Collector struct {
	registry *prometheus.Registry

	frames        *prometheus.CounterVec
	frameDuration prometheus.Histogram
	unitDuration  *prometheus.HistogramVec
	unitStates    *prometheus.CounterVec
	instances     prometheus.Gauge
	tasksDropped  *prometheus.CounterVec
	inputEvents   prometheus.Counter
	storeOps      *prometheus.CounterVec
	graphsLoaded  prometheus.Counter
	graphWarnings prometheus.Counter
}

// New creates a collector registered on a private registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames run, by outcome.",
		}, []string{"outcome"}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Wall time of one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		unitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_unit_duration_seconds",
			Help:      "Wall time of one tick unit, by event.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 14),
		}, []string{"event"}),
		unitStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_units_total",
			Help:      "Tick unit completions, by event and final state.",
		}, []string{"event", "state"}),
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_instances",
			Help:      "Live module instances.",
		}),
		tasksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_dropped_total",
			Help:      "Queued tasks dropped for a stale handle or unknown event.",
		}, []string{"event"}),
		inputEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_events_total",
			Help:      "Input events queued on module instances.",
		}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_store_operations_total",
			Help:      "Graph store operations, by backend, operation and outcome.",
		}, []string{"backend", "op", "outcome"}),
		graphsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphs_loaded_total",
			Help:      "Graphs loaded.",
		}),
		graphWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_load_warnings_total",
			Help:      "Recoverable problems met while loading graphs.",
		}),
	}
	c.registry.MustRegister(
		c.frames, c.frameDuration, c.unitDuration, c.unitStates, c.instances,
		c.tasksDropped, c.inputEvents, c.storeOps, c.graphsLoaded, c.graphWarnings,
	)
	return c
}

// Registry returns the registry to serve with promhttp.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// WatchTemplates exports the sizes of the trait and template catalogs.
func (c *Collector) WatchTemplates(templates *nodetemplate.Registry) {
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "traits_registered",
			Help:      "Traits in the trait catalog.",
		}, func() float64 { return float64(templates.Traits().Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_templates_registered",
			Help:      "Node templates in the template registry.",
		}, func() float64 { return float64(templates.Len()) }),
	)
}

// eventOf strips the instance prefix from a unit ID.
func eventOf(id string) string {
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// UnitCompleted implements executor.Observer.
func (c *Collector) UnitCompleted(id string, state executor.State, elapsed time.Duration) {
	ev := eventOf(id)
	c.unitStates.WithLabelValues(ev, state.String()).Inc()
	if state == executor.Done {
		c.unitDuration.WithLabelValues(ev).Observe(elapsed.Seconds())
	}
}

// FrameCompleted implements executor.Observer.
func (c *Collector) FrameCompleted(_ int, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.frames.WithLabelValues(outcome).Inc()
	c.frameDuration.Observe(elapsed.Seconds())
}

// InstancesChanged implements module.Observer.
func (c *Collector) InstancesChanged(n int) { c.instances.Set(float64(n)) }

// TaskDropped implements module.Observer.
func (c *Collector) TaskDropped(event string) {
	if event == "" {
		event = "default"
	}
	c.tasksDropped.WithLabelValues(event).Inc()
}

// InputEventsQueued implements module.Observer.
func (c *Collector) InputEventsQueued(n int) { c.inputEvents.Add(float64(n)) }

// StoreOperation records one graph store call.
func (c *Collector) StoreOperation(backend, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.storeOps.WithLabelValues(backend, op, outcome).Inc()
}

// GraphLoaded records a loaded graph and its warnings.
func (c *Collector) GraphLoaded(warnings int) {
	c.graphsLoaded.Inc()
	c.graphWarnings.Add(float64(warnings))
}
