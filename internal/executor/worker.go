package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// worker is the processing loop of one pool goroutine.
func (e *Executor) worker(ctx context.Context, readyChan chan *node, wg *sync.WaitGroup, workerID int) {
	logger := ctxlog.FromContext(ctx)

	for n := range readyChan {
		workerLogger := logger.With("workerID", workerID, "unit", n.id())

		if !n.unit.Enabled() {
			n.setState(Disabled)
			e.observe(n, 0)
			e.unlockDependents(n, readyChan)
			wg.Done()
			continue
		}

		if ctx.Err() != nil {
			n.setState(Failed)
			n.err = ctx.Err()
			e.skipDependents(ctx, n, wg)
			wg.Done()
			continue
		}

		n.setState(Running)
		start := time.Now()
		unitCtx, span := e.tracer.Start(ctx, "tick_unit", trace.WithAttributes(attribute.String("unit", n.id())))
		err := n.unit.Run(unitCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if err != nil {
			workerLogger.Debug("Tick unit returned an error.", "error", err)
			n.setState(Failed)
			n.err = err
			e.observe(n, time.Since(start))
			e.skipDependents(ctx, n, wg)
			wg.Done()
			continue
		}

		n.setState(Done)
		e.observe(n, time.Since(start))
		e.unlockDependents(n, readyChan)
		wg.Done()
	}
}

func (e *Executor) unlockDependents(n *node, readyChan chan *node) {
	for _, dependent := range n.dependents {
		if dependent.depCount.Add(-1) == 0 {
			readyChan <- dependent
		}
	}
}

// skipDependents marks everything downstream of a failed unit as failed and
// releases it from the wait group.
func (e *Executor) skipDependents(ctx context.Context, n *node, wg *sync.WaitGroup) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.dependents {
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping tick unit due to upstream failure.", "unit", dependent.id(), "dependency", n.id())
			dependent.setState(Failed)
			dependent.skipped = true
			dependent.err = fmt.Errorf("skipped due to upstream failure of '%s'", n.id())
			e.observe(dependent, 0)
			wg.Done()
			e.skipDependents(ctx, dependent, wg)
		})
	}
}

func (e *Executor) observe(n *node, elapsed time.Duration) {
	if e.observer != nil {
		e.observer.UnitCompleted(n.id(), n.getState(), elapsed)
	}
}
