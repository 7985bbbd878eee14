package app

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/traitgraph/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Run drives the frame loop until the configured frame count is reached or
// ctx is cancelled, serving diagnostics alongside when a port is set. A
// failed frame stops the run.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if a.config.MetricsPort > 0 {
		srv := a.diagnosticsServer(fmt.Sprintf(":%d", a.config.MetricsPort))
		g.Go(func() error { return a.serveDiagnostics(srv) })
		g.Go(func() error {
			<-gctx.Done()
			return a.closeDiagnostics()
		})
	} else {
		a.logger.Debug("Diagnostics server not started: disabled")
	}

	g.Go(func() error {
		defer cancel()
		return a.loop(gctx)
	})

	err := g.Wait()
	a.logger.Debug("App.Run method finished.", "frames", a.manager.Frame())
	return err
}

func (a *App) loop(ctx context.Context) error {
	var pace <-chan time.Time
	if a.config.FrameInterval > 0 {
		ticker := time.NewTicker(a.config.FrameInterval)
		defer ticker.Stop()
		pace = ticker.C
	}

	a.logger.Info("🚀 Starting frame loop...", "frames", a.config.Frames, "delta_time", a.config.DeltaTime)
	for n := 0; a.config.Frames == 0 || n < a.config.Frames; n++ {
		if ctx.Err() != nil {
			a.logger.Info("Frame loop cancelled.", "frames", a.manager.Frame())
			return nil
		}
		if err := a.manager.Tick(ctx, a.config.DeltaTime); err != nil {
			return fmt.Errorf("frame %d failed: %w", a.manager.Frame(), err)
		}
		if pace != nil {
			select {
			case <-ctx.Done():
			case <-pace:
			}
		}
	}
	a.logger.Info("🏁 Frame loop finished.", "frames", a.manager.Frame(), "instances", a.manager.Len())
	return nil
}
