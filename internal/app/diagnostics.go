package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router returns the diagnostics HTTP handler.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", a.healthHandler)
	r.Handle("/metrics", promhttp.HandlerFor(a.metrics.Registry(), promhttp.HandlerOpts{}))
	r.Get("/templates", a.templatesHandler)
	r.Get("/graphs", a.graphsHandler)
	r.Get("/graphs/{name}", a.graphsHandler)
	return r
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (a *App) templatesHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := a.DumpTemplates(w); err != nil {
		a.logger.Error("Template dump failed.", "error", err)
	}
}

func (a *App) graphsHandler(w http.ResponseWriter, r *http.Request) {
	var names []string
	if name := chi.URLParam(r, "name"); name != "" {
		if _, ok := a.Graph(name); !ok {
			http.Error(w, fmt.Sprintf("graph '%s' is not loaded", name), http.StatusNotFound)
			return
		}
		names = append(names, name)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := a.DumpGraphs(w, names...); err != nil {
		a.logger.Error("Graph dump failed.", "error", err)
	}
}

// diagnosticsServer creates the diagnostics server and stores it on the app.
func (a *App) diagnosticsServer(addr string) *http.Server {
	a.logger.Debug("Configuring diagnostics server.")
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a.httpServer
}

func (a *App) serveDiagnostics(srv *http.Server) error {
	a.logger.Info("🩺 Diagnostics server starting", "address", fmt.Sprintf("http://localhost%s/health", srv.Addr))
	// ListenAndServe returns ErrServerClosed on graceful shutdown.
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("diagnostics server failed: %w", err)
	}
	return nil
}

func (a *App) closeDiagnostics() error {
	if a.httpServer == nil {
		a.logger.Debug("Diagnostics server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.logger.Info("🩺 Shutting down diagnostics server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Diagnostics server shutdown failed", "error", err)
		return err
	}
	a.logger.Debug("Diagnostics server shut down gracefully.")
	return nil
}
