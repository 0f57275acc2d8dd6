package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/wfs-clickmap/internal/core/config"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/health"
	middleware "github.com/mohammed-shakir/wfs-clickmap/internal/core/middleware"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/router"
)

type Deps struct {
	Sessions router.Sessions
	Index    http.HandlerFunc
	Checks   []health.Check
}

// Handler builds the full route tree.
func Handler(logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	if d.Index != nil {
		r.Get("/", d.Index)
	}
	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Checks...))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		router.Mount(r, logger, d.Sessions)
	})
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Handler(logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	// no WriteTimeout: a click waits for the WFS server, which is unbounded by default
	if cfg.WFSTimeout > 0 {
		srv.WriteTimeout = cfg.WFSTimeout + 15*time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
