package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/hotelbooker-backend/api/controllers"
	"github.com/angelmondragon/hotelbooker-backend/api/middleware"
	"github.com/angelmondragon/hotelbooker-backend/pkg/config"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
)

// NewOpsRouter serves health probes and metrics for the background workers.
func NewOpsRouter(cfg *config.Config, logg *logger.Logger, gatherer prometheus.Gatherer, readiness map[string]controllers.Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
	)
	mountOps(r, cfg, logg, gatherer, readiness)
	return r
}

func mountOps(r chi.Router, cfg *config.Config, logg *logger.Logger, gatherer prometheus.Gatherer, readiness map[string]controllers.Pinger) {
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	metricsHandler := promhttp.Handler()
	if gatherer != nil {
		metricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)
}

// ServeOps runs handler on addr until ctx ends, then shuts it down within
// timeout.
func ServeOps(ctx context.Context, addr string, handler http.Handler, timeout time.Duration, logg *logger.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if logg != nil {
		logg.Info(logg.WithField(ctx, "addr", addr), "ops server listening")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
