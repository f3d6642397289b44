// Package httptransport assembles the service's HTTP surface: the platform
// middleware stack, the domain handlers, and the operational endpoints.
// Domain routes run behind the full stack; health probes and the metrics
// scrape stay on a minimal one so they never spam the request log.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/metrics"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/middleware"
)

// Handler is one domain's route bundle.
type Handler interface {
	Register(r chi.Router)
}

// Deps carries everything the router mounts.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Timeout time.Duration

	// Handlers self-register their routes in order.
	Handlers []Handler

	// Ready checks gate the readiness probe; an empty list means always ready.
	Ready []ReadyCheck
}

// NewRouter builds the process router.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(deps.Ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(middleware.ClientMetadata)
		api.Use(middleware.RequestTime)
		api.Use(middleware.Tracing)
		api.Use(middleware.Logger(deps.Logger))
		if deps.Metrics != nil {
			api.Use(middleware.LatencyMiddleware(deps.Metrics))
		}
		if deps.Timeout > 0 {
			api.Use(middleware.Timeout(deps.Timeout))
		}
		api.Use(middleware.ContentTypeJSON)

		for _, h := range deps.Handlers {
			h.Register(api)
		}
	})

	return r
}
