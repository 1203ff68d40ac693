// Package httptransport assembles the HTTP surface: domain handlers, health
// and metrics endpoints. Handlers delegate to domain services; no business
// logic lives here.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sigil/internal/transport/http/shared/json"
)

// Registrar is implemented by each domain handler package.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewRouter wires all endpoints. Each handler mounts its own routes with its
// own middleware chain.
func NewRouter(checks map[string]HealthChecker, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	for _, h := range handlers {
		h.Register(r)
	}

	r.Get("/healthz", handleHealth(checks))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := map[string]string{}
		for name, check := range checks {
			if check == nil {
				results[name] = "disabled"
				continue
			}
			if err := check.Health(r.Context()); err != nil {
				results[name] = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		json.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}
