// Package httptransport wires feature handlers into the public router.
// Handlers stay thin and delegate to domain services.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	certhandler "attentid/internal/certificate/handler"
	identityhandler "attentid/internal/identity/handler"
	"attentid/internal/platform/metrics"
	"attentid/internal/platform/middleware"
)

// NewRouter assembles the API surface: versioned feature routes plus the
// operational endpoints.
func NewRouter(
	logger *slog.Logger,
	m *metrics.Metrics,
	certs *certhandler.Handler,
	identities *identityhandler.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Latency(m))

	r.Route("/api/v1", func(api chi.Router) {
		certs.Register(api)
		identities.Register(api)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
