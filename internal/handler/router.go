// Package handler exposes the back-office over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/observability"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/resilience"
	"github.com/boddenberg/eternity-backoffice-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies groups everything the router serves.
type Dependencies struct {
	Family   *service.FamilyService
	Clients  *service.ClientService
	Auth     *service.AuthService
	Reps     *service.RepresentativeService
	DB       Pinger
	Metrics  *observability.Metrics
	Bulkhead *resilience.Bulkhead

	// DevAuth mounts POST /v1/dev/token.
	DevAuth bool
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Dependencies, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.DB))
	r.Get("/readyz", readyzHandler(deps.DB, logger))
	r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if deps.Bulkhead != nil {
			r.Use(BulkheadMiddleware(deps.Bulkhead, logger))
		}

		if deps.DevAuth {
			r.Post("/dev/token", devTokenHandler(deps.Auth, logger))
		}

		r.Group(func(r chi.Router) {
			r.Use(ActorMiddleware(deps.Auth, logger))

			// =============================================
			// Clientes
			// =============================================
			r.Get("/clients", listClientsHandler(deps.Clients, logger))
			r.Post("/clients", registerClientHandler(deps.Clients, logger))
			r.Get("/clients/{clientId}", clientSheetHandler(deps.Family, logger))
			r.Put("/clients/{clientId}", updateClientHandler(deps.Clients, logger))

			// =============================================
			// Composição familiar
			// =============================================
			r.Get("/clients/{clientId}/family", listDependentsHandler(deps.Family, logger))
			r.Get("/clients/{clientId}/family/candidates", linkCandidatesHandler(deps.Family, logger))
			r.Post("/clients/{clientId}/family", linkExistingHandler(deps.Family, logger))
			r.Post("/clients/{clientId}/family/new", createAndLinkHandler(deps.Family, logger))
			r.Delete("/clients/{clientId}/family/{edgeId}", unlinkHandler(deps.Family, logger))

			// =============================================
			// Representantes (admin)
			// =============================================
			r.Get("/representatives", listRepresentativesHandler(deps.Reps, logger))
			r.Post("/representatives", createRepresentativeHandler(deps.Reps, logger))
			r.Put("/representatives/{representativeId}", updateRepresentativeHandler(deps.Reps, logger))
			r.Patch("/representatives/{representativeId}/status", setRepresentativeStatusHandler(deps.Reps, logger))

			// =============================================
			// Métricas
			// =============================================
			r.Get("/metrics/family", familyMetricsHandler(deps.Metrics, logger))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "backoffice-api", Status: "healthy", LastChecked: now},
		}

		if db != nil {
			start := time.Now()
			err := db.Ping(r.Context())
			dbHealth := domain.ServiceHealth{
				Name:        "database",
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				dbHealth.Status = "degraded"
				dbHealth.Error = err.Error()
			}
			services = append(services, dbHealth)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overallStatus = s.Status
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(db Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				logger.Warn("readiness: database unreachable", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
