package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/observability"
	"github.com/boddenberg/tireshop-analytics-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// svc may be nil or hold no snapshot; report routes then answer 503.
func NewRouter(svc *service.ReportService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger, svc.SnapshotID))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc))
	r.Get("/readyz", readyzHandler(svc))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/ingest", ingestMetricsHandler(metrics))

		r.Group(func(r chi.Router) {
			r.Use(RequireSnapshot(svc, logger))

			r.Get("/branches", branchesHandler(svc, logger))
			r.Get("/overview", overviewHandler(svc, logger))
			r.Get("/buckets", bucketsHandler(svc, logger))
			r.Get("/invoices", invoicesHandler(svc, logger))
			r.Get("/compare", compareHandler(svc, logger))
			r.Get("/alerts", alertsHandler(svc, logger))
			r.Get("/forecast", forecastHandler(svc, logger))
			r.Get("/diagnostics", diagnosticsHandler(svc, logger))
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(svc *service.ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "tireshop-api", Status: "healthy", LastChecked: now},
		}

		snapshot := domain.ServiceHealth{Name: "snapshot", Status: "healthy", LastChecked: now}
		if first, last, err := svc.DataRange(); err != nil {
			snapshot.Status = "unhealthy"
			snapshot.Detail = err.Error()
		} else {
			snapshot.Detail = first.Format(dateLayout) + ".." + last.Format(dateLayout)
		}
		services = append(services, snapshot)

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(svc *service.ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !svc.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ingestMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.IngestSnapshot())
	}
}
