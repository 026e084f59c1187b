package handler

import (
	"net/http"

	"github.com/boddenberg/tireshop-analytics-go/internal/service"
	"go.uber.org/zap"
)

// RequireSnapshot rejects report requests with 503 until a snapshot is loaded.
func RequireSnapshot(svc *service.ReportService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !svc.Ready() {
				logger.Warn("report requested before snapshot load",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusServiceUnavailable, "no data loaded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
