package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/cryptotheoryum/adex-validator/common"
)

// metricsMiddleware measures the start and end of each request and
// makes a request id available to all handlers. It should be used as
// the outermost middleware.
func (h *Handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New()
		h.logger.Debug("starting request",
			"endpoint", r.URL.Path,
			"request_id", requestID,
		)
		t := time.Now()
		timer := h.metrics.RequestTimer(r.URL.Path)

		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), common.RequestIDContextKey, requestID),
		))

		timer.ObserveDuration()
		h.logger.Debug("ending request",
			"endpoint", r.URL.Path,
			"request_id", requestID,
			"latency", time.Since(t),
		)
	})
}

// corsMiddleware allows cross-origin requests from dashboards.
func corsMiddleware(next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(next)
}
