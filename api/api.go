// Package api implements the validator node's HTTP API.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/cryptotheoryum/adex-validator/log"
	"github.com/cryptotheoryum/adex-validator/metrics"
	storage "github.com/cryptotheoryum/adex-validator/storage/client"
	"github.com/cryptotheoryum/adex-validator/validator"
)

const moduleName = "api"

// Handler is the validator node's API handler.
type Handler struct {
	client      *storage.StorageClient
	checkpoints *validator.CheckpointResolver
	logger      *log.Logger
	metrics     metrics.RequestMetrics
}

// NewHandler creates a new API handler.
func NewHandler(client *storage.StorageClient, l *log.Logger) *Handler {
	return &Handler{
		client:      client,
		checkpoints: validator.NewCheckpointResolver(client),
		logger:      l.WithModule(moduleName),
		metrics:     metrics.NewDefaultRequestMetrics(moduleName),
	}
}

// RegisterMiddlewares registers the API middlewares.
func (h *Handler) RegisterMiddlewares(r chi.Router) {
	r.Use(h.metricsMiddleware)
	r.Use(corsMiddleware)
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/", h.GetStatus)

		r.Route("/channels", func(r chi.Router) {
			r.Get("/", h.ListChannels)
			r.Post("/", h.CreateChannel)
			r.Route("/{channel_id}", func(r chi.Router) {
				r.Get("/", h.GetChannel)
				r.Get("/validator-messages", h.ListValidatorMessages)
				r.Post("/validator-messages", h.SubmitValidatorMessages)
				r.Get("/last-approved", h.GetLastApproved)
			})
		})
	})
}
