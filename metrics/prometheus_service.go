package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryptotheoryum/adex-validator/log"
)

const moduleName = "metrics"

// PullService is a service that supports the Prometheus pull method.
type PullService struct {
	server *http.Server
	logger *log.Logger
}

// StartInstrumentation starts the pull metrics service.
func (s *PullService) StartInstrumentation() {
	s.logger.Info("starting pull metrics service", "endpoint", s.server.Addr)
	go s.startHandler()
}

func (s *PullService) startHandler() {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("prometheus pull service stopped", "err", err)
	}
}

// NewPullService creates a new Prometheus pull service.
func NewPullService(pullEndpoint string, rootLogger *log.Logger) (*PullService, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &PullService{
		server: &http.Server{
			Addr:           pullEndpoint,
			Handler:        mux,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		logger: rootLogger.WithModule(moduleName),
	}, nil
}
