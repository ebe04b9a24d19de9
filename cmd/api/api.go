// Package api implements the `serve` sub-command.
package api

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/cryptotheoryum/adex-validator/api"
	cmdCommon "github.com/cryptotheoryum/adex-validator/cmd/common"
	"github.com/cryptotheoryum/adex-validator/config"
	"github.com/cryptotheoryum/adex-validator/log"
	storage "github.com/cryptotheoryum/adex-validator/storage/client"
)

const moduleName = "api"

var (
	// Path to the configuration file.
	configFile string

	apiCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the validator sentry API",
		Run:   runServer,
	}
)

func runServer(cmd *cobra.Command, args []string) {
	// Initialize config.
	cfg, err := config.InitConfig(configFile)
	if err != nil {
		log.NewDefaultLogger("init").Error("config init failed",
			"error", err,
		)
		os.Exit(1)
	}

	// Initialize common environment.
	if err = cmdCommon.Init(cfg); err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}
	logger := cmdCommon.Logger()

	if cfg.Server == nil {
		logger.Error("server config not provided")
		os.Exit(1)
	}

	service, err := Init(cfg.Server)
	if err != nil {
		os.Exit(1)
	}
	defer service.Shutdown()

	service.Start()
}

// Init initializes the API service.
func Init(cfg *config.ServerConfig) (*Service, error) {
	logger := cmdCommon.Logger()

	service, err := NewService(cfg)
	if err != nil {
		logger.Error("service failed to start",
			"error", err,
		)
		return nil, err
	}
	return service, nil
}

// Service is the validator node's API service.
type Service struct {
	endpoint string
	handler  *api.Handler
	client   *storage.StorageClient
	logger   *log.Logger
}

// NewService creates a new API service.
func NewService(cfg *config.ServerConfig) (*Service, error) {
	logger := cmdCommon.Logger().WithModule(moduleName)

	target, err := cmdCommon.NewClient(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	client := storage.NewStorageClient(target, logger)

	return &Service{
		endpoint: cfg.Endpoint,
		handler:  api.NewHandler(client, logger),
		client:   client,
		logger:   logger,
	}, nil
}

// Start starts the API service.
func (s *Service) Start() {
	s.logger.Info("starting api service", "endpoint", s.endpoint)

	r := chi.NewRouter()
	s.handler.RegisterMiddlewares(r)
	s.handler.RegisterRoutes(r)

	server := &http.Server{
		Addr:           s.endpoint,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.Error("shutting down",
		"error", server.ListenAndServe(),
	)
}

// Shutdown gracefully shuts down the service.
func (s *Service) Shutdown() {
	s.client.Shutdown()
}

// Register registers the serve sub-command.
func Register(parentCmd *cobra.Command) {
	apiCmd.Flags().StringVar(&configFile, "config", "./config/local.yml", "path to the config.yml file")
	parentCmd.AddCommand(apiCmd)
}
