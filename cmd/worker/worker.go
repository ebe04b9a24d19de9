// Package worker implements the `worker` sub-command.
package worker

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver for golang_migrate
	_ "github.com/golang-migrate/migrate/v4/source/file"       // support file scheme for golang_migrate
	"github.com/spf13/cobra"

	"github.com/cryptotheoryum/adex-validator/chain/ethereum"
	cmdCommon "github.com/cryptotheoryum/adex-validator/cmd/common"
	"github.com/cryptotheoryum/adex-validator/config"
	"github.com/cryptotheoryum/adex-validator/log"
	"github.com/cryptotheoryum/adex-validator/storage"
	"github.com/cryptotheoryum/adex-validator/storage/client"
	"github.com/cryptotheoryum/adex-validator/worker"
	"github.com/cryptotheoryum/adex-validator/worker/channels"
)

const moduleName = "worker_service"

var (
	// Path to the configuration file.
	configFile string

	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "Run the follower consensus worker",
		Run:   runWorker,
	}
)

func runWorker(cmd *cobra.Command, args []string) {
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

	if cfg.Worker == nil {
		logger.Error("worker config not provided")
		os.Exit(1)
	}

	service, err := Init(cfg.Worker)
	if err != nil {
		os.Exit(1)
	}
	service.Start()
}

// Init initializes the worker service.
func Init(cfg *config.WorkerConfig) (*Service, error) {
	logger := cmdCommon.Logger()

	logger.Info("initializing worker service", "identity", cfg.Identity)
	if cfg.Storage.WipeStorage {
		logger.Warn("wiping storage")
		if err := wipeStorage(cfg.Storage); err != nil {
			return nil, err
		}
		logger.Info("storage wiped")
	}

	m, err := migrate.New(
		cfg.Storage.Migrations,
		cfg.Storage.Endpoint,
	)
	if err != nil {
		logger.Error("migrator failed to start",
			"error", err,
		)
		return nil, err
	}

	switch err = m.Up(); {
	case err == migrate.ErrNoChange:
		logger.Info("no migrations needed to be applied")
	case err != nil:
		logger.Error("migrations failed",
			"error", err,
		)
		return nil, err
	default:
		logger.Info("migrations completed")
	}

	service, err := NewService(cfg)
	if err != nil {
		logger.Error("service failed to start",
			"error", err,
		)
		return nil, err
	}
	return service, nil
}

func wipeStorage(cfg *config.StorageConfig) error {
	logger := cmdCommon.Logger().WithModule(moduleName)

	target, err := cmdCommon.NewClient(cfg, logger)
	if err != nil {
		return err
	}
	defer target.Shutdown()

	return target.Wipe(context.Background())
}

// Service is the validator node's consensus worker service.
type Service struct {
	worker worker.Worker
	target storage.TargetStorage
	logger *log.Logger
}

// NewService creates a new worker service.
func NewService(cfg *config.WorkerConfig) (*Service, error) {
	logger := cmdCommon.Logger().WithModule(moduleName)

	target, err := cmdCommon.NewClient(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	source := client.NewStorageClient(target, logger)

	w, err := channels.NewWorker(
		cfg.Identity,
		cfg.Channels,
		source,
		ethereum.NewAdapter(),
		target,
		logger,
	)
	if err != nil {
		return nil, err
	}

	return &Service{
		worker: w,
		target: target,
		logger: logger,
	}, nil
}

// Start runs the worker until it terminates or the process receives an
// interrupt.
func (s *Service) Start() {
	defer s.cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.worker.Start(ctx)
	}()
	workerDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workerDone)
	}()

	s.logger.Info("started worker", "worker", s.worker.Name())
	select {
	case <-workerDone:
		s.logger.Info("worker has exited cleanly")
	case <-signalChan:
		s.logger.Info("received interrupt, shutting down")
		cancel()
		// Let the default handler handle ctrl+C so people can kill
		// the process in a hurry.
		signal.Stop(signalChan)
		<-workerDone
		s.logger.Info("worker has exited cleanly")
	}
}

func (s *Service) cleanup() {
	s.target.Shutdown()
	s.logger.Info("storage connection closed cleanly")
}

// Register registers the worker sub-command.
func Register(parentCmd *cobra.Command) {
	workerCmd.Flags().StringVar(&configFile, "config", "./config/local.yml", "path to the config.yml file")
	parentCmd.AddCommand(workerCmd)
}
