// Package serve implements the serve sub-command.
package serve

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oasisprotocol/blockview/api"
	"github.com/oasisprotocol/blockview/cache/kvstore"
	"github.com/oasisprotocol/blockview/cmd/common"
	commonSrv "github.com/oasisprotocol/blockview/common"
	"github.com/oasisprotocol/blockview/config"
	"github.com/oasisprotocol/blockview/log"
	"github.com/oasisprotocol/blockview/metrics"
	storageAPI "github.com/oasisprotocol/blockview/storage"
	storage "github.com/oasisprotocol/blockview/storage/client"
	"github.com/oasisprotocol/blockview/view"
)

const moduleName = "serve"

var (
	// Path to the configuration file.
	configFile string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve block pages and the JSON API",
		Run:   runServer,
	}
)

func runServer(cmd *cobra.Command, args []string) {
	cfg := common.LoadConfig(configFile)
	logger := common.RootLogger()

	if cfg.Server == nil {
		logger.Error("server config not provided")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := NewService(cfg.Server)
	if err != nil {
		logger.Error("service failed to start", "error", err)
		os.Exit(1)
	}
	defer service.Shutdown()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return service.Run(groupCtx)
	})
	if cfg.Metrics != nil {
		promServer := metrics.NewPullService(cfg.Metrics.PullEndpoint, logger)
		group.Go(func() error {
			return promServer.Run(groupCtx)
		})
		if cfg.Metrics.PprofEndpoint != "" {
			pprofServer := common.NewPprofServer(cfg.Metrics.PprofEndpoint)
			group.Go(func() error {
				return commonSrv.RunServer(groupCtx, pprofServer, logger.WithModule("pprof"))
			})
		}
	}

	logger.Info("started all services")
	if err := group.Wait(); err != nil {
		logger.Error("service stopped", "error", err)
		service.Shutdown()
		os.Exit(1)
	}
	logger.Info("all services stopped")
}

// Service serves block pages.
type Service struct {
	server *http.Server
	target *storage.StorageClient
	logger *log.Logger
}

// NewService creates a new block page service.
func NewService(cfg *config.ServerConfig) (*Service, error) {
	logger := common.RootLogger().WithModule(moduleName)

	backing, err := common.NewClient(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	client, err := openResolver(backing, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	renderer, err := view.NewRenderer(cfg.Denomination, cfg.Decimals)
	if err != nil {
		client.Close()
		return nil, err
	}
	var timeout time.Duration
	if cfg.RequestTimeout != nil {
		timeout = *cfg.RequestTimeout
	}

	return &Service{
		server: &http.Server{
			Addr:           cfg.Endpoint,
			Handler:        api.NewBlockviewAPI(client, renderer, timeout, logger).Router(),
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		target: client,
		logger: logger,
	}, nil
}

// Replaced in tests.
var newStorageClient = storage.NewStorageClient

// openResolver wraps backing in a storage client with the configured
// caches. On failure, everything opened so far is closed, backing included.
func openResolver(backing storageAPI.TargetStorage, cfg *config.CacheConfig, logger *log.Logger) (*storage.StorageClient, error) {
	var kv kvstore.KVStore
	var maxBlocks int64
	if cfg != nil {
		maxBlocks = cfg.MaxBlocks
		if cfg.Dir != "" {
			m := metrics.NewDefaultStorageMetrics("blockview")
			var err error
			if kv, err = kvstore.OpenKVStore(logger, cfg.Dir, &m); err != nil {
				backing.Close()
				return nil, err
			}
		}
	}
	client, err := newStorageClient(backing, kv, maxBlocks, logger)
	if err != nil {
		if kv != nil {
			commonSrv.CloseOrLog(kv, logger)
		}
		backing.Close()
		return nil, err
	}
	return client, nil
}

// Run serves until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting block page service at " + s.server.Addr)
	return commonSrv.RunServer(ctx, s.server, s.logger)
}

// Shutdown releases the storage and caches. It is safe to call twice.
func (s *Service) Shutdown() {
	if s.target != nil {
		s.target.Close()
		s.target = nil
	}
}

// Register registers the serve sub-command.
func Register(parentCmd *cobra.Command) {
	serveCmd.Flags().StringVar(&configFile, "config", "./config/local.yml", "path to the config.yml file")
	parentCmd.AddCommand(serveCmd)
}
