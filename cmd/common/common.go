// Package common implements common blockview command options.
package common

import (
	"fmt"
	"io"
	stdLog "log"
	"os"

	"github.com/akrylysov/pogreb"

	"github.com/oasisprotocol/blockview/config"
	"github.com/oasisprotocol/blockview/log"
	"github.com/oasisprotocol/blockview/storage/postgres"
)

// pogreb logs through the stdlib logger, which adds frames on top of ours.
const pogrebCallerUnwind = 7

var rootLogger = log.NewDefaultLogger("blockview")

// Init initializes the common environment.
func Init(cfg *config.Config) error {
	var w io.Writer = os.Stdout
	format := log.FmtJSON
	level := log.LevelDebug

	if cfg.Log != nil {
		var err error
		if w, err = getLoggingStream(cfg.Log); err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		if err := format.Set(cfg.Log.Format); err != nil {
			return err
		}
		if err := level.Set(cfg.Log.Level); err != nil {
			return err
		}
	}
	logger, err := log.NewLogger("blockview", w, format, level)
	if err != nil {
		return err
	}
	rootLogger = logger

	pogrebLogger := RootLogger().WithModule("pogreb").WithCallerUnwind(pogrebCallerUnwind)
	pogreb.SetLogger(stdLog.New(log.WriterIntoLogger(pogrebLogger), "", 0))

	return nil
}

// RootLogger returns the logger defined by the log config.
func RootLogger() *log.Logger {
	return rootLogger
}

func getLoggingStream(cfg *config.LogConfig) (io.Writer, error) {
	if cfg == nil || cfg.File == "" {
		return os.Stdout, nil
	}
	w, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// NewClient creates a new client to target storage.
func NewClient(cfg *config.StorageConfig, logger *log.Logger) (*postgres.Client, error) {
	var backend config.StorageBackend
	if err := backend.Set(cfg.Backend); err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendPostgres:
		return postgres.NewClient(cfg.Endpoint, logger)
	default:
		panic(fmt.Sprintf("unsupported storage backend: %v", backend.String()))
	}
}

// LoadConfig reads the config file and initializes the common
// environment from it. On failure it logs and exits, like all commands do
// before they have a configured logger.
func LoadConfig(path string) *config.Config {
	cfg, err := config.InitConfig(path)
	if err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}
	if err = Init(cfg); err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}
	return cfg
}
