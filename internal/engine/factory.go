package engine

import (
	"fmt"

	"github.com/neogan74/rockgate/internal/logger"
)

// Config holds storage engine configuration
type Config struct {
	Type            string // "memory", "badger"
	DataDir         string
	SyncWrites      bool
	CreateIfMissing bool
	ErrorIfExists   bool
}

// New creates a storage engine based on configuration
func New(cfg Config, log logger.Logger) (Engine, error) {
	switch cfg.Type {
	case "", "memory":
		log.Info("Using in-memory storage engine")
		return NewMemoryEngine(), nil
	case "badger":
		log.Info("Using BadgerDB storage engine",
			logger.String("data_dir", cfg.DataDir),
			logger.Bool("sync_writes", cfg.SyncWrites))
		return NewBadgerEngine(BadgerConfig{
			DataDir:         cfg.DataDir,
			SyncWrites:      cfg.SyncWrites,
			CreateIfMissing: cfg.CreateIfMissing,
			ErrorIfExists:   cfg.ErrorIfExists,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported storage engine: %s", cfg.Type)
	}
}
