package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neogan74/rockgate"
	"github.com/neogan74/rockgate/internal/config"
	"github.com/neogan74/rockgate/internal/handlers"
	"github.com/neogan74/rockgate/internal/logger"
	"github.com/neogan74/rockgate/internal/metrics"
	"github.com/neogan74/rockgate/internal/middleware"
)

// Builder wires Rockgate daemon dependencies.
type Builder struct {
	cfg      *config.Config
	version  string
	logger   logger.Logger
	fiberApp *fiber.App
	db       *rockgate.DB
}

// NewBuilder creates a new application builder.
func NewBuilder(cfg *config.Config, version string) *Builder {
	return &Builder{cfg: cfg, version: version}
}

// Build assembles the daemon components.
func (b *Builder) Build() (*App, error) {
	b.initLogger()
	b.recordStartupMetrics()
	b.initFiber()
	b.initMiddleware()

	if err := b.openDatabase(); err != nil {
		return nil, err
	}

	b.initHandlers()

	return &App{
		cfg:      b.cfg,
		logger:   b.logger,
		fiberApp: b.fiberApp,
		db:       b.db,
	}, nil
}

func (b *Builder) initLogger() {
	b.logger = logger.NewFromConfig(b.cfg.Log.Level, b.cfg.Log.Format)
	logger.SetDefault(b.logger)
}

func (b *Builder) recordStartupMetrics() {
	metrics.BuildInfo.WithLabelValues(b.version, runtime.Version()).Set(1)

	b.logger.Info("Starting Rockgate",
		logger.String("version", b.version),
		logger.String("address", b.cfg.Address()),
		logger.String("engine", b.cfg.Store.Engine),
		logger.String("data_dir", b.cfg.Store.DataDir),
		logger.String("log_level", b.cfg.Log.Level))
}

func (b *Builder) initFiber() {
	b.fiberApp = fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
}

func (b *Builder) initMiddleware() {
	b.fiberApp.Use(middleware.RequestLogging(b.logger))
	b.fiberApp.Use(middleware.MetricsMiddleware())
}

func (b *Builder) openDatabase() error {
	db, err := rockgate.Open(b.cfg.Store.DataDir, &rockgate.Options{
		Engine:          b.cfg.Store.Engine,
		CreateIfMissing: b.cfg.Store.CreateIfMissing,
		ErrorIfExists:   b.cfg.Store.ErrorIfExists,
		SyncWrites:      b.cfg.Store.SyncWrites,
		QueryLimit:      b.cfg.Query.DefaultLimit,
		Logger:          b.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	b.db = db
	return nil
}

func (b *Builder) initHandlers() {
	kvHandler := handlers.NewKVHandler(b.db)
	batchHandler := handlers.NewBatchHandler(b.db)
	adminHandler := handlers.NewAdminHandler(b.db, b.version)
	updatesHandler := handlers.NewUpdatesHandler(b.db, b.logger)

	app := b.fiberApp

	app.Get("/health", adminHandler.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// KV endpoints
	app.Get("/kv/:key", kvHandler.Get)
	app.Put("/kv/:key", kvHandler.Set)
	app.Delete("/kv/:key", kvHandler.Delete)
	app.Post("/kv", kvHandler.GetMany)
	app.Delete("/kv", kvHandler.Clear)
	app.Post("/batch", batchHandler.Apply)
	app.Get("/query", kvHandler.Query)

	// Engine introspection
	app.Get("/db/property/:name", adminHandler.GetProperty)
	app.Get("/db/sequence", adminHandler.Sequence)
	app.Get("/db/wal", adminHandler.SortedWalFiles)
	app.Get("/db/wal/current", adminHandler.CurrentWalFile)
	app.Post("/db/wal/flush", adminHandler.FlushWal)

	// Change feed over WebSocket
	app.Use("/updates", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/updates", websocket.New(updatesHandler.UpdatesWebSocket))
}

// App is the assembled daemon.
type App struct {
	cfg      *config.Config
	logger   logger.Logger
	fiberApp *fiber.App
	db       *rockgate.DB
}

// Run serves until the context is cancelled or a signal arrives, then shuts
// the HTTP server down before closing the database, so in-flight handlers
// finish against an open handle.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.fiberApp.Listen(a.cfg.Address())
	}()

	a.logger.Info("Server started", logger.String("address", a.cfg.Address()))

	select {
	case err := <-serverErr:
		if err != nil {
			a.logger.Error("Failed to start server", logger.Error(err))
			a.closeDatabase()
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")

	if err := a.fiberApp.Shutdown(); err != nil {
		a.logger.Error("Server forced to shutdown", logger.Error(err))
	}

	a.closeDatabase()

	if err := <-serverErr; err != nil {
		return err
	}

	a.logger.Info("Server exited gracefully")
	return nil
}

func (a *App) closeDatabase() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database", logger.Error(err))
	}
}
