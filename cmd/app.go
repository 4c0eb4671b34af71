package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"staff-arabia/infrastructure"
)

// coreModule provides everything serve and worker share: logger, tracer, metrics,
// database, document store, event bus and listing cache.
func coreModule(cfg *infrastructure.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			infrastructure.NewMetrics,
			func(m *infrastructure.Metrics) infrastructure.Observer { return m },
			newDatabase,
			newDocumentStore,
			newEventBus,
			func(b infrastructure.EventBus) infrastructure.EventPublisher { return b },
			newListingCache,
		),
		fx.Invoke(startTracer),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
	)
}

func newLogger(lc fx.Lifecycle, cfg *infrastructure.Config) (*zap.Logger, error) {
	logger, err := infrastructure.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func startTracer(lc fx.Lifecycle, cfg *infrastructure.Config, logger *zap.Logger) error {
	shutdown, err := infrastructure.InitTracer(context.Background(), cfg)
	if err != nil {
		return err
	}
	if cfg.OTLPEndpoint != "" {
		logger.Info("tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	}
	lc.Append(fx.Hook{OnStop: shutdown})
	return nil
}

// newDatabase returns nil when the database is not configured or unreachable.
// The API then answers data requests with "Database not connected".
func newDatabase(lc fx.Lifecycle, cfg *infrastructure.Config, logger *zap.Logger) *gorm.DB {
	db, err := infrastructure.OpenDatabase(context.Background(), cfg, logger)
	if errors.Is(err, infrastructure.ErrNoDatabaseURL) {
		logger.Warn("DATABASE_URL not set, running without a database")
		return nil
	}
	if err != nil {
		logger.Error("database unavailable, running without a database", zap.Error(err))
		return nil
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return infrastructure.CloseDatabase(db)
		},
	})
	return db
}

// newDocumentStore creates missing collections on start. A failed migration is logged and
// the API keeps serving; data requests then report the storage error.
func newDocumentStore(lc fx.Lifecycle, db *gorm.DB, logger *zap.Logger, observer infrastructure.Observer) *infrastructure.DocumentStore {
	store := infrastructure.NewDocumentStore(db, logger, observer)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !store.Connected() {
				return nil
			}
			if err := store.Migrate(ctx); err != nil {
				logger.Error("migration failed, continuing without it", zap.Error(err))
			}
			return nil
		},
	})
	return store
}

func newEventBus(lc fx.Lifecycle, cfg *infrastructure.Config, logger *zap.Logger, observer infrastructure.Observer) infrastructure.EventBus {
	bus, err := infrastructure.NewEventBus(cfg, logger, observer)
	if err != nil {
		logger.Error("event broker unavailable, document events are disabled", zap.Error(err))
		return infrastructure.NopEventBus{}
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return bus.Close()
		},
	})
	return bus
}

func newListingCache(lc fx.Lifecycle, cfg *infrastructure.Config, logger *zap.Logger, observer infrastructure.Observer) infrastructure.ListingCache {
	cache, err := infrastructure.NewListingCache(cfg, logger, observer)
	if err != nil {
		logger.Error("redis unavailable, job listing cache is disabled", zap.Error(err))
		return infrastructure.NopCache{}
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return cache.Close()
		},
	})
	return cache
}

// run starts app, blocks until SIGINT/SIGTERM or an fx shutdown, then stops it.
func run(app *fx.App) error {
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
	case <-app.Wait():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	return app.Stop(stopCtx)
}
