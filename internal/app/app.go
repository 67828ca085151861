// Package app assembles the storage backend, the optional ledger and the
// reclaim path from a Config. The server, worker and CLI binaries all start
// from here.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/expiredrop/internal/config"
	"github.com/dharsanguruparan/expiredrop/internal/database"
	"github.com/dharsanguruparan/expiredrop/internal/expiry"
	"github.com/dharsanguruparan/expiredrop/internal/queue"
	"github.com/dharsanguruparan/expiredrop/internal/repository"
	"github.com/dharsanguruparan/expiredrop/internal/server"
	"github.com/dharsanguruparan/expiredrop/internal/storage"
	"github.com/dharsanguruparan/expiredrop/internal/sweeper"
)

// App holds the long lived dependencies.
type App struct {
	Config *config.Config
	Log    *zap.Logger
	Store  storage.Store
	// Ledger is nil unless a database is configured.
	Ledger *repository.UploadRepository

	closers []func()
}

// Open connects the storage backend and, when configured, the ledger.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store

	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		a.Ledger = repository.NewUploadRepository(pool)
		a.closers = append(a.closers, pool.Close)
		log.Info("upload ledger enabled")
	}
	return a, nil
}

// OpenStore returns the backend selected by cfg.Storage.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage {
	case config.StorageS3:
		s3, err := storage.NewS3(cfg)
		if err != nil {
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3, nil
	case config.StorageDisk, "":
		return storage.NewOSDisk(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

// StoreReclaimer deletes uploads inline and stamps the ledger when there is
// one.
func (a *App) StoreReclaimer() *sweeper.StoreReclaimer {
	r := &sweeper.StoreReclaimer{Store: a.Store, Logger: a.Log}
	if a.Ledger != nil {
		r.Recorder = a.Ledger
	}
	return r
}

// Reclaimer is what the sweeper hands expired IDs to: the asynq queue when
// Redis is configured, inline deletion otherwise.
func (a *App) Reclaimer() sweeper.Reclaimer {
	if a.Config.RedisAddr == "" {
		return a.StoreReclaimer()
	}
	client := asynq.NewClient(a.RedisOpt())
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.Log.Info("reclaims go through the task queue", zap.String("redis", a.Config.RedisAddr))
	return queue.NewReclaimer(client)
}

// RedisOpt is the asynq connection for the reclaim queue.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	}
}

// Server restores the expiry queue from storage and returns a server whose
// sweeper drains it.
func (a *App) Server(ctx context.Context) (*server.Server, error) {
	q := expiry.NewQueue()
	n, err := sweeper.Restore(ctx, a.Store, q)
	if err != nil {
		return nil, fmt.Errorf("restore expiry queue: %w", err)
	}
	a.Log.Info("expiry queue restored", zap.Int("uploads", n))

	sw := sweeper.New(q, a.Reclaimer(), sweeper.Options{
		Interval: a.Config.SweepInterval,
		Workers:  a.Config.ReclaimWorkers,
		Logger:   a.Log.Named("sweeper"),
	})
	deps := server.Deps{Store: a.Store, Queue: q, Sweeper: sw, Logger: a.Log}
	if a.Ledger != nil {
		deps.Ledger = a.Ledger
	}
	return server.New(a.Config, deps), nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.Log.Sync()
}
