// Command worker processes reclaim tasks queued by the server's sweeper when
// Redis is configured.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/expiredrop/internal/app"
	"github.com/dharsanguruparan/expiredrop/internal/config"
	"github.com/dharsanguruparan/expiredrop/internal/logging"
	"github.com/dharsanguruparan/expiredrop/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	if cfg.RedisAddr == "" {
		log.Fatal("EXPIREDROP_REDIS_ADDR must be set for the worker")
	}

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	server := asynq.NewServer(a.RedisOpt(), asynq.Config{
		Concurrency: cfg.ReclaimWorkers,
		Logger:      log.Named("asynq").Sugar(),
	})
	processor := worker.NewProcessor(a.StoreReclaimer(), log.Named("worker"))

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info("worker started", zap.Int("concurrency", cfg.ReclaimWorkers))
	if err := server.Run(processor.Handler()); err != nil {
		log.Error("worker stopped", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
}
