// Command server runs the expiredrop HTTP service and its sweeper.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/expiredrop/internal/app"
	"github.com/dharsanguruparan/expiredrop/internal/config"
	"github.com/dharsanguruparan/expiredrop/internal/logging"
)

func main() {
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
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	srv, err := a.Server(ctx)
	if err != nil {
		log.Fatal("init server", zap.Error(err))
	}
	if err := srv.Serve(ctx); err != nil {
		log.Error("server stopped", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
}
