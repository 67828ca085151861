package main

import (
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/expiredrop/internal/app"
	"github.com/dharsanguruparan/expiredrop/internal/config"
	"github.com/dharsanguruparan/expiredrop/internal/logging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server in-process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := logging.New(cfg)
			if err != nil {
				return err
			}
			a, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			srv, err := a.Server(ctx)
			if err != nil {
				return err
			}
			return srv.Serve(ctx)
		},
	}
}
