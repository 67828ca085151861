package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/expiredrop/internal/app"
	"github.com/dharsanguruparan/expiredrop/internal/config"
	"github.com/dharsanguruparan/expiredrop/internal/expiry"
	"github.com/dharsanguruparan/expiredrop/internal/logging"
	"github.com/dharsanguruparan/expiredrop/internal/sweeper"
	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

func newSweepCmd() *cobra.Command {
	var (
		dryRun  bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reclaim every expired upload in the configured storage once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logging.Nop()
			if verbose {
				if log, err = logging.New(cfg); err != nil {
					return err
				}
			}
			a, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			q := expiry.NewQueue()
			n, err := sweeper.Restore(ctx, a.Store, q)
			if err != nil {
				return err
			}
			now := time.Now()
			out := cmd.OutOrStdout()

			var expired []uploadid.ID
			if dryRun {
				expired = q.PopExpired(uploadid.Unix(now))
			} else {
				sw := sweeper.New(q, a.StoreReclaimer(), sweeper.Options{
					Workers: cfg.ReclaimWorkers,
					Logger:  log,
				})
				expired = sw.SweepOnce(ctx, now)
			}
			for _, id := range expired {
				fmt.Fprintf(out, "%s\texpired %s\n", id, id.ExpiresAt().UTC().Format(time.RFC3339))
			}
			verb := "reclaimed"
			if dryRun {
				verb = "would reclaim"
			}
			fmt.Fprintf(out, "%s %d of %d uploads\n", verb, len(expired), n)
			log.Info("sweep finished", zap.Int("expired", len(expired)), zap.Int("scanned", n), zap.Bool("dry_run", dryRun))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List expired uploads without deleting them")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Write structured logs to stdout")
	return cmd
}
