// Command expiredrop is the operator CLI: it mints and inspects upload IDs,
// runs one-off sweeps and can run the server in-process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "expiredrop: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expiredrop",
		Short: "expiredrop file drop CLI",
		Long: `expiredrop stores uploads under IDs that carry their own expiration.
The CLI mints and inspects such IDs, reclaims expired uploads and runs the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				return os.Setenv("EXPIREDROP_CONFIG", configFile)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "TOML config file (overrides EXPIREDROP_CONFIG)")
	cmd.AddCommand(
		newIDCmd(),
		newSweepCmd(),
		newServeCmd(),
	)
	return cmd
}
