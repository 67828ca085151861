package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

func newIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Mint and inspect upload IDs",
	}
	cmd.AddCommand(newIDNewCmd(), newIDInspectCmd())
	return cmd
}

func newIDNewCmd() *cobra.Command {
	var expire time.Duration
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Print a fresh upload ID expiring after --expire",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if expire <= 0 {
				return fmt.Errorf("--expire must be positive, got %s", expire)
			}
			id := uploadid.New(uploadid.Unix(time.Now().Add(expire)))
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().DurationVarP(&expire, "expire", "e", 24*time.Hour, "Lifetime of the ID")
	return cmd
}

func newIDInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <id>",
		Short: "Decode the expiration carried by an upload ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uploadid.Parse(args[0])
			if err != nil {
				return err
			}
			now := time.Now()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:      %s\n", id)
			fmt.Fprintf(out, "uuid:    %s\n", id.UUID())
			fmt.Fprintf(out, "expires: %s (%d)\n", id.ExpiresAt().UTC().Format(time.RFC3339), id.Expires())
			if id.Expired(uploadid.Unix(now)) {
				fmt.Fprintf(out, "status:  expired %s\n", humanize.Time(id.ExpiresAt()))
			} else {
				fmt.Fprintf(out, "status:  live, expires %s\n", humanize.Time(id.ExpiresAt()))
			}
			return nil
		},
	}
}
