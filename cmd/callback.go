package cmd

import (
	"fmt"

	"github.com/bnema/starknet-wallet-bridge/internal/adapters/callback"
	"github.com/spf13/cobra"
)

// newCallbackCmd is what the OS runs for <app_scheme>:// URLs. It hands the
// URL to the swb process that is waiting on the wallet.
func newCallbackCmd(app *app) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:    "callback <url>",
		Short:  "Deliver a wallet callback URL to the waiting swb process",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = "http://" + app.cfg.Callback.Listen
			}
			if err := callback.Forward(cmd.Context(), app.httpClient, server, args[0]); err != nil {
				return fmt.Errorf("deliver callback: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Callback server base URL (default: http://<callback.listen>)")

	return cmd
}
