package cmd

import (
	"fmt"
	"time"

	statusadapter "github.com/bnema/starknet-wallet-bridge/internal/adapters/render/status"
	"github.com/bnema/starknet-wallet-bridge/internal/application"
	"github.com/spf13/cobra"
)

func newSessionsCmd(app *app) *cobra.Command {
	var (
		asJSON      bool
		fullAddress bool
	)

	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"status"},
		Short:   "List wallet sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions := app.connections.Sessions()
			if asJSON {
				return writeJSON(cmd, sessions)
			}
			return writeSessions(cmd, app, sessions, fullAddress)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	cmd.Flags().BoolVar(&fullAddress, "full", false, "Show full addresses")

	return cmd
}

func newDisconnectCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <wallet>",
		Short: "End a wallet session and forget its keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseWallet(args[0])
			if err != nil {
				return err
			}

			previous, err := app.connections.Disconnect(cmd.Context(), application.DisconnectCommand{Kind: kind})
			if err != nil {
				return userError(err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Disconnected %s (%s)\n", kind.DisplayName(), previous.Address)
			return err
		},
	}
}

func writeSessions(cmd *cobra.Command, app *app, sessions []application.SessionView, fullAddress bool) error {
	rendered, err := app.renderer.sessions(sessions, statusadapter.RenderOptions{
		Now:         app.now(),
		StaleAfter:  time.Hour,
		FullAddress: fullAddress,
	})
	if err != nil {
		return fmt.Errorf("render sessions: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
