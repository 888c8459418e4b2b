package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/adapters/walletconnect"
	"github.com/bnema/starknet-wallet-bridge/internal/application"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/spf13/cobra"
)

func newConnectCmd(app *app) *cobra.Command {
	var (
		method  string
		timeout time.Duration
		qrPNG   string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "connect <wallet>",
		Short: "Connect a wallet over its deep link or WalletConnect",
		Long:  "Opens the wallet (or prints a WalletConnect pairing QR) and waits until the wallet approves, rejects or the attempt times out.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseWallet(args[0])
			if err != nil {
				return err
			}

			command := application.ConnectCommand{Kind: kind, Timeout: timeout}
			if method != "" {
				if command.Method, err = domain.ParseConnectMethod(method); err != nil {
					return err
				}
			}

			return runConnect(cmd, app, command, qrPNG, asJSON)
		},
	}

	cmd.Flags().StringVar(&method, "method", "", "Connect method: deeplink or walletconnect (default: wallet profile)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "How long to wait for the wallet (default: wallet profile)")
	cmd.Flags().StringVar(&qrPNG, "qr-png", "", "Also write the WalletConnect pairing QR to this PNG file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func runConnect(cmd *cobra.Command, app *app, command application.ConnectCommand, qrPNG string, asJSON bool) error {
	stop, err := app.startCallbackServer()
	if err != nil {
		return err
	}
	defer stop()

	pending, handle, err := app.connections.Connect(cmd.Context(), command)
	if err != nil {
		return userError(err)
	}

	if !asJSON {
		if err := describePending(cmd, pending, qrPNG); err != nil {
			return err
		}
	} else if qrPNG != "" && pending.URI != "" {
		if err := walletconnect.WriteQRPNG(pending.URI, qrPNG, 0); err != nil {
			return err
		}
	}

	var session domain.WalletSession
	task := waitTask{
		Label:    fmt.Sprintf("Waiting for %s to approve", command.Kind.DisplayName()),
		Hint:     "Approve the connection in your wallet app. Ctrl+C cancels.",
		Deadline: pending.ExpiresAt,
	}
	err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), task, asJSON, func(ctx context.Context) error {
		var waitErr error
		session, waitErr = handle.Wait(ctx)
		return waitErr
	})
	if err != nil {
		return userError(err)
	}

	view := findSession(app, session.Kind)
	if asJSON {
		return writeJSON(cmd, view)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Connected %s as %s\n", view.Name, session.Address)
	return err
}

func describePending(cmd *cobra.Command, pending domain.PendingConnection, qrPNG string) error {
	out := cmd.OutOrStdout()

	if pending.URI != "" {
		qr, err := walletconnect.RenderQR(pending.URI)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "Scan with %s:\n%s\n%s\n", pending.Kind.DisplayName(), qr, pending.URI); err != nil {
			return err
		}
		if qrPNG != "" {
			if err := walletconnect.WriteQRPNG(pending.URI, qrPNG, 0); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(out, "QR written to %s\n", qrPNG); err != nil {
				return err
			}
		}
	}
	if pending.DeepLink != "" {
		if _, err := fmt.Fprintf(out, "Opened %s: %s\n", pending.Kind.DisplayName(), pending.DeepLink); err != nil {
			return err
		}
	}

	return nil
}

func findSession(app *app, kind domain.WalletKind) application.SessionView {
	for _, view := range app.connections.Sessions() {
		if view.Kind == kind {
			return view
		}
	}
	return application.SessionView{Kind: kind, Name: kind.DisplayName()}
}
