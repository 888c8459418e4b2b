package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/spf13/cobra"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "swb",
		Short:         "Starknet Wallet Bridge (swb): connect wallets and move funds through the vault",
		Long:          "swb connects Starknet wallets over deep links, WalletConnect or an imported key, keeps one session per wallet, and runs vault deposits, withdrawals and transfers from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(newVersionCmd())

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}
	rootCmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return app.Close()
	}

	rootCmd.AddCommand(
		newConnectCmd(app),
		newImportCmd(app),
		newDisconnectCmd(app),
		newSessionsCmd(app),
		newCallbackCmd(app),
		newBalancesCmd(app),
		newDepositCmd(app),
		newWithdrawCmd(app),
		newTransferCmd(app),
	)

	return rootCmd
}

func writeJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// userError keeps the wrapped chain for errors.Is but leads with the message
// a person should read.
func userError(err error) error {
	if err == nil {
		return nil
	}
	message := domain.UserMessage(err)
	if message == err.Error() {
		return err
	}
	return fmt.Errorf("%s: %w", message, err)
}

func parseWallet(raw string) (domain.WalletKind, error) {
	kind, err := domain.ParseWalletKind(raw)
	if err != nil {
		return "", fmt.Errorf("%w (known: %v)", err, domain.WalletKinds())
	}
	return kind, nil
}
