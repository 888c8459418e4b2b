package cmd

import (
	"context"
	"fmt"
	"time"

	statusadapter "github.com/bnema/starknet-wallet-bridge/internal/adapters/render/status"
	"github.com/bnema/starknet-wallet-bridge/internal/application"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/spf13/cobra"
)

type vaultRunner func(ctx context.Context, amount string, args []string) (domain.VaultResult, error)

func newBalancesCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show wallet and vault balances of the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var balances application.BalancesView
			err := runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), waitTask{Label: "Reading balances..."}, asJSON, func(ctx context.Context) error {
				var readErr error
				balances, readErr = app.vault.Balances(ctx)
				return readErr
			})
			if err != nil {
				return userError(err)
			}

			if asJSON {
				return writeJSON(cmd, balances)
			}
			rendered, err := app.renderer.balances(balances, statusadapter.RenderOptions{Now: app.now(), StaleAfter: time.Minute})
			if err != nil {
				return fmt.Errorf("render balances: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newDepositCmd(app *app) *cobra.Command {
	return newVaultCmd(app, &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Deposit STRK into the vault, approving it first when needed",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, amount string, _ []string) (domain.VaultResult, error) {
		value, err := domain.ParseAmount(amount)
		if err != nil {
			return domain.VaultResult{}, err
		}
		return app.vault.Deposit(ctx, application.DepositCommand{Amount: value})
	})
}

func newWithdrawCmd(app *app) *cobra.Command {
	return newVaultCmd(app, &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Withdraw STRK from the vault to the wallet",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, amount string, _ []string) (domain.VaultResult, error) {
		value, err := domain.ParseAmount(amount)
		if err != nil {
			return domain.VaultResult{}, err
		}
		return app.vault.Withdraw(ctx, application.WithdrawCommand{Amount: value})
	})
}

func newTransferCmd(app *app) *cobra.Command {
	return newVaultCmd(app, &cobra.Command{
		Use:   "transfer <amount> <recipient>",
		Short: "Move vault balance to another account's vault balance",
		Args:  cobra.ExactArgs(2),
	}, func(ctx context.Context, amount string, args []string) (domain.VaultResult, error) {
		value, err := domain.ParseAmount(amount)
		if err != nil {
			return domain.VaultResult{}, err
		}
		return app.vault.Transfer(ctx, application.TransferCommand{Recipient: args[1], Amount: value})
	})
}

// newVaultCmd runs one vault flow with the callback server up, since wallets
// that sign in their own app report the transaction hash through it.
func newVaultCmd(app *app, cmd *cobra.Command, run vaultRunner) *cobra.Command {
	var asJSON bool

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		stop, err := app.startCallbackServer()
		if err != nil {
			return err
		}
		defer stop()

		var result domain.VaultResult
		task := waitTask{Label: fmt.Sprintf("Running %s and waiting for confirmation...", cmd.Name())}
		err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), task, asJSON, func(ctx context.Context) error {
			var runErr error
			result, runErr = run(ctx, args[0], args)
			return runErr
		})
		if err != nil {
			return userError(err)
		}

		if asJSON {
			return writeJSON(cmd, result)
		}
		rendered, err := app.renderer.result(result, statusadapter.RenderOptions{Now: app.now()})
		if err != nil {
			return fmt.Errorf("render result: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}
