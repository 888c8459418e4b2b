package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/starknet-wallet-bridge/internal/adapters/manual"
	"github.com/bnema/starknet-wallet-bridge/internal/application"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/spf13/cobra"
)

func newImportCmd(app *app) *cobra.Command {
	var (
		address   string
		publicKey string
		keyStdin  bool
		scanned   string
		scanStdin bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "import [wallet]",
		Short: "Connect with a private key you already hold",
		Long:  "Stores the key in the secret store and connects the wallet with signing enabled. The key is read from stdin or from a scanned QR payload, never from a flag.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.WalletGeneric
			if len(args) == 1 {
				parsed, err := parseWallet(args[0])
				if err != nil {
					return err
				}
				kind = parsed
			}

			var account domain.ImportedAccount
			switch {
			case scanned != "" || scanStdin:
				payload := scanned
				if scanStdin {
					line, err := readLine(cmd.InOrStdin())
					if err != nil {
						return err
					}
					payload = line
				}
				parsed, err := manual.ParseScanned(payload)
				if err != nil {
					return err
				}
				account = parsed
			case keyStdin:
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				account = domain.ImportedAccount{PrivateKey: line}
			default:
				return fmt.Errorf("pass --key-stdin or --scan to supply the key")
			}
			if account.Address == "" {
				account.Address = address
			}
			if account.PublicKey == "" {
				account.PublicKey = publicKey
			}

			session, err := app.connections.Import(cmd.Context(), application.ImportCommand{Kind: kind, Account: account})
			if err != nil {
				return userError(err)
			}

			view := findSession(app, session.Kind)
			if asJSON {
				return writeJSON(cmd, view)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s\n", view.Name, session.Address)
			return err
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Account contract address")
	cmd.Flags().StringVar(&publicKey, "public-key", "", "Public key (derived from the private key when empty)")
	cmd.Flags().BoolVar(&keyStdin, "key-stdin", false, "Read the private key from stdin")
	cmd.Flags().StringVar(&scanned, "scan", "", "Scanned QR payload (hex key or JSON with privateKey)")
	cmd.Flags().BoolVar(&scanStdin, "scan-stdin", false, "Read the scanned QR payload from stdin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	cmd.MarkFlagsMutuallyExclusive("key-stdin", "scan", "scan-stdin")

	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}
