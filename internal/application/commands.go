package application

import (
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/shopspring/decimal"
)

// ConnectCommand starts a wallet round trip. Method and Timeout fall back to
// the wallet's policy when zero.
type ConnectCommand struct {
	Kind    domain.WalletKind
	Method  domain.ConnectMethod
	Timeout time.Duration
}

type ImportCommand struct {
	Kind    domain.WalletKind
	Account domain.ImportedAccount
}

type DisconnectCommand struct {
	Kind domain.WalletKind
}

type DepositCommand struct {
	Amount decimal.Decimal
}

type WithdrawCommand struct {
	Amount decimal.Decimal
}

type TransferCommand struct {
	Recipient string
	Amount    decimal.Decimal
}
