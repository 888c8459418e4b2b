package ports

import (
	"context"
	"math/big"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
)

// ChainReader performs read-only Starknet queries.
type ChainReader interface {
	Call(ctx context.Context, call domain.Call) ([]string, error)
	CallU256(ctx context.Context, call domain.Call) (*big.Int, error)
	TransactionStatus(ctx context.Context, txHash string) (domain.TxStatus, error)
}

// TransactionSubmitter gets calls signed and submitted on behalf of a session
// and returns the transaction hash.
type TransactionSubmitter interface {
	SubmitInvoke(ctx context.Context, session domain.WalletSession, calls []domain.Call) (string, error)
}

type BalanceRefresher interface {
	RefreshBalances(ctx context.Context, address string) (domain.Balances, error)
}

// AddressLocker serializes mutating flows per account address.
type AddressLocker interface {
	Lock(ctx context.Context, address string) (unlock func(), err error)
}
