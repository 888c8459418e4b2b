package ports

import (
	"context"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
)

// SessionRepository persists non-secret session fields across processes.
type SessionRepository interface {
	Get(ctx context.Context, kind domain.WalletKind) (domain.WalletSession, error)
	List(ctx context.Context) ([]domain.WalletSession, error)
	Save(ctx context.Context, session domain.WalletSession) error
	Delete(ctx context.Context, kind domain.WalletKind) error
}
