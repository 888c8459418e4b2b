package application

import (
	"context"
	"fmt"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
)

// SubmitterSet routes an invoke to the submitter for the session's connect
// method: imported keys sign locally, deep-link wallets sign in the app.
type SubmitterSet map[domain.ConnectMethod]ports.TransactionSubmitter

var _ ports.TransactionSubmitter = SubmitterSet(nil)

func (s SubmitterSet) SubmitInvoke(ctx context.Context, session domain.WalletSession, calls []domain.Call) (string, error) {
	if !session.IsConnected() {
		return "", domain.ErrNotConnected
	}
	submitter, ok := s[session.Method]
	if !ok || !session.CanSign {
		return "", fmt.Errorf("%s via %s: %w", session.Kind, session.Method, domain.ErrSigningUnavailable)
	}
	return submitter.SubmitInvoke(ctx, session, calls)
}
