package application

import (
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/shopspring/decimal"
)

// SessionView is what the sessions listing shows for one wallet.
type SessionView struct {
	Kind          domain.WalletKind
	Name          string
	Method        domain.ConnectMethod
	State         domain.SessionState
	Address       string
	CanSign       bool
	Active        bool
	ConnectedAt   time.Time
	UpdatedAt     time.Time
	FailureReason string
}

type BalancesView struct {
	Address       string
	WalletBalance decimal.Decimal
	VaultBalance  decimal.Decimal
	FetchedAt     time.Time
}

func newSessionView(session domain.WalletSession, active domain.WalletKind) SessionView {
	name := session.Name
	if name == "" {
		name = session.Kind.DisplayName()
	}
	state := session.State
	if state == "" {
		state = domain.StateIdle
	}

	return SessionView{
		Kind:          session.Kind,
		Name:          name,
		Method:        session.Method,
		State:         state,
		Address:       session.Address,
		CanSign:       session.CanSign,
		Active:        session.IsConnected() && session.Kind == active,
		ConnectedAt:   session.ConnectedAt,
		UpdatedAt:     session.UpdatedAt,
		FailureReason: session.FailureReason,
	}
}

func newBalancesView(b domain.Balances) BalancesView {
	return BalancesView{
		Address:       b.Address,
		WalletBalance: b.WalletBalance,
		VaultBalance:  b.VaultBalance,
		FetchedAt:     b.FetchedAt,
	}
}
