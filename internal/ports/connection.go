package ports

import (
	"context"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
)

// ConnectionAdapter hands a connection request to a wallet.
type ConnectionAdapter interface {
	Method() domain.ConnectMethod
	Initiate(ctx context.Context, req domain.ConnectRequest) (domain.PendingConnection, error)
}

// PeerDisconnector tears down a remote session on the wallet side.
type PeerDisconnector interface {
	DisconnectPeer(ctx context.Context, session domain.WalletSession) error
}

// TransportEventSink receives pairing relay notifications.
type TransportEventSink interface {
	RouteEvent(ctx context.Context, event domain.TransportEvent)
}

// RequestWaiter lets an adapter wait for a sign or send callback.
type RequestWaiter interface {
	ExpectRequest(id string) (<-chan domain.RequestResult, func())
}

type URLOpener interface {
	CanOpen(ctx context.Context, scheme string) bool
	Open(ctx context.Context, rawURL string) error
}

// AccountImporter connects a wallet directly from user-supplied key material.
type AccountImporter interface {
	Import(ctx context.Context, kind domain.WalletKind, account domain.ImportedAccount) (domain.ConnectedAccount, error)
}
