package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingRefresher struct {
	mu        sync.Mutex
	addresses []string
}

func (r *recordingRefresher) RefreshBalances(_ context.Context, address string) (domain.Balances, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addresses = append(r.addresses, address)
	return domain.Balances{Address: address}, nil
}

func (r *recordingRefresher) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.addresses...)
}

func waitHandle(t *testing.T, handle *PendingHandle) (domain.WalletSession, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return handle.Wait(ctx)
}

func TestParseCallback(t *testing.T) {
	t.Parallel()

	approved := true
	rejected := false

	tests := []struct {
		name    string
		raw     string
		want    domain.CallbackPayload
		wantErr error
	}{
		{
			name: "connect with canonical keys",
			raw:  "swb://ready/callback?cid=abc&address=0xABC&publicKey=0x1&name=Ready",
			want: domain.CallbackPayload{
				Action:      domain.CallbackConnect,
				Host:        "ready/callback",
				Correlation: "abc",
				Address:     "0xABC",
				PublicKey:   "0x1",
				Name:        "Ready",
			},
		},
		{
			name: "connect with alias keys",
			raw:  "swb://callback?correlation=abc&account=0x2&public_key=0x3&wallet_name=Braavos&approved=1",
			want: domain.CallbackPayload{
				Action:      domain.CallbackConnect,
				Host:        "callback",
				Correlation: "abc",
				Address:     "0x2",
				PublicKey:   "0x3",
				Name:        "Braavos",
				Approved:    &approved,
			},
		},
		{
			name: "send reply",
			raw:  "swb://send?rid=r-1&txHash=0xfeed&success=true",
			want: domain.CallbackPayload{
				Action:    domain.CallbackSend,
				Host:      "send",
				RequestID: "r-1",
				TxHash:    "0xfeed",
				Approved:  &approved,
			},
		},
		{
			name: "sign reply under wallet host",
			raw:  "swb://argentx/sign?request_id=r-2&signature=0x1,%200x2,&approved=false",
			want: domain.CallbackPayload{
				Action:    domain.CallbackSign,
				Host:      "argentx/sign",
				RequestID: "r-2",
				Signature: []string{"0x1", "0x2"},
				Approved:  &rejected,
			},
		},
		{
			name:    "no scheme",
			raw:     "not a url",
			wantErr: domain.ErrInvalidCallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCallback(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteURLCompletesByCorrelation(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	refresher := &recordingRefresher{}
	router := NewCallbackRouter(registry, nil, nil)
	router.SetBalanceRefresher(refresher)

	handle := beginAwaiting(t, registry, domain.WalletReady, "cid-1", time.Minute)

	err := router.RouteURL(context.Background(), "swb://callback?cid=cid-1&address=0xABC&publicKey=0x1&name=Ready")
	require.NoError(t, err)

	session, err := waitHandle(t, handle)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConnected, session.State)
	assert.Equal(t, "0xABC", session.Address)
	assert.Equal(t, "0x1", session.PublicKey)
	assert.True(t, session.CanSign)
	assert.Equal(t, "0xABC", registry.ActiveAddress())

	router.Wait()
	assert.Equal(t, []string{"0xABC"}, refresher.calls())
}

func TestRouteURLApprovedWithoutAddressFails(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	router := NewCallbackRouter(registry, nil, nil)
	handle := beginAwaiting(t, registry, domain.WalletReady, "cid-1", time.Minute)

	require.NoError(t, router.RouteURL(context.Background(), "swb://callback?cid=cid-1&approved=true"))

	session, err := waitHandle(t, handle)
	require.ErrorIs(t, err, domain.ErrInvalidCallback)
	assert.Equal(t, domain.StateFailed, session.State)
	assert.Empty(t, session.Address)
	assert.False(t, registry.IsConnected())
}

func TestRouteURLRejectedConnect(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	router := NewCallbackRouter(registry, nil, nil)
	handle := beginAwaiting(t, registry, domain.WalletBraavos, "cid-1", time.Minute)

	require.NoError(t, router.RouteURL(context.Background(), "swb://callback?cid=cid-1&error=user%20cancelled"))

	_, err := waitHandle(t, handle)
	require.ErrorIs(t, err, domain.ErrUserRejected)
	assert.Equal(t, "request was rejected in the wallet", domain.UserMessage(err))
}

func TestRouteURLUnknownCorrelationIsDiscarded(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	router := NewCallbackRouter(registry, nil, nil)
	beginAwaiting(t, registry, domain.WalletReady, "cid-1", time.Minute)

	err := router.RouteURL(context.Background(), "swb://callback?cid=other&address=0xABC")
	require.ErrorIs(t, err, domain.ErrNoPendingSession)

	session, ok := registry.Get(domain.WalletReady)
	require.True(t, ok)
	assert.Equal(t, domain.StateAwaitingCallback, session.State)
	assert.Empty(t, registry.ActiveAddress())
}

func TestRouteURLWithoutCorrelationNarrowsByHost(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	router := NewCallbackRouter(registry, nil, nil)
	ready := beginAwaiting(t, registry, domain.WalletReady, "cid-ready", time.Minute)
	beginAwaiting(t, registry, domain.WalletBraavos, "cid-braavos", time.Minute)

	err := router.RouteURL(context.Background(), "swb://callback?address=0x1")
	require.ErrorIs(t, err, domain.ErrNoPendingSession)

	require.NoError(t, router.RouteURL(context.Background(), "swb://ready/callback?address=0x1"))

	session, err := waitHandle(t, ready)
	require.NoError(t, err)
	assert.Equal(t, "0x1", session.Address)

	braavos, ok := registry.Get(domain.WalletBraavos)
	require.True(t, ok)
	assert.Equal(t, domain.StateAwaitingCallback, braavos.State)
}

func TestRouteURLNoPendingSession(t *testing.T) {
	t.Parallel()

	router := NewCallbackRouter(newTestRegistry(t), nil, nil)

	err := router.RouteURL(context.Background(), "swb://callback?address=0x1")
	require.ErrorIs(t, err, domain.ErrNoPendingSession)
}

func TestRouteEventSettleAndReject(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	secrets := mocks.NewMockSecretStore(t)
	secrets.EXPECT().Put(mock.Anything, domain.SessionKeySecretRef(domain.WalletKeplr), "a1b2").Return(nil).Once()
	router := NewCallbackRouter(registry, secrets, nil)

	keplr, err := registry.BeginConnect(context.Background(), domain.WalletKeplr, domain.ConnectWalletConnect, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, registry.AwaitCallback(keplr, domain.PendingConnection{Correlation: "pairing-1"}))

	router.RouteEvent(context.Background(), domain.TransportEvent{
		Kind:       domain.EventSessionSettle,
		Topic:      "pairing-1",
		Account:    domain.ConnectedAccount{Address: "0x7", PeerTopic: "session-1"},
		SessionKey: "a1b2",
	})

	session, err := waitHandle(t, keplr)
	require.NoError(t, err)
	assert.Equal(t, "0x7", session.Address)
	assert.Equal(t, "session-1", session.PeerTopic)
	assert.False(t, session.CanSign)

	generic, err := registry.BeginConnect(context.Background(), domain.WalletGeneric, domain.ConnectWalletConnect, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, registry.AwaitCallback(generic, domain.PendingConnection{Correlation: "pairing-2"}))

	router.RouteEvent(context.Background(), domain.TransportEvent{Kind: domain.EventSessionReject, Topic: "pairing-2", Reason: "declined"})

	_, err = waitHandle(t, generic)
	require.ErrorIs(t, err, domain.ErrUserRejected)
}

func TestRouteEventSettleWithoutAccountIsInvalidCallback(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	router := NewCallbackRouter(registry, mocks.NewMockSecretStore(t), nil)

	handle, err := registry.BeginConnect(context.Background(), domain.WalletKeplr, domain.ConnectWalletConnect, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, registry.AwaitCallback(handle, domain.PendingConnection{Correlation: "pairing-1"}))

	router.RouteEvent(context.Background(), domain.TransportEvent{
		Kind:   domain.EventSessionInvalid,
		Topic:  "pairing-1",
		Reason: domain.ErrMissingAddress.Error(),
	})

	_, err = waitHandle(t, handle)
	require.ErrorIs(t, err, domain.ErrInvalidCallback)
	assert.NotErrorIs(t, err, domain.ErrUserRejected)

	session, ok := registry.Get(domain.WalletKeplr)
	require.True(t, ok)
	assert.Equal(t, domain.StateFailed, session.State)
	assert.False(t, registry.IsConnected())
}

func TestRouteEventLateSettleKeepsStoredKey(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	// No Put expected: a settle for a resolved attempt must not touch the key.
	router := NewCallbackRouter(registry, mocks.NewMockSecretStore(t), nil)

	handle, err := registry.BeginConnect(context.Background(), domain.WalletKeplr, domain.ConnectWalletConnect, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, registry.AwaitCallback(handle, domain.PendingConnection{Correlation: "pairing-1"}))
	require.NoError(t, registry.Fail(handle, domain.ErrConnectTimeout))

	router.RouteEvent(context.Background(), domain.TransportEvent{
		Kind:       domain.EventSessionSettle,
		Topic:      "pairing-1",
		Account:    domain.ConnectedAccount{Address: "0x7", PeerTopic: "session-late"},
		SessionKey: "c3d4",
	})

	_, ok := registry.FindByPeerTopic("session-late")
	assert.False(t, ok)
	assert.False(t, registry.IsConnected())
}

func TestRouteEventDeleteDisconnectsAndForgetsKey(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	secrets := mocks.NewMockSecretStore(t)
	secrets.EXPECT().Delete(mock.Anything, domain.SessionKeySecretRef(domain.WalletKeplr)).Return(nil).Once()
	router := NewCallbackRouter(registry, secrets, nil)

	handle, err := registry.BeginConnect(context.Background(), domain.WalletKeplr, domain.ConnectWalletConnect, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, registry.AwaitCallback(handle, domain.PendingConnection{Correlation: "pairing-1"}))
	_, err = registry.Complete(handle, domain.ConnectedAccount{Address: "0x7", PeerTopic: "session-1"})
	require.NoError(t, err)

	router.RouteEvent(context.Background(), domain.TransportEvent{Kind: domain.EventSessionDelete, Topic: "unknown"})
	assert.True(t, registry.IsConnected())

	router.RouteEvent(context.Background(), domain.TransportEvent{Kind: domain.EventSessionDelete, Topic: "session-1"})

	session, ok := registry.Get(domain.WalletKeplr)
	require.True(t, ok)
	assert.Equal(t, domain.StateDisconnected, session.State)
	assert.False(t, registry.IsConnected())
}

func TestExpectRequestDeliversSendReply(t *testing.T) {
	t.Parallel()

	router := NewCallbackRouter(newTestRegistry(t), nil, nil)

	replies, release := router.ExpectRequest("r-1")
	defer release()

	require.NoError(t, router.RouteURL(context.Background(), "swb://send?rid=r-1&transaction_hash=0xfeed"))

	select {
	case result := <-replies:
		require.NoError(t, result.Err)
		assert.Equal(t, "0xfeed", result.TxHash)
	case <-time.After(time.Second):
		t.Fatal("request reply was not delivered")
	}

	err := router.RouteURL(context.Background(), "swb://send?rid=r-1&transaction_hash=0xfeed")
	require.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestExpectRequestRejectedReply(t *testing.T) {
	t.Parallel()

	router := NewCallbackRouter(newTestRegistry(t), nil, nil)

	replies, release := router.ExpectRequest("r-2")
	defer release()

	require.NoError(t, router.RouteURL(context.Background(), "swb://send?rid=r-2&approved=false"))

	result := <-replies
	require.ErrorIs(t, result.Err, domain.ErrUserRejected)
}

func TestExpectRequestReleaseDropsReply(t *testing.T) {
	t.Parallel()

	router := NewCallbackRouter(newTestRegistry(t), nil, nil)

	_, release := router.ExpectRequest("r-3")
	release()

	err := router.RouteURL(context.Background(), "swb://sign?rid=r-3&signature=0x1")
	require.ErrorIs(t, err, domain.ErrRequestNotFound)
}
