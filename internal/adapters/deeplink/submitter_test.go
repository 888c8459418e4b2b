package deeplink

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeWaiter struct {
	mu       sync.Mutex
	channels map[string]chan domain.RequestResult
	released []string
}

func newFakeWaiter() *fakeWaiter {
	return &fakeWaiter{channels: map[string]chan domain.RequestResult{}}
}

func (w *fakeWaiter) ExpectRequest(id string) (<-chan domain.RequestResult, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan domain.RequestResult, 1)
	w.channels[id] = ch
	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.released = append(w.released, id)
	}
}

func (w *fakeWaiter) deliver(id string, result domain.RequestResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.channels[id] <- result
}

func connectedReady() domain.WalletSession {
	return domain.WalletSession{
		Kind:    domain.WalletReady,
		Method:  domain.ConnectDeepLink,
		State:   domain.StateConnected,
		Address: "0xabc",
		CanSign: true,
	}
}

func TestSubmitInvokeRoundTrip(t *testing.T) {
	t.Parallel()

	waiter := newFakeWaiter()
	opener := mocks.NewMockURLOpener(t)
	opener.EXPECT().CanOpen(mock.Anything, "readywallet").Return(true).Once()
	opener.EXPECT().Open(mock.Anything, mock.Anything).Run(func(_ context.Context, rawURL string) {
		parsed, err := url.Parse(rawURL)
		require.NoError(t, err)
		assert.Equal(t, "send", parsed.Host)
		assert.Equal(t, "rid-1", parsed.Query().Get("rid"))
		assert.Equal(t, "swb://send?rid=rid-1", parsed.Query().Get("callback"))

		var req sendRequest
		require.NoError(t, json.Unmarshal([]byte(parsed.Query().Get("request")), &req))
		assert.Equal(t, "0xabc", req.Address)
		require.Len(t, req.Calls, 1)
		assert.Equal(t, "deposit", req.Calls[0].Entrypoint)

		go waiter.deliver("rid-1", domain.RequestResult{TxHash: "0xfeed"})
	}).Return(nil).Once()

	submitter := NewSubmitter(testWallets(), opener, waiter, SubmitterOptions{AppScheme: "swb", DappName: "Vault App"})
	submitter.newID = func() string { return "rid-1" }

	txHash, err := submitter.SubmitInvoke(context.Background(), connectedReady(), []domain.Call{
		{ContractAddress: "0xvault", Entrypoint: "deposit", Calldata: []string{"0x1", "0x0"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", txHash)
	assert.Equal(t, []string{"rid-1"}, waiter.released)
}

func TestSubmitInvokeWalletRejects(t *testing.T) {
	t.Parallel()

	waiter := newFakeWaiter()
	opener := mocks.NewMockURLOpener(t)
	opener.EXPECT().CanOpen(mock.Anything, mock.Anything).Return(true).Once()
	opener.EXPECT().Open(mock.Anything, mock.Anything).Run(func(context.Context, string) {
		go waiter.deliver("rid-1", domain.RequestResult{Err: domain.ErrUserRejected})
	}).Return(nil).Once()

	submitter := NewSubmitter(testWallets(), opener, waiter, SubmitterOptions{AppScheme: "swb"})
	submitter.newID = func() string { return "rid-1" }

	_, err := submitter.SubmitInvoke(context.Background(), connectedReady(), nil)
	require.ErrorIs(t, err, domain.ErrUserRejected)
}

func TestSubmitInvokeTimesOutAsStatusUnknown(t *testing.T) {
	t.Parallel()

	opener := mocks.NewMockURLOpener(t)
	opener.EXPECT().CanOpen(mock.Anything, mock.Anything).Return(true).Once()
	opener.EXPECT().Open(mock.Anything, mock.Anything).Return(nil).Once()

	submitter := NewSubmitter(testWallets(), opener, newFakeWaiter(), SubmitterOptions{AppScheme: "swb", Timeout: 20 * time.Millisecond})
	_, err := submitter.SubmitInvoke(context.Background(), connectedReady(), nil)
	require.ErrorIs(t, err, domain.ErrStatusUnknown)
}

func TestSubmitInvokeRequiresSigningSession(t *testing.T) {
	t.Parallel()

	submitter := NewSubmitter(testWallets(), mocks.NewMockURLOpener(t), newFakeWaiter(), SubmitterOptions{})

	session := connectedReady()
	session.CanSign = false
	_, err := submitter.SubmitInvoke(context.Background(), session, nil)
	require.ErrorIs(t, err, domain.ErrSigningUnavailable)

	keplr := connectedReady()
	keplr.Kind = domain.WalletKeplr
	_, err = submitter.SubmitInvoke(context.Background(), keplr, nil)
	require.ErrorIs(t, err, domain.ErrSigningUnavailable)

	_, err = submitter.SubmitInvoke(context.Background(), domain.WalletSession{Kind: domain.WalletReady}, nil)
	require.ErrorIs(t, err, domain.ErrNotConnected)
}
