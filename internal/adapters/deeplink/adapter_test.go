package deeplink

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/config"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testWallets() map[domain.WalletKind]config.WalletProfile {
	return map[domain.WalletKind]config.WalletProfile{
		domain.WalletReady: {
			Schemes:    []string{"readywallet", "ready", "argent"},
			InstallURL: "https://apps.apple.com/app/ready-wallet/id6504062205",
			SendAction: "send",
		},
		domain.WalletKeplr: {Schemes: []string{"keplrwallet"}},
	}
}

func TestInitiateOpensFirstAvailableScheme(t *testing.T) {
	t.Parallel()

	opener := mocks.NewMockURLOpener(t)
	opener.EXPECT().CanOpen(mock.Anything, "readywallet").Return(false).Once()
	opener.EXPECT().CanOpen(mock.Anything, "ready").Return(true).Once()

	var opened string
	opener.EXPECT().Open(mock.Anything, mock.Anything).Run(func(_ context.Context, rawURL string) {
		opened = rawURL
	}).Return(nil).Once()

	adapter := NewAdapter(testWallets(), opener, "Vault App", "SN_SEPOLIA", nil)
	adapter.newID = func() string { return "cid-1" }

	expires := time.Now().Add(30 * time.Second)
	pending, err := adapter.Initiate(context.Background(), domain.ConnectRequest{
		Kind:        domain.WalletReady,
		Method:      domain.ConnectDeepLink,
		ExpiresAt:   expires,
		CallbackURL: "swb://ready/callback",
	})
	require.NoError(t, err)

	assert.Equal(t, "cid-1", pending.Correlation)
	assert.Equal(t, expires, pending.ExpiresAt)
	assert.True(t, pending.CanSign)
	assert.Equal(t, opened, pending.DeepLink)

	parsed, err := url.Parse(opened)
	require.NoError(t, err)
	assert.Equal(t, "ready", parsed.Scheme)
	assert.Equal(t, "connect", parsed.Host)
	assert.Equal(t, "Vault App", parsed.Query().Get("dappName"))
	assert.Equal(t, "swb://ready/callback", parsed.Query().Get("callback"))
	assert.Equal(t, "cid-1", parsed.Query().Get("cid"))
	assert.Equal(t, "SN_SEPOLIA", parsed.Query().Get("network"))
	assert.NotContains(t, opened, " ")
}

func TestInitiateFallsBackToInstallPage(t *testing.T) {
	t.Parallel()

	opener := mocks.NewMockURLOpener(t)
	opener.EXPECT().CanOpen(mock.Anything, mock.Anything).Return(false).Times(3)
	opener.EXPECT().Open(mock.Anything, "https://apps.apple.com/app/ready-wallet/id6504062205").Return(nil).Once()

	adapter := NewAdapter(testWallets(), opener, "Vault App", "", nil)
	_, err := adapter.Initiate(context.Background(), domain.ConnectRequest{Kind: domain.WalletReady})
	require.ErrorIs(t, err, domain.ErrWalletUnavailable)
}

func TestInitiateTriesNextSchemeWhenOpenFails(t *testing.T) {
	t.Parallel()

	opener := mocks.NewMockURLOpener(t)
	opener.EXPECT().CanOpen(mock.Anything, mock.Anything).Return(true).Twice()
	opener.EXPECT().Open(mock.Anything, mock.MatchedBy(func(raw string) bool {
		return strings.HasPrefix(raw, "readywallet://")
	})).Return(errors.New("no handler")).Once()
	opener.EXPECT().Open(mock.Anything, mock.MatchedBy(func(raw string) bool {
		return strings.HasPrefix(raw, "ready://")
	})).Return(nil).Once()

	adapter := NewAdapter(testWallets(), opener, "Vault App", "", nil)
	pending, err := adapter.Initiate(context.Background(), domain.ConnectRequest{Kind: domain.WalletReady})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pending.DeepLink, "ready://connect?"))
}

func TestInitiateUnknownWallet(t *testing.T) {
	t.Parallel()

	adapter := NewAdapter(testWallets(), mocks.NewMockURLOpener(t), "Vault App", "", nil)
	_, err := adapter.Initiate(context.Background(), domain.ConnectRequest{Kind: domain.WalletBraavos})
	require.ErrorIs(t, err, domain.ErrWalletUnavailable)
	assert.Equal(t, domain.ConnectDeepLink, adapter.Method())
}
