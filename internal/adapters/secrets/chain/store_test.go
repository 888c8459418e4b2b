package chain

import (
	"context"
	"errors"
	"testing"

	passstore "github.com/bnema/starknet-wallet-bridge/internal/adapters/secrets/pass"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	portmocks "github.com/bnema/starknet-wallet-bridge/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "wallet/generic/private-key"

func newTestStore(t *testing.T) (*Store, *portmocks.MockSecretStore, *portmocks.MockSecretStore) {
	t.Helper()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store, err := NewStore(primary, fallback)
	require.NoError(t, err)

	return store, primary, fallback
}

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	store, primary, _ := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("", passstore.ErrUnavailable).Once()
	fallback.EXPECT().Get(mock.Anything, testKey).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetReportsNotFoundWhenNeitherBackendHasIt(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("", domain.ErrSecretNotFound).Once()
	fallback.EXPECT().Get(mock.Anything, testKey).Return("", domain.ErrSecretNotFound).Once()

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreGetReturnsCombinedErrorWhenBothBackendsFail(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("", errors.New("pass failed")).Once()
	fallback.EXPECT().Get(mock.Anything, testKey).Return("", errors.New("file failed")).Once()

	_, err := store.Get(context.Background(), testKey)
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass failed")
	assert.ErrorContains(t, err, "file failed")
}

func TestStorePutFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Put(mock.Anything, testKey, "0xabc").Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Put(mock.Anything, testKey, "0xabc").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), testKey, "0xabc"))
}

func TestStoreDeleteClearsBothBackends(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()
	fallback.EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), testKey))
}

func TestStoreDeleteToleratesMissingPass(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Delete(mock.Anything, testKey).Return(passstore.ErrUnavailable).Once()
	fallback.EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), testKey))
}

func TestStoreGetDoesNotFallbackOnCanceledContextError(t *testing.T) {
	t.Parallel()

	store, primary, _ := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{"", BackendChain, BackendFile, BackendPass} {
		store, err := New(backend, t.TempDir())
		require.NoError(t, err)
		assert.NotNil(t, store)
	}

	_, err := New("vault", t.TempDir())
	require.Error(t, err)
}
