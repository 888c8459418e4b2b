package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "wallet/generic/private-key"

func TestStorePutUsesPassInsertUnderPrefix(t *testing.T) {
	t.Parallel()

	called := false
	store := &Store{
		prefix: DefaultPrefix,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, []string{"insert", "-m", "-f", "swb/wallet/generic/private-key"}, args)
			assert.Equal(t, "0xabc\n", input)
			return "", "", nil
		},
	}

	require.NoError(t, store.Put(context.Background(), testKey, "0xabc"))
	assert.True(t, called)
}

func TestStoreGetTrimsTrailingNewline(t *testing.T) {
	t.Parallel()

	store := &Store{
		prefix: "custom",
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", "custom/wallet/generic/private-key"}, args)
			assert.Empty(t, input)
			return "0xabc\n", "", nil
		},
	}

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", value)
}

func TestStoreGetMapsMissingEntry(t *testing.T) {
	t.Parallel()

	store := &Store{
		prefix: DefaultPrefix,
		run: func(context.Context, string, ...string) (string, string, error) {
			return "", "Error: swb/wallet/generic/private-key is not in the password store.", errors.New("exit status 1")
		},
	}

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
	require.NoError(t, store.Delete(context.Background(), testKey))
}

func TestStoreGetReturnsClearError(t *testing.T) {
	t.Parallel()

	store := &Store{
		prefix: DefaultPrefix,
		run: func(context.Context, string, ...string) (string, string, error) {
			return "", "gpg: decryption failed", errors.New("exit status 2")
		},
	}

	_, err := store.Get(context.Background(), testKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "pass get")
	assert.ErrorContains(t, err, "gpg: decryption failed")
}
