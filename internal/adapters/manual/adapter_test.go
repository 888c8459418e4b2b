package manual

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "0x0123456789ABCDEF0123456789abcdef"

func TestImportStoresKeyAndConnectsWithSigning(t *testing.T) {
	t.Parallel()

	secrets := mocks.NewMockSecretStore(t)
	secrets.EXPECT().Put(mock.Anything, "wallet/generic/private-key", "0x0123456789abcdef0123456789abcdef").Return(nil).Once()

	adapter := NewAdapter(secrets, func(key string) (string, error) {
		assert.Equal(t, "0x0123456789abcdef0123456789abcdef", key)
		return "0xpub", nil
	}, nil)

	account, err := adapter.Import(context.Background(), domain.WalletGeneric, domain.ImportedAccount{
		PrivateKey: testKey,
		Address:    "0x00ABC",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", account.Address)
	assert.Equal(t, "0xpub", account.PublicKey)
	assert.True(t, account.CanSign)
	assert.Equal(t, domain.ConnectManualImport, adapter.Method())
}

func TestImportWithoutAddressKeepsProvidedPublicKey(t *testing.T) {
	t.Parallel()

	secrets := mocks.NewMockSecretStore(t)
	secrets.EXPECT().Put(mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	adapter := NewAdapter(secrets, func(string) (string, error) {
		t.Error("derive should not be called")
		return "", nil
	}, nil)

	account, err := adapter.Import(context.Background(), domain.WalletArgentX, domain.ImportedAccount{
		PrivateKey: testKey,
		PublicKey:  "0xBEEF",
	})
	require.NoError(t, err)
	assert.Empty(t, account.Address)
	assert.Equal(t, "0xbeef", account.PublicKey)
}

func TestImportRejectsBadInput(t *testing.T) {
	t.Parallel()

	adapter := NewAdapter(mocks.NewMockSecretStore(t), nil, nil)

	_, err := adapter.Import(context.Background(), domain.WalletGeneric, domain.ImportedAccount{PrivateKey: "0x12"})
	require.ErrorIs(t, err, domain.ErrInvalidPrivateKey)

	_, err = adapter.Import(context.Background(), domain.WalletGeneric, domain.ImportedAccount{PrivateKey: testKey, Address: "abc"})
	require.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestImportSurfacesSecretStoreFailure(t *testing.T) {
	t.Parallel()

	secrets := mocks.NewMockSecretStore(t)
	secrets.EXPECT().Put(mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	adapter := NewAdapter(secrets, nil, nil)
	_, err := adapter.Import(context.Background(), domain.WalletGeneric, domain.ImportedAccount{PrivateKey: testKey})
	require.ErrorContains(t, err, "disk full")
}

func TestParseScanned(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    domain.ImportedAccount
		wantErr bool
	}{
		{name: "bare key", payload: "  " + testKey + "\n", want: domain.ImportedAccount{PrivateKey: testKey}},
		{name: "json", payload: `{"privateKey":"0x1","address":"0xabc","publicKey":"0x2"}`, want: domain.ImportedAccount{PrivateKey: "0x1", Address: "0xabc", PublicKey: "0x2"}},
		{name: "snake case", payload: `{"private_key":"0x1","account":"0xabc"}`, want: domain.ImportedAccount{PrivateKey: "0x1", Address: "0xabc"}},
		{name: "json without key", payload: `{"address":"0xabc"}`, wantErr: true},
		{name: "broken json", payload: `{"privateKey":`, wantErr: true},
		{name: "empty", payload: "  ", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseScanned(tc.payload)
			if tc.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidPrivateKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
