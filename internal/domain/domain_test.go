package domain

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletSessionHappyPathTransitions(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	s := NewWalletSession(WalletArgentX)

	require.NoError(t, s.Begin(ConnectDeepLink, now.Add(time.Minute), now))
	assert.Equal(t, StateAwaitingWalletOpen, s.State)
	assert.True(t, s.IsPending())

	require.NoError(t, s.AwaitCallback("cid-1", now))
	assert.Equal(t, StateAwaitingCallback, s.State)
	assert.Equal(t, "cid-1", s.Correlation)

	require.NoError(t, s.Connect(ConnectedAccount{Address: "0xabc", PublicKey: "0x1", CanSign: true}, now))
	assert.Equal(t, StateConnected, s.State)
	assert.Equal(t, "0xabc", s.Address)
	assert.Empty(t, s.Correlation)
	assert.True(t, s.CanSign)

	require.NoError(t, s.Disconnect(now))
	assert.Equal(t, StateDisconnected, s.State)
	assert.Empty(t, s.Address)
	assert.False(t, s.CanSign)
}

func TestWalletSessionBeginRejectsWhilePending(t *testing.T) {
	now := time.Now()
	s := NewWalletSession(WalletBraavos)
	require.NoError(t, s.Begin(ConnectWalletConnect, now.Add(time.Minute), now))
	require.NoError(t, s.AwaitCallback("topic-1", now))

	err := s.Begin(ConnectWalletConnect, now.Add(time.Minute), now)
	require.ErrorIs(t, err, ErrAlreadyConnecting)
	assert.Equal(t, "topic-1", s.Correlation)
}

func TestWalletSessionBeginAllowedAfterTerminalStates(t *testing.T) {
	now := time.Now()
	s := NewWalletSession(WalletReady)
	require.NoError(t, s.Begin(ConnectDeepLink, now.Add(time.Minute), now))
	require.NoError(t, s.Fail(ErrConnectTimeout, now))
	assert.Equal(t, StateFailed, s.State)
	assert.NotEmpty(t, s.FailureReason)

	require.NoError(t, s.Begin(ConnectDeepLink, now.Add(time.Minute), now))
	assert.Equal(t, StateAwaitingWalletOpen, s.State)
	assert.Empty(t, s.FailureReason)
}

func TestWalletSessionConnectRequiresAddressExceptManualImport(t *testing.T) {
	now := time.Now()

	s := NewWalletSession(WalletArgentX)
	require.NoError(t, s.Begin(ConnectDeepLink, time.Time{}, now))
	require.NoError(t, s.AwaitCallback("cid", now))
	require.ErrorIs(t, s.Connect(ConnectedAccount{}, now), ErrMissingAddress)
	assert.Equal(t, StateAwaitingCallback, s.State)

	manual := NewWalletSession(WalletGeneric)
	require.NoError(t, manual.Begin(ConnectManualImport, time.Time{}, now))
	require.NoError(t, manual.Connect(ConnectedAccount{CanSign: true}, now))
	assert.True(t, manual.IsConnected())
}

func TestWalletSessionRejectsInvalidTransitions(t *testing.T) {
	now := time.Now()
	s := NewWalletSession(WalletKeplr)

	require.ErrorIs(t, s.Disconnect(now), ErrInvalidTransition)
	require.ErrorIs(t, s.Fail(ErrUserRejected, now), ErrInvalidTransition)
	require.ErrorIs(t, s.AwaitCallback("x", now), ErrInvalidTransition)
}

func TestWalletSessionExpiry(t *testing.T) {
	now := time.Now()
	s := NewWalletSession(WalletArgentX)
	require.NoError(t, s.Begin(ConnectDeepLink, now.Add(30*time.Second), now))

	assert.False(t, s.IsExpired(now.Add(29*time.Second)))
	assert.True(t, s.IsExpired(now.Add(30*time.Second)))
}

func TestAmountRoundTripSixDecimals(t *testing.T) {
	tests := []string{
		"0",
		"0.000001",
		"1",
		"3",
		"10.5",
		"123456.789012",
		"999999999999.999999",
	}

	for _, raw := range tests {
		raw := raw
		t.Run(raw, func(t *testing.T) {
			t.Parallel()

			amount, err := ParseAmount(raw)
			require.NoError(t, err)

			units, err := ToChainUnits(amount)
			require.NoError(t, err)

			back, err := FromChainUnits(units)
			require.NoError(t, err)
			assert.True(t, amount.Equal(back), "got %s want %s", back, amount)
		})
	}
}

func TestAmountRoundTripGenerated(t *testing.T) {
	t.Parallel()

	for i := int64(0); i < 500; i++ {
		whole := (i * 7_919_993) % 1_000_000_000_000
		frac := (i * 104_729) % 1_000_000
		amount, err := decimal.NewFromString(fmt.Sprintf("%d.%06d", whole, frac))
		require.NoError(t, err)

		units, err := ToChainUnits(amount)
		require.NoError(t, err)
		back, err := FromChainUnits(units)
		require.NoError(t, err)
		require.True(t, amount.Equal(back), "round trip %s -> %s -> %s", amount, units, back)
	}
}

func TestToChainUnitsScalesAndTruncates(t *testing.T) {
	t.Parallel()

	units, err := ToChainUnits(decimal.RequireFromString("3"))
	require.NoError(t, err)
	assert.Equal(t, "3000000000000000000", units)

	units, err = ToChainUnits(decimal.RequireFromString("0.0000000000000000019"))
	require.NoError(t, err)
	assert.Equal(t, "1", units)

	_, err = ToChainUnits(decimal.RequireFromString("-1"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFromChainUnitsAcceptsHexAndDecimal(t *testing.T) {
	t.Parallel()

	fromHex, err := FromChainUnits("0x29a2241af62c0000")
	require.NoError(t, err)
	assert.Equal(t, "3", fromHex.String())

	fromDec, err := FromChainUnits("500000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "0.5", fromDec.String())

	zero, err := FromChainUnits("0x")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = FromChainUnits("0xzz")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestU256SplitJoin(t *testing.T) {
	t.Parallel()

	value, ok := new(big.Int).SetString("340282366920938463463374607431768211457", 10) // 2^128 + 1
	require.True(t, ok)

	low, high, err := SplitU256(value)
	require.NoError(t, err)
	assert.Equal(t, int64(1), low.Int64())
	assert.Equal(t, int64(1), high.Int64())
	assert.Equal(t, 0, JoinU256(low, high).Cmp(value))

	calldata, err := U256Calldata(big.NewInt(255))
	require.NoError(t, err)
	assert.Equal(t, []string{"0xff", "0x0"}, calldata)
}

func TestCallbackOutcome(t *testing.T) {
	t.Parallel()

	yes := true
	no := false
	tests := []struct {
		name    string
		payload CallbackPayload
		wantErr error
	}{
		{name: "address", payload: CallbackPayload{Address: "0xabc"}},
		{name: "approved without address", payload: CallbackPayload{Approved: &yes}, wantErr: ErrInvalidCallback},
		{name: "empty", payload: CallbackPayload{}, wantErr: ErrInvalidCallback},
		{name: "explicit decline", payload: CallbackPayload{Approved: &no}, wantErr: ErrUserRejected},
		{name: "error wins over address", payload: CallbackPayload{Address: "0xabc", Error: "denied"}, wantErr: ErrUserRejected},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			account, err := tc.payload.Outcome()
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "0xabc", account.Address)
		})
	}
}

func TestUserMessageConfirmationTimeoutIsNotFailure(t *testing.T) {
	t.Parallel()

	err := &OperationError{Step: StepAwaitConfirmation, TxHash: "0x123", Err: ErrConfirmationTimeout}
	msg := UserMessage(fmt.Errorf("deposit: %w", err))

	assert.Contains(t, msg, "status unknown, check explorer")
	assert.Contains(t, msg, "0x123")
	assert.NotContains(t, msg, "failed")
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
}

func TestNormalizeAddressAndPrivateKey(t *testing.T) {
	t.Parallel()

	addr, err := NormalizeAddress("0x000ABC")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", addr)

	_, err = NormalizeAddress("abc")
	require.ErrorIs(t, err, ErrInvalidAddress)
	_, err = NormalizeAddress("0x0")
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = ValidatePrivateKey("0x1234")
	require.ErrorIs(t, err, ErrInvalidPrivateKey)
	key, err := ValidatePrivateKey("0x0123456789abcdef0123456789ABCDEF0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, "0x0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", key)
}

func TestParseWalletKindAliases(t *testing.T) {
	t.Parallel()

	kind, err := ParseWalletKind("Argent")
	require.NoError(t, err)
	assert.Equal(t, WalletArgentX, kind)

	kind, err = ParseWalletKind("braavos")
	require.NoError(t, err)
	assert.Equal(t, WalletBraavos, kind)

	_, err = ParseWalletKind("metamask")
	require.Error(t, err)
}
