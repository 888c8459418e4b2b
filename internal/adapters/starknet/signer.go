package starknet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/curve"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/sirupsen/logrus"
)

// invokePrefix is the short string "invoke".
var invokePrefix = new(big.Int).SetBytes([]byte("invoke"))

type invoker interface {
	Nonce(ctx context.Context, address string) (*big.Int, error)
	AddInvokeTransaction(ctx context.Context, tx InvokeTransaction) (string, error)
}

var _ ports.TransactionSubmitter = (*KeySigner)(nil)

// KeySigner signs INVOKE v1 transactions with a key held in the SecretStore.
type KeySigner struct {
	client  invoker
	secrets ports.SecretStore
	chainID *big.Int
	maxFee  *big.Int
	logger  logrus.FieldLogger
}

func NewKeySigner(client invoker, secrets ports.SecretStore, chainID string, maxFee *big.Int, logger logrus.FieldLogger) *KeySigner {
	if logger == nil {
		logger = logging.Discard()
	}
	if maxFee == nil {
		maxFee = new(big.Int)
	}

	return &KeySigner{
		client:  client,
		secrets: secrets,
		chainID: ShortString(chainID),
		maxFee:  new(big.Int).Set(maxFee),
		logger:  logger,
	}
}

func (s *KeySigner) SubmitInvoke(ctx context.Context, session domain.WalletSession, calls []domain.Call) (string, error) {
	if !session.IsConnected() {
		return "", domain.ErrNotConnected
	}
	if !session.CanSign {
		return "", domain.ErrSigningUnavailable
	}
	if session.Address == "" {
		return "", fmt.Errorf("sign for %s: %w", session.Kind, domain.ErrMissingAddress)
	}

	rawKey, err := s.secrets.Get(ctx, domain.PrivateKeySecretRef(session.Kind))
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return "", fmt.Errorf("no key stored for %s: %w", session.Kind, domain.ErrSigningUnavailable)
		}
		return "", fmt.Errorf("load signing key: %w", err)
	}
	privateKey, err := domain.ParseUint(rawKey)
	if err != nil {
		return "", domain.ErrInvalidPrivateKey
	}

	calldata, err := ExecuteCalldata(calls)
	if err != nil {
		return "", err
	}
	sender, err := domain.ParseUint(session.Address)
	if err != nil {
		return "", fmt.Errorf("sender %q: %w", session.Address, domain.ErrInvalidAddress)
	}

	nonce, err := s.client.Nonce(ctx, session.Address)
	if err != nil {
		return "", err
	}

	hash := InvokeV1Hash(sender, calldata, s.maxFee, s.chainID, nonce)
	r, sig, err := curve.Curve.Sign(hash, privateKey)
	if err != nil {
		return "", fmt.Errorf("sign invoke: %w", err)
	}

	txHash, err := s.client.AddInvokeTransaction(ctx, InvokeTransaction{
		SenderAddress: session.Address,
		Calldata:      hexAll(calldata),
		MaxFee:        s.maxFee,
		Nonce:         nonce,
		Signature:     []string{domain.HexFelt(r), domain.HexFelt(sig)},
	})
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"wallet":  session.Kind,
		"calls":   len(calls),
		"tx_hash": txHash,
	}).Info("invoke submitted")

	return txHash, nil
}

// ExecuteCalldata encodes calls for a Cairo 1 account __execute__:
// [n_calls, (to, selector, len, data...)...].
func ExecuteCalldata(calls []domain.Call) ([]*big.Int, error) {
	out := []*big.Int{big.NewInt(int64(len(calls)))}
	for _, call := range calls {
		to, err := domain.ParseUint(call.ContractAddress)
		if err != nil {
			return nil, fmt.Errorf("call %s contract %q: %w", call.Entrypoint, call.ContractAddress, domain.ErrInvalidAddress)
		}
		selector, err := domain.ParseUint(Selector(call.Entrypoint))
		if err != nil {
			return nil, fmt.Errorf("selector %s: %w", call.Entrypoint, err)
		}

		out = append(out, to, selector, big.NewInt(int64(len(call.Calldata))))
		for _, word := range call.Calldata {
			value, err := domain.ParseUint(word)
			if err != nil {
				return nil, fmt.Errorf("call %s calldata %q: %w", call.Entrypoint, word, err)
			}
			out = append(out, value)
		}
	}
	return out, nil
}

// InvokeV1Hash is the Pedersen transaction hash of an INVOKE v1.
func InvokeV1Hash(sender *big.Int, calldata []*big.Int, maxFee, chainID, nonce *big.Int) *big.Int {
	calldataHash := crypto.PedersenArray(toFelts(calldata)...)

	hash := crypto.PedersenArray(
		toFelt(invokePrefix),
		toFelt(big.NewInt(1)),
		toFelt(sender),
		new(felt.Felt),
		calldataHash,
		toFelt(maxFee),
		toFelt(chainID),
		toFelt(nonce),
	)
	return hash.BigInt(new(big.Int))
}

// ShortString encodes an ASCII short string such as SN_SEPOLIA as a felt.
func ShortString(s string) *big.Int {
	return new(big.Int).SetBytes([]byte(s))
}

// PublicKey derives the Stark public key (x coordinate) of privateKey.
func PublicKey(privateKey string) (string, error) {
	key, err := domain.ParseUint(privateKey)
	if err != nil {
		return "", domain.ErrInvalidPrivateKey
	}
	x, _, err := curve.Curve.PrivateToPoint(key)
	if err != nil {
		return "", fmt.Errorf("derive public key: %w", err)
	}
	return domain.HexFelt(x), nil
}

func toFelt(value *big.Int) *felt.Felt {
	return new(felt.Felt).SetBytes(value.Bytes())
}

func toFelts(values []*big.Int) []*felt.Felt {
	out := make([]*felt.Felt, len(values))
	for i, value := range values {
		out[i] = toFelt(value)
	}
	return out
}

func hexAll(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = domain.HexFelt(value)
	}
	return out
}
