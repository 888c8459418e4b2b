package manual

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// DeriveFunc returns the public key for a private key.
type DeriveFunc func(privateKey string) (string, error)

// Adapter connects from a pasted or scanned private key. The key goes to the
// SecretStore and never into the session.
type Adapter struct {
	secrets ports.SecretStore
	derive  DeriveFunc
	logger  logrus.FieldLogger
}

var _ ports.AccountImporter = (*Adapter)(nil)

func NewAdapter(secrets ports.SecretStore, derive DeriveFunc, logger logrus.FieldLogger) *Adapter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Adapter{secrets: secrets, derive: derive, logger: logger}
}

func (a *Adapter) Method() domain.ConnectMethod {
	return domain.ConnectManualImport
}

func (a *Adapter) Import(ctx context.Context, kind domain.WalletKind, account domain.ImportedAccount) (domain.ConnectedAccount, error) {
	key, err := domain.ValidatePrivateKey(account.PrivateKey)
	if err != nil {
		return domain.ConnectedAccount{}, err
	}

	var address string
	if strings.TrimSpace(account.Address) != "" {
		address, err = domain.NormalizeAddress(account.Address)
		if err != nil {
			return domain.ConnectedAccount{}, err
		}
	}

	publicKey := strings.ToLower(strings.TrimSpace(account.PublicKey))
	if publicKey == "" && a.derive != nil {
		publicKey, err = a.derive(key)
		if err != nil {
			return domain.ConnectedAccount{}, fmt.Errorf("derive public key: %w", err)
		}
	}

	if err := a.secrets.Put(ctx, domain.PrivateKeySecretRef(kind), key); err != nil {
		return domain.ConnectedAccount{}, fmt.Errorf("store private key: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"wallet":      kind,
		"has_address": address != "",
	}).Info("key imported")

	return domain.ConnectedAccount{
		Address:   address,
		PublicKey: publicKey,
		Name:      kind.DisplayName(),
		CanSign:   true,
	}, nil
}

// ParseScanned reads a QR payload that is either a bare hex key or a JSON
// object with privateKey and optional address and publicKey.
func ParseScanned(payload string) (domain.ImportedAccount, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return domain.ImportedAccount{}, domain.ErrInvalidPrivateKey
	}

	if !strings.HasPrefix(trimmed, "{") {
		return domain.ImportedAccount{PrivateKey: trimmed}, nil
	}
	if !gjson.Valid(trimmed) {
		return domain.ImportedAccount{}, fmt.Errorf("scanned payload is not valid json: %w", domain.ErrInvalidPrivateKey)
	}

	parsed := gjson.Parse(trimmed)
	account := domain.ImportedAccount{
		PrivateKey: firstString(parsed, "privateKey", "private_key"),
		Address:    firstString(parsed, "address", "account"),
		PublicKey:  firstString(parsed, "publicKey", "public_key"),
	}
	if account.PrivateKey == "" {
		return domain.ImportedAccount{}, fmt.Errorf("scanned payload has no privateKey: %w", domain.ErrInvalidPrivateKey)
	}
	return account, nil
}

func firstString(parsed gjson.Result, paths ...string) string {
	for _, path := range paths {
		if value := parsed.Get(path); value.Exists() && value.String() != "" {
			return value.String()
		}
	}
	return ""
}
