package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/starknet-wallet-bridge/internal/adapters/secrets/file"
	passstore "github.com/bnema/starknet-wallet-bridge/internal/adapters/secrets/pass"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
)

const (
	BackendChain = "chain"
	BackendFile  = "file"
	BackendPass  = "pass"
)

// Store writes to primary and falls back to the second backend when primary
// is unusable. Deletes go to both so no key material is left behind.
type Store struct {
	primary  ports.SecretStore
	fallback ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary secret store is nil")
	errNilFallbackStore = errors.New("fallback secret store is nil")
)

func NewStore(primary ports.SecretStore, fallback ports.SecretStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func NewPassFirstWithFileFallback(fileRoot string) (*Store, error) {
	return NewStore(passstore.NewStore(passstore.DefaultPrefix), filestore.NewStore(fileRoot))
}

// New builds the secret store named by backend.
func New(backend string, fileRoot string) (ports.SecretStore, error) {
	switch backend {
	case "", BackendChain:
		return NewPassFirstWithFileFallback(fileRoot)
	case BackendFile:
		return filestore.NewStore(fileRoot), nil
	case BackendPass:
		return passstore.NewStore(passstore.DefaultPrefix), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", backend)
	}
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	err := s.primary.Put(ctx, key, value)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Put(ctx, key, value)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend put failed: %w; fallback backend put failed: %w", err, fallbackErr)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackValue, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr == nil {
		return fallbackValue, nil
	}
	if errors.Is(fallbackErr, domain.ErrSecretNotFound) && (errors.Is(err, domain.ErrSecretNotFound) || errors.Is(err, passstore.ErrUnavailable)) {
		return "", fmt.Errorf("secret %q: %w", key, domain.ErrSecretNotFound)
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.primary.Delete(ctx, key)
	if shouldSkipFallback(err) {
		return err
	}
	if errors.Is(err, passstore.ErrUnavailable) {
		err = nil
	}

	fallbackErr := s.fallback.Delete(ctx, key)
	switch {
	case err == nil && fallbackErr == nil:
		return nil
	case err == nil:
		return fmt.Errorf("fallback backend delete failed: %w", fallbackErr)
	case fallbackErr == nil:
		return fmt.Errorf("primary backend delete failed: %w", err)
	default:
		return fmt.Errorf("primary backend delete failed: %w; fallback backend delete failed: %w", err, fallbackErr)
	}
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
