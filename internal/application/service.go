package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/sirupsen/logrus"
)

const defaultConnectTimeout = 60 * time.Second

// WalletPolicy is how a wallet kind connects when the caller does not say.
type WalletPolicy struct {
	Method      domain.ConnectMethod
	Timeout     time.Duration
	CallbackURL string
}

type PolicyFunc func(kind domain.WalletKind) WalletPolicy

// ConnectionService drives connect, import and disconnect through the
// registry and whichever adapter a wallet uses.
type ConnectionService struct {
	registry      *SessionRegistry
	adapters      map[domain.ConnectMethod]ports.ConnectionAdapter
	disconnectors map[domain.ConnectMethod]ports.PeerDisconnector
	importer      ports.AccountImporter
	store         ports.SecretStore
	policy        PolicyFunc
	clock         ports.Clock
	logger        logrus.FieldLogger
}

type ConnectionServiceOptions struct {
	Adapters []ports.ConnectionAdapter
	Importer ports.AccountImporter
	Store    ports.SecretStore
	Policy   PolicyFunc
	Clock    ports.Clock
	Logger   logrus.FieldLogger
}

func NewConnectionService(registry *SessionRegistry, opts ConnectionServiceOptions) *ConnectionService {
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Policy == nil {
		opts.Policy = func(domain.WalletKind) WalletPolicy { return WalletPolicy{} }
	}

	s := &ConnectionService{
		registry:      registry,
		adapters:      map[domain.ConnectMethod]ports.ConnectionAdapter{},
		disconnectors: map[domain.ConnectMethod]ports.PeerDisconnector{},
		importer:      opts.Importer,
		store:         opts.Store,
		policy:        opts.Policy,
		clock:         opts.Clock,
		logger:        opts.Logger,
	}
	for _, adapter := range opts.Adapters {
		s.adapters[adapter.Method()] = adapter
		if d, ok := adapter.(ports.PeerDisconnector); ok {
			s.disconnectors[adapter.Method()] = d
		}
	}

	return s
}

// Connect hands the request to the wallet and returns what to show the user
// together with the handle that resolves when the wallet answers.
func (s *ConnectionService) Connect(ctx context.Context, cmd ConnectCommand) (domain.PendingConnection, *PendingHandle, error) {
	policy := s.policy(cmd.Kind)

	method := cmd.Method
	if method == "" {
		method = policy.Method
	}
	if method == "" || method == domain.ConnectManualImport {
		return domain.PendingConnection{}, nil, fmt.Errorf("connect %s via %q: %w", cmd.Kind, method, domain.ErrUnsupportedAdapter)
	}
	adapter, ok := s.adapters[method]
	if !ok {
		return domain.PendingConnection{}, nil, fmt.Errorf("connect %s via %s: %w", cmd.Kind, method, domain.ErrUnsupportedAdapter)
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = policy.Timeout
	}
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	expiresAt := s.clock.Now().Add(timeout)

	handle, err := s.registry.BeginConnect(ctx, cmd.Kind, method, expiresAt)
	if err != nil {
		return domain.PendingConnection{}, nil, err
	}

	pending, err := adapter.Initiate(ctx, domain.ConnectRequest{
		Kind:        cmd.Kind,
		Method:      method,
		ExpiresAt:   expiresAt,
		CallbackURL: policy.CallbackURL,
	})
	if err != nil {
		_ = s.registry.Fail(handle, err)
		return domain.PendingConnection{}, nil, fmt.Errorf("initiate %s: %w", cmd.Kind, err)
	}

	if err := s.registry.AwaitCallback(handle, pending); err != nil {
		_ = s.registry.Fail(handle, err)
		return domain.PendingConnection{}, nil, fmt.Errorf("register %s callback: %w", cmd.Kind, err)
	}

	s.logger.WithFields(logrus.Fields{
		"wallet":  cmd.Kind,
		"method":  method,
		"expires": expiresAt.Format(time.RFC3339),
	}).Info("waiting for wallet")

	return pending, handle, nil
}

// Import connects from user-supplied key material. The key is stored before
// the session is marked connected and removed again if that fails.
func (s *ConnectionService) Import(ctx context.Context, cmd ImportCommand) (domain.WalletSession, error) {
	if s.importer == nil {
		return domain.WalletSession{}, fmt.Errorf("import %s: %w", cmd.Kind, domain.ErrUnsupportedAdapter)
	}

	handle, err := s.registry.BeginConnect(ctx, cmd.Kind, domain.ConnectManualImport, time.Time{})
	if err != nil {
		return domain.WalletSession{}, err
	}

	account, err := s.importer.Import(ctx, cmd.Kind, cmd.Account)
	if err != nil {
		_ = s.registry.Fail(handle, err)
		return domain.WalletSession{}, fmt.Errorf("import %s: %w", cmd.Kind, err)
	}

	session, err := s.registry.Complete(handle, account)
	if err != nil {
		_ = s.registry.Fail(handle, err)
		if rollbackErr := s.deleteSecret(ctx, domain.PrivateKeySecretRef(cmd.Kind)); rollbackErr != nil {
			return domain.WalletSession{}, fmt.Errorf("complete import and rollback stored key: %w", errors.Join(err, rollbackErr))
		}
		return domain.WalletSession{}, fmt.Errorf("complete import: %w", err)
	}

	return session, nil
}

// Disconnect ends a connected session, tells the wallet when the transport
// allows it, and forgets any key material held for the wallet.
func (s *ConnectionService) Disconnect(ctx context.Context, cmd DisconnectCommand) (domain.WalletSession, error) {
	session, ok := s.registry.Get(cmd.Kind)
	if !ok || !session.IsConnected() {
		return domain.WalletSession{}, fmt.Errorf("disconnect %s: %w", cmd.Kind, domain.ErrNotConnected)
	}

	log := s.logger.WithFields(logrus.Fields{"wallet": cmd.Kind, "method": session.Method})
	if d, ok := s.disconnectors[session.Method]; ok {
		if err := d.DisconnectPeer(ctx, session); err != nil {
			log.WithError(err).Warn("could not notify wallet of disconnect")
		}
	}

	previous, err := s.registry.Disconnect(ctx, cmd.Kind)
	if err != nil {
		return domain.WalletSession{}, err
	}

	var errs []error
	for _, ref := range []string{domain.PrivateKeySecretRef(cmd.Kind), domain.SessionKeySecretRef(cmd.Kind)} {
		if err := s.deleteSecret(ctx, ref); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return previous, fmt.Errorf("delete %s secrets: %w", cmd.Kind, err)
	}

	return previous, nil
}

// Sessions lists every known wallet session, connected or not.
func (s *ConnectionService) Sessions() []SessionView {
	active, _ := s.registry.Active()

	sessions := s.registry.List()
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, newSessionView(session, active.Kind))
	}
	return views
}

func (s *ConnectionService) deleteSecret(ctx context.Context, ref string) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, ref); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
		return err
	}
	return nil
}
