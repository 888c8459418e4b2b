package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/sirupsen/logrus"
)

// SessionRegistry owns every WalletSession in the process. All mutations are
// serialized through mu; at most one session exists per wallet kind.
type SessionRegistry struct {
	mu            sync.Mutex
	sessions      map[domain.WalletKind]*registryEntry
	byCorrelation map[string]*PendingHandle
	active        domain.WalletKind

	repo   ports.SessionRepository
	clock  ports.Clock
	logger logrus.FieldLogger
}

type registryEntry struct {
	session domain.WalletSession
	pending *PendingHandle
}

// PendingHandle is the caller's view of one in-flight connect. It resolves
// exactly once.
type PendingHandle struct {
	kind     domain.WalletKind
	registry *SessionRegistry
	timer    *time.Timer
	canSign  bool

	once    sync.Once
	done    chan struct{}
	session domain.WalletSession
	err     error
}

func NewSessionRegistry(repo ports.SessionRepository, clock ports.Clock, logger logrus.FieldLogger) *SessionRegistry {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &SessionRegistry{
		sessions:      map[domain.WalletKind]*registryEntry{},
		byCorrelation: map[string]*PendingHandle{},
		repo:          repo,
		clock:         clock,
		logger:        logger,
	}
}

// Load restores persisted sessions. Pending attempts are never persisted.
func (r *SessionRegistry) Load(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}

	sessions, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range sessions {
		if session.IsPending() {
			continue
		}
		if entry, ok := r.sessions[session.Kind]; ok && entry.pending != nil {
			continue
		}
		r.sessions[session.Kind] = &registryEntry{session: session}
	}
	r.active = r.latestConnectedLocked("")

	return nil
}

func (r *SessionRegistry) BeginConnect(ctx context.Context, kind domain.WalletKind, method domain.ConnectMethod, expiresAt time.Time) (*PendingHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	entry := r.entryLocked(kind)
	if entry.pending != nil && entry.session.IsExpired(now) {
		r.resolveLocked(entry.pending, func(s *domain.WalletSession) error {
			return s.Fail(domain.ErrConnectTimeout, now)
		}, domain.ErrConnectTimeout)
	}
	if entry.pending != nil {
		return nil, fmt.Errorf("connect %s: %w", kind, domain.ErrAlreadyConnecting)
	}

	next := entry.session
	if err := next.Begin(method, expiresAt, now); err != nil {
		return nil, fmt.Errorf("connect %s: %w", kind, err)
	}
	entry.session = next

	handle := &PendingHandle{
		kind:     kind,
		registry: r,
		done:     make(chan struct{}),
	}
	entry.pending = handle

	if !expiresAt.IsZero() {
		handle.timer = time.AfterFunc(expiresAt.Sub(now), func() {
			r.expire(handle)
		})
	}

	r.logger.WithFields(logrus.Fields{"wallet": kind, "method": method}).Debug("connect started")

	return handle, nil
}

// AwaitCallback records that the wallet has been handed the request and
// indexes its correlation token for the callback router.
func (r *SessionRegistry) AwaitCallback(handle *PendingHandle, pending domain.PendingConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	correlation := pending.Correlation

	entry, ok := r.sessions[handle.kind]
	if !ok || entry.pending != handle {
		return domain.ErrNoPendingSession
	}
	if _, taken := r.byCorrelation[correlation]; taken {
		return fmt.Errorf("correlation %q already registered: %w", correlation, domain.ErrAlreadyConnecting)
	}

	next := entry.session
	if err := next.AwaitCallback(correlation, r.clock.Now()); err != nil {
		return err
	}
	entry.session = next
	r.byCorrelation[correlation] = handle
	handle.canSign = pending.CanSign

	r.logger.WithFields(logrus.Fields{"wallet": handle.kind, "correlation": correlation}).Debug("awaiting wallet callback")

	return nil
}

// Complete moves a pending session to Connected.
func (r *SessionRegistry) Complete(handle *PendingHandle, account domain.ConnectedAccount) (domain.WalletSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[handle.kind]
	if !ok || entry.pending != handle {
		return domain.WalletSession{}, domain.ErrNoPendingSession
	}

	now := r.clock.Now()
	next := entry.session
	if err := next.Connect(account, now); err != nil {
		return domain.WalletSession{}, err
	}

	r.resolveLocked(handle, func(s *domain.WalletSession) error {
		*s = next
		return nil
	}, nil)
	r.active = handle.kind

	r.logger.WithFields(logrus.Fields{"wallet": handle.kind, "address": next.Address}).Info("wallet connected")

	return next, nil
}

// Fail moves a pending session to Failed with reason.
func (r *SessionRegistry) Fail(handle *PendingHandle, reason error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[handle.kind]
	if !ok || entry.pending != handle {
		return domain.ErrNoPendingSession
	}

	now := r.clock.Now()
	r.resolveLocked(handle, func(s *domain.WalletSession) error {
		return s.Fail(reason, now)
	}, reason)

	r.logger.WithFields(logrus.Fields{"wallet": handle.kind}).WithError(reason).Info("wallet connect failed")

	return nil
}

func (r *SessionRegistry) PendingByCorrelation(correlation string) (*PendingHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.byCorrelation[correlation]
	return handle, ok
}

// PendingAwaitingCallback lists handles that are waiting for an inbound
// callback for the given method.
func (r *SessionRegistry) PendingAwaitingCallback(method domain.ConnectMethod) []*PendingHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]*PendingHandle, 0, len(r.sessions))
	for _, entry := range r.sessions {
		if entry.pending == nil || entry.session.State != domain.StateAwaitingCallback {
			continue
		}
		if method != "" && entry.session.Method != method {
			continue
		}
		handles = append(handles, entry.pending)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].kind < handles[j].kind })

	return handles
}

func (r *SessionRegistry) Disconnect(ctx context.Context, kind domain.WalletKind) (domain.WalletSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[kind]
	if !ok || !entry.session.IsConnected() {
		return domain.WalletSession{}, fmt.Errorf("disconnect %s: %w", kind, domain.ErrNotConnected)
	}

	previous := entry.session
	next := entry.session
	if err := next.Disconnect(r.clock.Now()); err != nil {
		return domain.WalletSession{}, err
	}
	entry.session = next
	if r.active == kind {
		r.active = r.latestConnectedLocked(kind)
	}
	r.persistLocked(ctx, next)

	r.logger.WithFields(logrus.Fields{"wallet": kind}).Info("wallet disconnected")

	return previous, nil
}

func (r *SessionRegistry) FindByPeerTopic(topic string) (domain.WalletSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.sessions {
		if entry.session.IsConnected() && entry.session.PeerTopic != "" && entry.session.PeerTopic == topic {
			return entry.session, true
		}
	}
	return domain.WalletSession{}, false
}

func (r *SessionRegistry) Get(kind domain.WalletKind) (domain.WalletSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[kind]
	if !ok {
		return domain.WalletSession{}, false
	}
	return entry.session, true
}

func (r *SessionRegistry) List() []domain.WalletSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]domain.WalletSession, 0, len(r.sessions))
	for _, entry := range r.sessions {
		sessions = append(sessions, entry.session)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Kind < sessions[j].Kind })

	return sessions
}

func (r *SessionRegistry) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.sessions {
		if entry.session.IsConnected() {
			return true
		}
	}
	return false
}

// Active returns the session that most recently became Connected.
func (r *SessionRegistry) Active() (domain.WalletSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == "" {
		return domain.WalletSession{}, false
	}
	entry, ok := r.sessions[r.active]
	if !ok || !entry.session.IsConnected() {
		return domain.WalletSession{}, false
	}
	return entry.session, true
}

func (r *SessionRegistry) ActiveAddress() string {
	session, ok := r.Active()
	if !ok {
		return ""
	}
	return session.Address
}

func (r *SessionRegistry) expire(handle *PendingHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[handle.kind]
	if !ok || entry.pending != handle {
		return
	}

	now := r.clock.Now()
	r.resolveLocked(handle, func(s *domain.WalletSession) error {
		return s.Fail(domain.ErrConnectTimeout, now)
	}, domain.ErrConnectTimeout)

	r.logger.WithFields(logrus.Fields{"wallet": handle.kind}).Warn("wallet connect timed out")
}

// resolveLocked applies the final transition, releases the correlation token
// and wakes the waiter. Callers hold mu.
func (r *SessionRegistry) resolveLocked(handle *PendingHandle, apply func(*domain.WalletSession) error, outcome error) {
	entry := r.sessions[handle.kind]

	correlation := entry.session.Correlation
	next := entry.session
	if err := apply(&next); err != nil {
		r.logger.WithFields(logrus.Fields{"wallet": handle.kind}).WithError(err).Warn("session transition rejected")
		outcome = errors.Join(outcome, err)
	} else {
		entry.session = next
	}

	if correlation != "" {
		delete(r.byCorrelation, correlation)
	}
	entry.pending = nil
	if handle.timer != nil {
		handle.timer.Stop()
	}

	r.persistLocked(context.Background(), entry.session)
	handle.finish(entry.session, outcome)
}

func (r *SessionRegistry) persistLocked(ctx context.Context, session domain.WalletSession) {
	if r.repo == nil {
		return
	}
	if err := r.repo.Save(ctx, session); err != nil {
		r.logger.WithFields(logrus.Fields{"wallet": session.Kind}).WithError(err).Error("persist session")
	}
}

func (r *SessionRegistry) entryLocked(kind domain.WalletKind) *registryEntry {
	entry, ok := r.sessions[kind]
	if !ok {
		entry = &registryEntry{session: domain.NewWalletSession(kind)}
		r.sessions[kind] = entry
	}
	return entry
}

func (r *SessionRegistry) latestConnectedLocked(exclude domain.WalletKind) domain.WalletKind {
	var (
		latest domain.WalletKind
		at     time.Time
	)
	for kind, entry := range r.sessions {
		if kind == exclude || !entry.session.IsConnected() {
			continue
		}
		if latest == "" || entry.session.ConnectedAt.After(at) {
			latest = kind
			at = entry.session.ConnectedAt
		}
	}
	return latest
}

func (h *PendingHandle) Kind() domain.WalletKind {
	return h.kind
}

// CanSign reports whether the adapter that opened the wallet can later have
// transactions signed through it.
func (h *PendingHandle) CanSign() bool {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()
	return h.canSign
}

// Wait blocks until the connect resolves or ctx ends. A cancelled ctx fails
// the session and releases its correlation token.
func (h *PendingHandle) Wait(ctx context.Context) (domain.WalletSession, error) {
	select {
	case <-h.done:
		return h.session, h.err
	case <-ctx.Done():
		_ = h.registry.Fail(h, ctx.Err())
		<-h.done
		return h.session, h.err
	}
}

func (h *PendingHandle) Done() <-chan struct{} {
	return h.done
}

func (h *PendingHandle) finish(session domain.WalletSession, err error) {
	h.once.Do(func() {
		h.session = session
		h.err = err
		close(h.done)
	})
}
