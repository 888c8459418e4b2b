package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/sirupsen/logrus"
)

const balanceRefreshTimeout = 30 * time.Second

var (
	addressKeys     = []string{"address", "account"}
	publicKeyKeys   = []string{"publicKey", "public_key"}
	nameKeys        = []string{"name", "wallet_name"}
	correlationKeys = []string{"cid", "correlation", "topic"}
	txHashKeys      = []string{"transaction_hash", "transactionHash", "tx_hash", "txHash"}
)

var (
	_ ports.TransportEventSink = (*CallbackRouter)(nil)
	_ ports.RequestWaiter      = (*CallbackRouter)(nil)
)

// CallbackRouter matches inbound wallet URLs and relay events to the pending
// connect or request they answer. Nothing it receives can create a session.
type CallbackRouter struct {
	registry *SessionRegistry
	secrets  ports.SecretStore
	logger   logrus.FieldLogger

	mu        sync.Mutex
	requests  map[string]chan domain.RequestResult
	refresher ports.BalanceRefresher
	refreshes sync.WaitGroup
}

func NewCallbackRouter(registry *SessionRegistry, secrets ports.SecretStore, logger logrus.FieldLogger) *CallbackRouter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &CallbackRouter{
		registry: registry,
		secrets:  secrets,
		logger:   logger,
		requests: map[string]chan domain.RequestResult{},
	}
}

// SetBalanceRefresher installs what runs after a wallet connects.
func (r *CallbackRouter) SetBalanceRefresher(refresher ports.BalanceRefresher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresher = refresher
}

// Wait blocks until background balance refreshes have finished.
func (r *CallbackRouter) Wait() {
	r.refreshes.Wait()
}

// RouteURL handles a URL the OS delivered to the app scheme.
func (r *CallbackRouter) RouteURL(ctx context.Context, rawURL string) error {
	payload, err := ParseCallback(rawURL)
	if err != nil {
		r.logger.WithError(err).Warn("discarding unparseable callback")
		return err
	}

	switch payload.Action {
	case domain.CallbackSign, domain.CallbackSend:
		return r.routeRequest(payload)
	default:
		return r.routeConnect(ctx, payload)
	}
}

// RouteEvent handles a relay notification.
func (r *CallbackRouter) RouteEvent(ctx context.Context, event domain.TransportEvent) {
	log := r.logger.WithFields(logrus.Fields{"event": event.Kind, "topic": shortID(event.Topic)})

	switch event.Kind {
	case domain.EventSessionSettle:
		handle, ok := r.registry.PendingByCorrelation(event.Topic)
		if !ok {
			log.Warn("discarding settle for unknown pairing")
			return
		}
		account := event.Account
		account.CanSign = account.CanSign || handle.CanSign()
		if _, err := r.complete(handle, account); err != nil {
			return
		}
		r.rememberSessionKey(ctx, handle.Kind(), event.SessionKey)
	case domain.EventSessionInvalid:
		handle, ok := r.registry.PendingByCorrelation(event.Topic)
		if !ok {
			log.Warn("discarding invalid answer for unknown pairing")
			return
		}
		_ = r.registry.Fail(handle, &domain.CallbackError{Reason: domain.ErrInvalidCallback, Detail: event.Reason})
	case domain.EventSessionReject:
		handle, ok := r.registry.PendingByCorrelation(event.Topic)
		if !ok {
			log.Warn("discarding reject for unknown pairing")
			return
		}
		_ = r.registry.Fail(handle, &domain.CallbackError{Reason: domain.ErrUserRejected, Detail: event.Reason})
	case domain.EventSessionDelete:
		session, ok := r.registry.FindByPeerTopic(event.Topic)
		if !ok {
			log.Warn("discarding delete for unknown session")
			return
		}
		if _, err := r.registry.Disconnect(ctx, session.Kind); err != nil {
			log.WithError(err).Warn("peer disconnect")
			return
		}
		r.forgetSessionKey(ctx, session.Kind)
		log.WithField("wallet", session.Kind).Info("wallet ended the session")
	default:
		log.Warn("discarding unknown relay event")
	}
}

// ExpectRequest registers a sign or send round trip. The returned channel
// receives at most one result; release must be called when done waiting.
func (r *CallbackRouter) ExpectRequest(id string) (<-chan domain.RequestResult, func()) {
	ch := make(chan domain.RequestResult, 1)

	r.mu.Lock()
	r.requests[id] = ch
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if r.requests[id] == ch {
			delete(r.requests, id)
		}
		r.mu.Unlock()
	}
	return ch, release
}

func (r *CallbackRouter) routeConnect(ctx context.Context, payload domain.CallbackPayload) error {
	log := r.logger.WithFields(logrus.Fields{"host": payload.Host, "correlation": shortID(payload.Correlation)})

	handle, err := r.matchConnect(payload)
	if err != nil {
		log.WithError(err).Warn("discarding callback")
		return err
	}

	account, outcome := payload.Outcome()
	if outcome != nil {
		if err := r.registry.Fail(handle, outcome); err != nil {
			log.WithError(err).Warn("discarding callback")
			return err
		}
		return nil
	}

	account.CanSign = handle.CanSign()
	_, err = r.complete(handle, account)
	return err
}

// matchConnect picks the pending deep-link connect a callback answers: by
// correlation id when the wallet echoes one, else by the single pending
// attempt (narrowed to the wallet named in the URL, if any).
func (r *CallbackRouter) matchConnect(payload domain.CallbackPayload) (*PendingHandle, error) {
	if payload.Correlation != "" {
		handle, ok := r.registry.PendingByCorrelation(payload.Correlation)
		if !ok {
			return nil, fmt.Errorf("correlation %s: %w", shortID(payload.Correlation), domain.ErrNoPendingSession)
		}
		return handle, nil
	}

	candidates := r.registry.PendingAwaitingCallback(domain.ConnectDeepLink)
	if kind, ok := walletFromHost(payload.Host); ok {
		narrowed := candidates[:0:0]
		for _, handle := range candidates {
			if handle.Kind() == kind {
				narrowed = append(narrowed, handle)
			}
		}
		candidates = narrowed
	}

	switch len(candidates) {
	case 0:
		return nil, domain.ErrNoPendingSession
	case 1:
		return candidates[0], nil
	default:
		return nil, fmt.Errorf("%d wallets are waiting and the callback names none: %w", len(candidates), domain.ErrNoPendingSession)
	}
}

func (r *CallbackRouter) complete(handle *PendingHandle, account domain.ConnectedAccount) (domain.WalletSession, error) {
	session, err := r.registry.Complete(handle, account)
	if err != nil {
		if errors.Is(err, domain.ErrMissingAddress) {
			_ = r.registry.Fail(handle, &domain.CallbackError{Reason: domain.ErrInvalidCallback, Detail: err.Error()})
		}
		r.logger.WithField("wallet", handle.Kind()).WithError(err).Warn("callback did not complete connect")
		return domain.WalletSession{}, err
	}

	r.refreshAsync(session.Address)
	return session, nil
}

func (r *CallbackRouter) refreshAsync(address string) {
	r.mu.Lock()
	refresher := r.refresher
	r.mu.Unlock()
	if refresher == nil || address == "" {
		return
	}

	r.refreshes.Add(1)
	go func() {
		defer r.refreshes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), balanceRefreshTimeout)
		defer cancel()
		if _, err := refresher.RefreshBalances(ctx, address); err != nil {
			r.logger.WithField("address", address).WithError(err).Debug("balance refresh after connect")
		}
	}()
}

func (r *CallbackRouter) routeRequest(payload domain.CallbackPayload) error {
	log := r.logger.WithFields(logrus.Fields{"action": payload.Action, "request_id": payload.RequestID})

	r.mu.Lock()
	ch, ok := r.requests[payload.RequestID]
	if ok {
		delete(r.requests, payload.RequestID)
	}
	r.mu.Unlock()

	if payload.RequestID == "" || !ok {
		log.Warn("discarding callback for unknown request")
		return domain.ErrRequestNotFound
	}

	result := domain.RequestResult{TxHash: payload.TxHash, Signature: payload.Signature}
	if payload.Error != "" {
		result = domain.RequestResult{Err: &domain.CallbackError{Reason: domain.ErrUserRejected, Detail: payload.Error}}
	} else if payload.Approved != nil && !*payload.Approved {
		result = domain.RequestResult{Err: &domain.CallbackError{Reason: domain.ErrUserRejected}}
	}

	ch <- result
	log.Debug("request answered")
	return nil
}

// rememberSessionKey keeps the key of an accepted settle so the wallet can be
// told about a disconnect after a restart.
func (r *CallbackRouter) rememberSessionKey(ctx context.Context, kind domain.WalletKind, key string) {
	if r.secrets == nil || key == "" {
		return
	}
	if err := r.secrets.Put(ctx, domain.SessionKeySecretRef(kind), key); err != nil {
		r.logger.WithField("wallet", kind).WithError(err).Warn("store session key")
	}
}

func (r *CallbackRouter) forgetSessionKey(ctx context.Context, kind domain.WalletKind) {
	if r.secrets == nil {
		return
	}
	if err := r.secrets.Delete(ctx, domain.SessionKeySecretRef(kind)); err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
		r.logger.WithField("wallet", kind).WithError(err).Warn("delete session key")
	}
}

// ParseCallback normalizes a wallet callback URL. The host and path decide the
// action: sign and send are request replies, everything else is a connect.
func ParseCallback(rawURL string) (domain.CallbackPayload, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return domain.CallbackPayload{}, fmt.Errorf("parse %q: %w", rawURL, domain.ErrInvalidCallback)
	}

	segments := []string{strings.ToLower(u.Host)}
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			segments = append(segments, strings.ToLower(part))
		}
	}

	query := u.Query()
	payload := domain.CallbackPayload{
		Action:      domain.CallbackConnect,
		Host:        strings.Join(segments, "/"),
		Correlation: first(query, correlationKeys...),
		RequestID:   first(query, "rid", "request_id", "requestId"),
		Address:     first(query, addressKeys...),
		PublicKey:   first(query, publicKeyKeys...),
		Name:        first(query, nameKeys...),
		Error:       first(query, "error"),
		TxHash:      first(query, txHashKeys...),
	}

	for _, segment := range segments {
		switch segment {
		case "sign":
			payload.Action = domain.CallbackSign
		case "send":
			payload.Action = domain.CallbackSend
		}
	}

	if flag := first(query, "approved", "success"); flag != "" {
		approved := flag == "true" || flag == "1"
		payload.Approved = &approved
	}
	if signature := first(query, "signature"); signature != "" {
		for _, part := range strings.Split(signature, ",") {
			if part = strings.TrimSpace(part); part != "" {
				payload.Signature = append(payload.Signature, part)
			}
		}
	}

	return payload, nil
}

func first(query url.Values, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(query.Get(key)); value != "" {
			return value
		}
	}
	return ""
}

// walletFromHost finds a wallet kind named by the first segment of the
// callback host, such as ready in swb://ready/callback.
func walletFromHost(host string) (domain.WalletKind, bool) {
	head, _, _ := strings.Cut(host, "/")
	kind, err := domain.ParseWalletKind(head)
	if err != nil {
		return "", false
	}
	return kind, true
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
