package domain

import (
	"fmt"
	"strings"
	"time"
)

type SessionState string

const (
	StateIdle               SessionState = "idle"
	StateAwaitingWalletOpen SessionState = "awaiting_wallet_open"
	StateAwaitingCallback   SessionState = "awaiting_callback"
	StateConnected          SessionState = "connected"
	StateFailed             SessionState = "failed"
	StateDisconnected       SessionState = "disconnected"
)

// WalletSession is one connection lifetime with one external wallet.
// Address is only set while Connected.
type WalletSession struct {
	Kind          WalletKind
	Method        ConnectMethod
	State         SessionState
	Address       string
	PublicKey     string
	Name          string
	CanSign       bool
	Correlation   string
	PeerTopic     string
	ExpiresAt     time.Time
	ConnectedAt   time.Time
	UpdatedAt     time.Time
	FailureReason string
}

func NewWalletSession(kind WalletKind) WalletSession {
	return WalletSession{Kind: kind, State: StateIdle}
}

func (s WalletSession) IsPending() bool {
	return s.State == StateAwaitingWalletOpen || s.State == StateAwaitingCallback
}

func (s WalletSession) IsConnected() bool {
	return s.State == StateConnected
}

func (s WalletSession) IsTerminal() bool {
	return s.State == StateFailed || s.State == StateDisconnected
}

func (s WalletSession) IsExpired(now time.Time) bool {
	return s.IsPending() && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s *WalletSession) Begin(method ConnectMethod, expiresAt time.Time, now time.Time) error {
	switch s.State {
	case StateAwaitingWalletOpen, StateAwaitingCallback:
		return ErrAlreadyConnecting
	case StateConnected:
		return ErrAlreadyConnected
	case "", StateIdle, StateFailed, StateDisconnected:
	default:
		return s.invalid(StateAwaitingWalletOpen)
	}

	*s = WalletSession{
		Kind:      s.Kind,
		Method:    method,
		State:     StateAwaitingWalletOpen,
		ExpiresAt: expiresAt,
		UpdatedAt: now,
	}

	return nil
}

func (s *WalletSession) AwaitCallback(correlation string, now time.Time) error {
	if s.State != StateAwaitingWalletOpen {
		return s.invalid(StateAwaitingCallback)
	}
	if strings.TrimSpace(correlation) == "" {
		return fmt.Errorf("correlation token is required: %w", ErrInvalidTransition)
	}

	s.State = StateAwaitingCallback
	s.Correlation = correlation
	s.UpdatedAt = now

	return nil
}

func (s *WalletSession) Connect(account ConnectedAccount, now time.Time) error {
	if !s.IsPending() {
		return s.invalid(StateConnected)
	}
	if strings.TrimSpace(account.Address) == "" && s.Method != ConnectManualImport {
		return ErrMissingAddress
	}

	s.State = StateConnected
	s.Address = account.Address
	s.PublicKey = account.PublicKey
	s.Name = account.Name
	s.CanSign = account.CanSign
	s.PeerTopic = account.PeerTopic
	s.Correlation = ""
	s.ExpiresAt = time.Time{}
	s.ConnectedAt = now
	s.UpdatedAt = now
	s.FailureReason = ""

	return nil
}

func (s *WalletSession) Fail(reason error, now time.Time) error {
	if !s.IsPending() {
		return s.invalid(StateFailed)
	}

	s.State = StateFailed
	s.Correlation = ""
	s.UpdatedAt = now
	s.FailureReason = UserMessage(reason)

	return nil
}

func (s *WalletSession) Disconnect(now time.Time) error {
	if s.State != StateConnected {
		return s.invalid(StateDisconnected)
	}

	s.State = StateDisconnected
	s.Address = ""
	s.PublicKey = ""
	s.CanSign = false
	s.PeerTopic = ""
	s.UpdatedAt = now

	return nil
}

func (s WalletSession) invalid(to SessionState) error {
	from := s.State
	if from == "" {
		from = StateIdle
	}
	return fmt.Errorf("%s session %s -> %s: %w", s.Kind, from, to, ErrInvalidTransition)
}
