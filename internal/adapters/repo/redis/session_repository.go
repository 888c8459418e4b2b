package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	goredis "github.com/redis/go-redis/v9"
)

// SessionRepository keeps sessions in one Redis hash keyed by wallet kind.
type SessionRepository struct {
	client goredis.UniversalClient
	key    string
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(client goredis.UniversalClient, prefix string) *SessionRepository {
	if prefix == "" {
		prefix = "swb"
	}
	return &SessionRepository{client: client, key: prefix + ":sessions"}
}

type sessionRecord struct {
	Kind          string    `json:"kind"`
	Method        string    `json:"method"`
	State         string    `json:"state"`
	Address       string    `json:"address,omitempty"`
	PublicKey     string    `json:"public_key,omitempty"`
	Name          string    `json:"name,omitempty"`
	CanSign       bool      `json:"can_sign"`
	PeerTopic     string    `json:"peer_topic,omitempty"`
	ConnectedAt   time.Time `json:"connected_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

func (r *SessionRepository) Save(ctx context.Context, session domain.WalletSession) error {
	if session.IsPending() {
		return nil
	}

	data, err := json.Marshal(sessionRecord{
		Kind:          string(session.Kind),
		Method:        string(session.Method),
		State:         string(session.State),
		Address:       session.Address,
		PublicKey:     session.PublicKey,
		Name:          session.Name,
		CanSign:       session.CanSign,
		PeerTopic:     session.PeerTopic,
		ConnectedAt:   session.ConnectedAt,
		UpdatedAt:     session.UpdatedAt,
		FailureReason: session.FailureReason,
	})
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.Kind, err)
	}

	if err := r.client.HSet(ctx, r.key, string(session.Kind), data).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", session.Kind, err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, kind domain.WalletKind) (domain.WalletSession, error) {
	raw, err := r.client.HGet(ctx, r.key, string(kind)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.WalletSession{}, domain.ErrSessionNotFound
		}
		return domain.WalletSession{}, fmt.Errorf("get session %s: %w", kind, err)
	}
	return decodeSession(raw)
}

func (r *SessionRepository) List(ctx context.Context) ([]domain.WalletSession, error) {
	entries, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]domain.WalletSession, 0, len(entries))
	for _, raw := range entries {
		session, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (r *SessionRepository) Delete(ctx context.Context, kind domain.WalletKind) error {
	if err := r.client.HDel(ctx, r.key, string(kind)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", kind, err)
	}
	return nil
}

func decodeSession(raw []byte) (domain.WalletSession, error) {
	var record sessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.WalletSession{}, fmt.Errorf("decode session: %w", err)
	}

	return domain.WalletSession{
		Kind:          domain.WalletKind(record.Kind),
		Method:        domain.ConnectMethod(record.Method),
		State:         domain.SessionState(record.State),
		Address:       record.Address,
		PublicKey:     record.PublicKey,
		Name:          record.Name,
		CanSign:       record.CanSign,
		PeerTopic:     record.PeerTopic,
		ConnectedAt:   record.ConnectedAt,
		UpdatedAt:     record.UpdatedAt,
		FailureReason: record.FailureReason,
	}, nil
}
