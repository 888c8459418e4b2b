package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	sessionsFileMode = 0o600
	sessionsDirMode  = 0o700
	tempFilePattern  = ".sessions-*.toml.tmp"
)

// SessionRepository stores wallet sessions in a single TOML file. Pending
// sessions are process-local and never written.
type SessionRepository struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(path string) (*SessionRepository, error) {
	if path == "" {
		return nil, errors.New("sessions path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sessions path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &SessionRepository{path: absPath, mu: lockForPath(absPath)}, nil
}

func (r *SessionRepository) Save(ctx context.Context, session domain.WalletSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session.IsPending() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(session)
	updated := false
	for i := range file.Sessions {
		if file.Sessions[i].Kind == encoded.Kind {
			file.Sessions[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Sessions = append(file.Sessions, encoded)
	}
	sort.Slice(file.Sessions, func(i, j int) bool { return file.Sessions[i].Kind < file.Sessions[j].Kind })

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *SessionRepository) Get(ctx context.Context, kind domain.WalletKind) (domain.WalletSession, error) {
	if err := ctx.Err(); err != nil {
		return domain.WalletSession{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.WalletSession{}, err
	}

	for _, entry := range file.Sessions {
		if entry.Kind == string(kind) {
			return fromSchema(entry), nil
		}
	}

	return domain.WalletSession{}, domain.ErrSessionNotFound
}

func (r *SessionRepository) List(ctx context.Context) ([]domain.WalletSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.WalletSession, 0, len(file.Sessions))
	for _, entry := range file.Sessions {
		sessions = append(sessions, fromSchema(entry))
	}

	return sessions, nil
}

func (r *SessionRepository) Delete(ctx context.Context, kind domain.WalletKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	kept := file.Sessions[:0]
	for _, entry := range file.Sessions {
		if entry.Kind != string(kind) {
			kept = append(kept, entry)
		}
	}
	file.Sessions = kept

	return r.writeSchema(file)
}

func (r *SessionRepository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read sessions file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode sessions file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *SessionRepository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.path), sessionsDirMode); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode sessions file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp sessions file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp sessions file: %w", err)
	}
	if err := tempFile.Chmod(sessionsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp sessions file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp sessions file: %w", err)
	}
	if err := os.Rename(tempName, r.path); err != nil {
		return fmt.Errorf("replace sessions file: %w", err)
	}

	cleanup = false
	return nil
}

func toSchema(session domain.WalletSession) sessionSchema {
	return sessionSchema{
		Kind:          string(session.Kind),
		Method:        string(session.Method),
		State:         string(session.State),
		Address:       session.Address,
		PublicKey:     session.PublicKey,
		Name:          session.Name,
		CanSign:       session.CanSign,
		PeerTopic:     session.PeerTopic,
		ConnectedAt:   formatTime(session.ConnectedAt),
		UpdatedAt:     formatTime(session.UpdatedAt),
		FailureReason: session.FailureReason,
	}
}

func fromSchema(entry sessionSchema) domain.WalletSession {
	return domain.WalletSession{
		Kind:          domain.WalletKind(entry.Kind),
		Method:        domain.ConnectMethod(entry.Method),
		State:         domain.SessionState(entry.State),
		Address:       entry.Address,
		PublicKey:     entry.PublicKey,
		Name:          entry.Name,
		CanSign:       entry.CanSign,
		PeerTopic:     entry.PeerTopic,
		ConnectedAt:   parseTime(entry.ConnectedAt),
		UpdatedAt:     parseTime(entry.UpdatedAt),
		FailureReason: entry.FailureReason,
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}
