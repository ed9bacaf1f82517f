// Package session issues and resolves opaque login sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"advisory/api/internal/auth"
	"advisory/api/internal/logging"
	"advisory/api/internal/store"
)

// DefaultTTL is how long a session lives after login.
const DefaultTTL = 7 * 24 * time.Hour

var ErrNoSession = errors.New("no session")

// Store persists sessions keyed by the hash of their token.
type Store interface {
	SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupSession(ctx context.Context, tokenHash string) (store.SessionRecord, error)
	DeleteSession(ctx context.Context, tokenHash string) error
}

type UserLookup interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
}

// Session is the authenticated caller passed explicitly to every operation.
type Session struct {
	Token     string
	User      store.User
	ExpiresAt time.Time
}

type Manager struct {
	store  Store
	users  UserLookup
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewManager(backend Store, users UserLookup, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{store: backend, users: users, ttl: ttl, now: time.Now, logger: logger}
}

// SetClock replaces the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create starts a session for user. Only the hash of the token is stored.
func (m *Manager) Create(ctx context.Context, user store.User) (Session, error) {
	token, err := auth.NewSessionToken()
	if err != nil {
		return Session{}, err
	}
	expiresAt := m.now().Add(m.ttl)
	if err := m.store.SaveSession(ctx, auth.HashToken(token), user.ID, expiresAt); err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user, ExpiresAt: expiresAt}, nil
}

// Get resolves a token. Expired sessions are deleted on sight and reported
// as ErrNoSession, as are unknown or malformed tokens.
func (m *Manager) Get(ctx context.Context, token string) (Session, error) {
	if auth.ValidateToken(token) != nil {
		return Session{}, ErrNoSession
	}
	hash := auth.HashToken(token)

	record, err := m.store.LookupSession(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("resolve session: %w", err)
	}

	if !m.now().Before(record.ExpiresAt) {
		m.discard(ctx, hash, "expired")
		return Session{}, ErrNoSession
	}

	user, err := m.users.GetUserByID(ctx, record.UserID)
	if errors.Is(err, store.ErrNotFound) {
		m.discard(ctx, hash, "user missing")
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("resolve session user: %w", err)
	}
	return Session{Token: token, User: user, ExpiresAt: record.ExpiresAt}, nil
}

// Delete ends a session. Unknown tokens are not an error.
func (m *Manager) Delete(ctx context.Context, token string) error {
	if auth.ValidateToken(token) != nil {
		return nil
	}
	return m.store.DeleteSession(ctx, auth.HashToken(token))
}

func (m *Manager) discard(ctx context.Context, hash, reason string) {
	if err := m.store.DeleteSession(ctx, hash); err != nil {
		m.logger.WarnContext(ctx, "session cleanup failed", "reason", reason, "error", err)
	}
}
