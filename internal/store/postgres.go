package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"advisory/api/internal/logging"
)

type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	// onHistoryFailure is told about audit rows that could not be written.
	onHistoryFailure func(kind string)
}

func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = logging.Discard()
	}
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) DB() *sqlx.DB {
	return s.db
}

// OnHistoryFailure registers a callback for swallowed history write errors.
func (s *PostgresStore) OnHistoryFailure(fn func(kind string)) {
	s.onHistoryFailure = fn
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, email, password_hash, name, role, created_at, updated_at`

func (s *PostgresStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `
		INSERT INTO users (email, password_hash, name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, in.Email, in.PasswordHash, in.Name, string(in.Role))
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// UpdateUserProfile replaces name and email, and the password hash when one is given.
func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID, name, email string, passwordHash *string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `
		UPDATE users
		SET name=$2, email=$3, password_hash=COALESCE($4, password_hash), updated_at=NOW()
		WHERE id=$1
		RETURNING `+userColumns, userID, name, email, passwordHash)
	switch {
	case errors.Is(err, sql.ErrNoRows) || isInvalidInput(err):
		return User{}, ErrNotFound
	case isUniqueViolation(err):
		return User{}, ErrEmailTaken
	case err != nil:
		return User{}, fmt.Errorf("update user profile: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupSession(ctx context.Context, tokenHash string) (SessionRecord, error) {
	var record SessionRecord
	err := s.db.GetContext(ctx, &record, `SELECT user_id, expires_at FROM sessions WHERE token_hash=$1`, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("lookup session: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash=$1`, tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions removes sessions past their expiry and reports how many went.
func (s *PostgresStore) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

func rollback(tx *sqlx.Tx) {
	_ = tx.Rollback()
}
