package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/repository"
)

// tokenRepository implements repository.TokenRepository for SQLite.
type tokenRepository struct {
	db *DB
}

// NewTokenRepository creates a new SQLite token repository.
func NewTokenRepository(db *DB) repository.TokenRepository {
	return &tokenRepository{db: db}
}

// Create stores a token row and assigns the generated ID.
func (r *tokenRepository) Create(ctx context.Context, token *domain.Token) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO tokens (user_id, hash, expires_at, cookie_name)
		VALUES (?, ?, ?, ?)
	`, token.UserID, token.Hash, formatTime(token.ExpiresAt), token.CookieName)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	token.ID = id

	return nil
}

// GetByID retrieves a token row by ID.
func (r *tokenRepository) GetByID(ctx context.Context, id int64) (*domain.Token, error) {
	token := &domain.Token{}
	var expiresAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, hash, expires_at, cookie_name
		FROM tokens WHERE id = ?
	`, id).Scan(&token.ID, &token.UserID, &token.Hash, &expiresAt, &token.CookieName)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	token.ExpiresAt, err = parseTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token expiry: %w", err)
	}
	return token, nil
}

// UpdateExpiry extends the token expiry instant.
func (r *tokenRepository) UpdateExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET expires_at = ? WHERE id = ?`,
		formatTime(expiresAt), id)
	if err != nil {
		return fmt.Errorf("failed to update token expiry: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// Delete removes a token row.
func (r *tokenRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// DeleteByUser removes every token of a user.
func (r *tokenRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user tokens: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// DeleteExpired removes every token past expiry.
func (r *tokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// Ensure tokenRepository implements repository.TokenRepository.
var _ repository.TokenRepository = (*tokenRepository)(nil)

// sessionRepository implements repository.SessionRepository for SQLite.
type sessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SQLite external session repository.
func NewSessionRepository(db *DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Create stores a session row and assigns the generated ID.
func (r *sessionRepository) Create(ctx context.Context, s *domain.ExternalSession) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO external_sessions (module_uuid, key_hash, expires_at)
		VALUES (?, ?, ?)
	`, s.ModuleUUID, s.KeyHash, formatTime(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to create external session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	s.ID = id

	return nil
}

// GetByID retrieves a session row by ID.
func (r *sessionRepository) GetByID(ctx context.Context, id int64) (*domain.ExternalSession, error) {
	s := &domain.ExternalSession{}
	var expiresAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, module_uuid, key_hash, expires_at
		FROM external_sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.ModuleUUID, &s.KeyHash, &expiresAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get external session: %w", err)
	}

	s.ExpiresAt, err = parseTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session expiry: %w", err)
	}
	return s, nil
}

// Delete removes a session row.
func (r *sessionRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM external_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete external session: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// DeleteExpired removes every session past expiry.
func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM external_sessions WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// Ensure sessionRepository implements repository.SessionRepository.
var _ repository.SessionRepository = (*sessionRepository)(nil)
