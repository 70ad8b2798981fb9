package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/metrics"
	"github.com/serik1987/corefacility/internal/pkg/crypto"
	"github.com/serik1987/corefacility/internal/repository"
)

// tokenAlphabet is the symbol set of the random token part.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// TokenKind distinguishes issued credentials.
type TokenKind string

// Credential kinds.
const (
	KindBearer TokenKind = "bearer"
	KindCookie TokenKind = "cookie"
)

// TokenService issues and validates authentication credentials. The
// cleartext is "<id>:<random>": the embedded row id makes validation one
// indexed lookup plus one hash comparison, and only the hash of the random
// part is stored.
type TokenService struct {
	tokens  repository.TokenRepository
	users   repository.UserRepository
	cfg     config.AuthConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewTokenService creates a token service.
func NewTokenService(tokens repository.TokenRepository, users repository.UserRepository,
	cfg config.AuthConfig, m *metrics.Metrics, logger zerolog.Logger) *TokenService {
	return &TokenService{
		tokens:  tokens,
		users:   users,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With().Str("service", "token").Logger(),
	}
}

// lifetime returns the configured lifetime of a credential kind.
func (s *TokenService) lifetime(kind TokenKind) time.Duration {
	if kind == KindCookie {
		return s.cfg.CookieLifetime
	}
	return s.cfg.TokenLifetime
}

// IssueOutput carries a freshly issued credential. Cleartext leaves the
// service exactly once.
type IssueOutput struct {
	Cleartext string
	Token     *domain.Token
}

// Issue creates a credential for an authenticated user.
func (s *TokenService) Issue(ctx context.Context, user *domain.User, kind TokenKind) (*IssueOutput, error) {
	if user.IsAnonymous() {
		return nil, ErrInvalidCredentials
	}
	random, err := crypto.GenerateSecret(tokenAlphabet, s.cfg.TokenLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	hash, err := crypto.HashSecret(random)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	token := &domain.Token{
		UserID:    user.ID,
		Hash:      hash,
		ExpiresAt: time.Now().Add(s.lifetime(kind)).UTC(),
	}
	if kind == KindCookie {
		token.CookieName = s.cfg.CookieName
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to store token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.TokensIssued.WithLabelValues(string(kind)).Inc()
	}
	s.logger.Info().
		Int64("user_id", user.ID).
		Int64("token_id", token.ID).
		Str("kind", string(kind)).
		Msg("credential issued")

	return &IssueOutput{
		Cleartext: fmt.Sprintf("%d:%s", token.ID, random),
		Token:     token,
	}, nil
}

// parse splits a cleartext credential into its row id and random part.
func parseCleartext(cleartext string) (int64, string, error) {
	idPart, random, ok := strings.Cut(cleartext, ":")
	if !ok || random == "" {
		return 0, "", ErrInvalidCredentials
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", ErrInvalidCredentials
	}
	return id, random, nil
}

// Authenticate validates a cleartext credential and returns its owner.
// Expired and unknown credentials are indistinguishable to the caller.
func (s *TokenService) Authenticate(ctx context.Context, cleartext string) (*domain.User, *domain.Token, error) {
	id, random, err := parseCleartext(cleartext)
	if err != nil {
		return nil, nil, err
	}
	token, err := s.tokens.GetByID(ctx, id)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if token.IsExpired(time.Now()) {
		return nil, nil, ErrInvalidCredentials
	}
	if !crypto.CheckSecret(token.Hash, random) {
		return nil, nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.CanAuthenticate() {
		return nil, nil, ErrUserLocked
	}
	return user, token, nil
}

// Refresh extends the expiry of a valid credential by its kind's lifetime.
func (s *TokenService) Refresh(ctx context.Context, cleartext string) error {
	_, token, err := s.Authenticate(ctx, cleartext)
	if err != nil {
		return err
	}
	kind := KindBearer
	if token.CookieName != "" {
		kind = KindCookie
	}
	expiresAt := time.Now().Add(s.lifetime(kind)).UTC()
	if err := s.tokens.UpdateExpiry(ctx, token.ID, expiresAt); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// Revoke deletes a credential. Unknown credentials revoke silently.
func (s *TokenService) Revoke(ctx context.Context, cleartext string) error {
	id, _, err := parseCleartext(cleartext)
	if err != nil {
		return nil
	}
	if err := s.tokens.Delete(ctx, id); err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// RevokeAll deletes every credential of a user, terminating all sessions.
func (s *TokenService) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	deleted, err := s.tokens.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if deleted > 0 {
		s.logger.Info().Int64("user_id", userID).Int64("count", deleted).Msg("credentials revoked")
	}
	return deleted, nil
}

// ClearExpired removes credentials past expiry. Called by the sweeper.
func (s *TokenService) ClearExpired(ctx context.Context) (int64, error) {
	deleted, err := s.tokens.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return deleted, nil
}
