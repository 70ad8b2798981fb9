package domain

import "time"

// Token is a stored authentication credential: a bearer token or a cookie
// session. The cleartext is returned exactly once at issuance; only its
// one-way hash is persisted.
type Token struct {
	// ID is the unique identifier for the token (auto-generated). It is
	// embedded in the cleartext so validation is a single indexed lookup.
	ID int64 `json:"id"`

	// UserID is the owner of the token.
	UserID int64 `json:"user_id"`

	// Hash is the one-way hash of the random part of the cleartext.
	Hash string `json:"-"`

	// ExpiresAt is the expiry instant. Expired tokens are reported as
	// not found, never as expired, so callers cannot distinguish a bad
	// token from a stale one.
	ExpiresAt time.Time `json:"expires_at"`

	// CookieName is the configured cookie binding for cookie sessions.
	// Empty for bearer tokens.
	CookieName string `json:"-"`
}

// IsExpired reports whether the token is past its expiry instant.
func (t *Token) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// ExternalSession is short-lived state for an OAuth-like external
// authorization flow: the session key is hashed at rest like a token.
type ExternalSession struct {
	ID         int64     `json:"id"`
	ModuleUUID string    `json:"module_uuid"`
	KeyHash    string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsExpired reports whether the session key is past its expiry instant.
func (s *ExternalSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
