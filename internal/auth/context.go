// Package auth authenticates HTTP requests with bearer tokens and cookie
// sessions and gates handlers on the principal's rights.
package auth

import (
	"context"

	"github.com/serik1987/corefacility/internal/domain"
)

// Principal is the authenticated identity of a request.
type Principal struct {
	// User is the authenticated account.
	User *domain.User

	// Token is the credential row that authenticated the request.
	Token *domain.Token

	// Cleartext is the presented credential, kept for refresh and revoke.
	Cleartext string

	// FromCookie reports whether the credential arrived in the session
	// cookie rather than the Authorization header.
	FromCookie bool
}

type principalKey struct{}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom retrieves the principal, nil for anonymous requests.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// UserFrom retrieves the authenticated user. The nil return denotes the
// anonymous principal and satisfies domain.User.IsAnonymous.
func UserFrom(ctx context.Context) *domain.User {
	if p := PrincipalFrom(ctx); p != nil {
		return p.User
	}
	return nil
}
