package actor

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/procktails/storefront/internal/domain"
)

const (
	// SessionCookie carries the durable anonymous session token.
	SessionCookie = "procktails_session"
	// SessionHeader is the cookie-less fallback used by the SPA.
	SessionHeader = "X-Session-ID"

	anonPrefix = "anon_"
)

type accountIDKey struct{}

// WithAccountID attaches the authenticated platform customer id resolved by
// the identity layer. Token parsing and validation live outside this package;
// only the resolved claim is consumed here.
func WithAccountID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, accountIDKey{}, customerID)
}

func AccountIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(accountIDKey{}).(string); ok {
		return id
	}
	return ""
}

type accountEmailKey struct{}

// WithAccountEmail attaches the authenticated shopper's email. Checkout uses
// it when the request itself names no customer email.
func WithAccountEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, accountEmailKey{}, email)
}

func AccountEmailFromContext(ctx context.Context) string {
	if email, ok := ctx.Value(accountEmailKey{}).(string); ok {
		return email
	}
	return ""
}

// Resolver derives the actor key a request's cart is addressed under.
type Resolver struct{}

// Resolve never fails: an authenticated identity wins, otherwise the
// client-supplied session token is reused, otherwise a fresh session id is
// minted and minted=true tells the caller to persist it for future requests.
func (Resolver) Resolve(r *http.Request) (key domain.ActorKey, minted bool) {
	if id := AccountIDFromContext(r.Context()); id != "" {
		return domain.AccountKey(id), false
	}

	if token := SessionToken(r); token != "" {
		return domain.AnonymousKey(token), false
	}

	return domain.AnonymousKey(MintSessionID()), true
}

// SessionToken returns the anonymous session token the client supplied, if
// any. Exposed separately because login reconciliation needs the anonymous
// key alongside the account key.
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get(SessionHeader)
}

// MintSessionID produces a collision-resistant anonymous session id. It is
// routing metadata, not a secret.
func MintSessionID() string {
	return anonPrefix + uuid.NewString()
}
