package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/procktails/storefront/internal/actor"
	"github.com/procktails/storefront/internal/domain"
	"github.com/procktails/storefront/internal/platform"
)

const maxWebhookBody = 1 << 20 // 1MB

type actorKeyKey struct{}
type requestIDKey struct{}

func actorFromContext(ctx context.Context) domain.ActorKey {
	if key, ok := ctx.Value(actorKeyKey{}).(domain.ActorKey); ok {
		return key
	}
	return domain.ActorKey{}
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return requestID
	}
	return ""
}

// AccountClaimMiddleware consumes the verified identity the session layer in
// front of this service forwards. Token validation is not done here.
func AccountClaimMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Account-ID"); id != "" {
			ctx := actor.WithAccountID(r.Context(), id)
			if email := r.Header.Get("X-Account-Email"); email != "" {
				ctx = actor.WithAccountEmail(ctx, email)
			}
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// ActorMiddleware resolves the actor key every cart operation is addressed
// under. A freshly minted session id is handed back as a cookie so the next
// request lands on the same cart.
func ActorMiddleware(resolver actor.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, minted := resolver.Resolve(r)
			if minted {
				http.SetCookie(w, &http.Cookie{
					Name:     actor.SessionCookie,
					Value:    key.ID,
					Path:     "/",
					MaxAge:   int((30 * 24 * time.Hour).Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), actorKeyKey{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WebhookVerifyMiddleware rejects platform notifications whose HMAC signature
// does not match the raw body. The body is re-attached for the handler.
func WebhookVerifyMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := r.Header.Get(platform.SignatureHeader)
			if signature == "" {
				respondError(w, http.StatusUnauthorized, "missing_signature", "missing webhook signature")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
				return
			}

			if !platform.VerifyWebhookSignature(secret, body, signature) {
				respondError(w, http.StatusUnauthorized, "invalid_signature", "invalid webhook signature")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
