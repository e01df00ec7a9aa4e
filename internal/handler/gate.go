package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cryptocop/internal/domain/auth"
	"github.com/xenking/cryptocop/pkg/httpmiddleware"
)

// TokenParser verifies bearer tokens. Implemented by *auth.Signer.
type TokenParser interface {
	Parse(raw string) (*auth.Claims, error)
}

// RevocationChecker is implemented by *auth.Service.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, credentialID int64) (bool, error)
}

type claimsKey struct{}

// ClaimsFromContext returns the claims installed by Authenticate.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// WithClaims returns ctx carrying c.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// Authenticate verifies the bearer token, if any, and stores its claims in
// the request context. Requests without an Authorization header continue
// unauthenticated; a header that does not verify is rejected with 401.
func Authenticate(tokens TokenParser) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				writeError(w, r, auth.ErrInvalidToken)
				return
			}
			claims, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				zctx.From(r.Context()).Debug("Rejected token", zap.Error(err))
				writeError(w, r, err)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = zctx.With(ctx, zap.Int64("user_id", claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RevocationGate rejects requests whose credential has been revoked. It costs
// one credential lookup per request that carries a credential id; anonymous
// requests and tokens without a tid claim pass through.
func RevocationGate(creds RevocationChecker) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !claims.HasCredential() {
				next.ServeHTTP(w, r)
				return
			}
			revoked, err := creds.IsRevoked(r.Context(), claims.TokenID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if revoked {
				writeError(w, r, auth.ErrTokenRevoked)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
