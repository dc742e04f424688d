package auth

import (
	"context"
	"net/http"
	"strings"

	"unilib/internal/httpx"
)

type contextKey struct{}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// WithIdentity attaches an identity to a context. Exposed for handler tests.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Middleware rejects requests without a valid bearer token.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "missing bearer token")
			return
		}

		identity, err := i.Verify(token)
		if err != nil {
			httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireRole guards a subtree to callers holding the given role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := FromContext(r.Context())
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "authentication required")
				return
			}
			if identity.Role != role {
				httpx.Error(w, http.StatusForbidden, httpx.KindAuth, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
