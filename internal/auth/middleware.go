package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/supahealth/supahealth/internal/api/respond"
	"github.com/supahealth/supahealth/internal/model"
)

type contextKey struct{}

var userKey contextKey

// UserFromContext returns the authenticated user placed by Middleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// ContextWithUser is exported for handler tests that bypass the
// middleware.
func ContextWithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Middleware gates protected routes behind a bearer token. Every
// failure mode answers with the same 401 body so callers cannot tell
// which part of the credential was wrong.
func Middleware(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respond.WriteUnauthorized(w)
				return
			}
			user, err := issuer.Verify(r.Context(), token)
			if err != nil {
				respond.WriteUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
