package jwt

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	// ContextUsernameKey stores the authenticated username in the request context.
	ContextUsernameKey contextKey = "auth_username"

	// ContextTokenKey stores the raw session token in the request context.
	ContextTokenKey contextKey = "auth_token"
)

// Authenticator resolves a session token to the username owning it.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// TokenFromRequest extracts a bearer token from the Authorization header, falling back to
// the "token" query parameter used by browser WebSocket clients.
func TokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
	}

	return r.URL.Query().Get("token")
}

// IdentityExtractorMiddleware resolves the session token and injects the username into the
// context. It never rejects a request: handlers decide whether an identity is required.
func IdentityExtractorMiddleware(auth Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			username, err := auth.Authenticate(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextUsernameKey, username)
			ctx = context.WithValue(ctx, ContextTokenKey, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UsernameFromContext returns the authenticated username, or "" for anonymous requests.
func UsernameFromContext(r *http.Request) string {
	username, _ := r.Context().Value(ContextUsernameKey).(string)
	return username
}

// TokenFromContext returns the validated session token, or "" for anonymous requests.
func TokenFromContext(r *http.Request) string {
	token, _ := r.Context().Value(ContextTokenKey).(string)
	return token
}
