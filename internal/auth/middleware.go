package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys so no other package can
// read or shadow the values this package stores.
type contextKey string

const claimsKey contextKey = "claims"

// RequireAuth enforces authentication on protected routes. It reads the
// access token from the "Authorization: Bearer <token>" header, verifies it,
// and stores the claims in the request context. A missing, malformed or
// invalid token gets a uniform 401 with no further detail.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extractClaims(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"unauthorized"}`))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext retrieves the authenticated session claims set by
// RequireAuth. The second return is false on anonymous requests.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// UserIDFromContext is a shorthand for the authenticated principal's ID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return c.Subject, true
}

func extractClaims(r *http.Request, tokens *TokenService) (*Claims, error) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return nil, ErrInvalidToken
	}

	return tokens.VerifyAccess(token)
}
