package middleware

import (
	"context"
	"net/http"
	"strings"
)

type sessionTokenKey struct{}

// SessionToken extracts the raw session token from the named cookie, or from
// an "Authorization: Bearer" header when the cookie is absent, and stores it
// in the request context. It never rejects a request; an absent token is
// left for the handler to judge.
func SessionToken(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(cookieName); err == nil {
				token = c.Value
			}
			if token == "" {
				if t, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
					token = strings.TrimSpace(t)
				}
			}

			if token != "" {
				r = r.WithContext(context.WithValue(r.Context(), sessionTokenKey{}, token))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionTokenFromContext returns the raw session token found by SessionToken.
func SessionTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionTokenKey{}).(string)
	return token, ok && token != ""
}
