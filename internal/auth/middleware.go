package auth

import (
	"net/http"
	"strings"
)

// BearerToken extracts the credential from the Authorization header, falling back to the
// token query parameter (browsers cannot set headers on WebSocket upgrades).
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Middleware rejects requests without a valid bearer credential and attaches the identity.
func Middleware(p *Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			identity, err := p.Authenticate(tok)
			if err != nil {
				if IsExpired(err) {
					http.Error(w, "token expired", http.StatusUnauthorized)
					return
				}
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), identity)))
		})
	}
}
