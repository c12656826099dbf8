// Package middleware provides HTTP middleware for the honeytrap API.
package middleware

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyAuth returns middleware that requires the shared secret in the
// x-api-key header. An empty secret disables the check.
func APIKeyAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" {
				provided := r.Header.Get("x-api-key")
				if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					w.Write([]byte(`{"error":"invalid or missing API key"}`))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
