package middleware

import (
	"net/http"
	"strings"
)

// CredentialFromRequest extracts the bearer credential from a request.
// The webhook contract accepts the X-Auth-Token header; a standard
// Authorization Bearer header works as well. Returns "" when absent.
func CredentialFromRequest(r *http.Request) string {
	if token := r.Header.Get("X-Auth-Token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
