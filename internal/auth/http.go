// ABOUTME: HTTP middleware that attaches the caller's uid to the request context
// ABOUTME: Bearer JWTs on TCP listeners, kernel peer credentials on unix sockets

package auth

import (
	"net/http"
	"strings"

	"github.com/2389/coven-mailbox/internal/identity"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// CallerMiddleware creates an HTTP middleware that establishes the caller.
// A uid already attached by the connection (peer credentials) wins; otherwise
// the bearer token is verified. With a nil verifier only peer credentials are accepted.
func CallerMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := identity.CallerFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			if verifier == nil {
				http.Error(w, `{"error":"caller identity unavailable"}`, http.StatusUnauthorized)
				return
			}

			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			uid, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithCaller(r.Context(), uid)))
		})
	}
}
