// ABOUTME: Tests for the caller middleware
// ABOUTME: Covers bearer extraction, token validation, and peer-credential passthrough

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2389/coven-mailbox/internal/identity"
)

// httpTestSecret is a 32-byte secret that meets MinSecretLength requirement.
var httpTestSecret = []byte("http-middleware-test-secret-32b!")

// captureCaller returns a handler recording the caller it saw.
func captureCaller(got *identity.UID, seen *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, *seen = identity.CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestCallerMiddleware_ValidToken(t *testing.T) {
	verifier, err := NewJWTVerifier(httpTestSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	token, _ := verifier.Generate(1001, time.Hour)

	var got identity.UID
	var seen bool
	handler := CallerMiddleware(verifier)(captureCaller(&got, &seen))

	req := httptest.NewRequest(http.MethodGet, "/device", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !seen || got != 1001 {
		t.Errorf("expected caller 1001, got %d (seen=%v)", got, seen)
	}
}

func TestCallerMiddleware_Rejections(t *testing.T) {
	verifier, _ := NewJWTVerifier(httpTestSecret)
	expired, _ := verifier.Generate(1001, -time.Hour)

	tests := []struct {
		name    string
		header  string
		wantMsg string
	}{
		{"missing header", "", "missing authorization header"},
		{"basic auth", "Basic dXNlcjpwYXNz", "invalid authorization header format"},
		{"empty bearer", "Bearer ", "empty token"},
		{"garbage token", "Bearer nope", "invalid token"},
		{"expired token", "Bearer " + expired, "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := CallerMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodPost, "/device", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", rec.Code)
			}
			if called {
				t.Error("handler should not be called")
			}
			if !strings.Contains(rec.Body.String(), tt.wantMsg) {
				t.Errorf("expected body to contain %q, got %q", tt.wantMsg, rec.Body.String())
			}
		})
	}
}

func TestCallerMiddleware_PeerCredentialsWin(t *testing.T) {
	var got identity.UID
	var seen bool
	handler := CallerMiddleware(nil)(captureCaller(&got, &seen))

	req := httptest.NewRequest(http.MethodGet, "/device", nil)
	req = req.WithContext(identity.WithCaller(req.Context(), 42))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !seen || got != 42 {
		t.Errorf("expected caller 42, got %d", got)
	}
}

func TestCallerMiddleware_NoVerifierNoPeer(t *testing.T) {
	handler := CallerMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/device", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}
