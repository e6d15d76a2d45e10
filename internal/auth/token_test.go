// ABOUTME: Tests for JWT token verification and generation
// ABOUTME: Covers uid subjects, expiry, wrong secrets, and signing method checks

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/coven-mailbox/internal/identity"
)

// testSecret is a 32-byte secret that meets MinSecretLength requirement.
var testSecret = []byte("mailbox-token-test-secret-32b!!!")

func TestNewJWTVerifier_WeakSecret(t *testing.T) {
	_, err := NewJWTVerifier([]byte("short"))
	if !errors.Is(err, ErrWeakSecret) {
		t.Fatalf("expected ErrWeakSecret, got %v", err)
	}
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}

	token, err := verifier.Generate(1000, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	uid, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if uid != 1000 {
		t.Errorf("expected uid 1000, got %d", uid)
	}
}

func TestJWTVerifier_RootUID(t *testing.T) {
	verifier, _ := NewJWTVerifier(testSecret)

	token, err := verifier.Generate(0, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	uid, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if uid != 0 {
		t.Errorf("expected uid 0, got %d", uid)
	}
}

func TestJWTVerifier_Expired(t *testing.T) {
	verifier, _ := NewJWTVerifier(testSecret)

	token, err := verifier.Generate(1000, -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	signer, _ := NewJWTVerifier(testSecret)
	other, _ := NewJWTVerifier([]byte("a-completely-different-secret-32"))

	token, _ := signer.Generate(1000, time.Hour)

	_, err := other.Verify(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTVerifier_Garbage(t *testing.T) {
	verifier, _ := NewJWTVerifier(testSecret)

	_, err := verifier.Verify("not.a.token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	verifier, _ := NewJWTVerifier(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	_, err = verifier.Verify(signed)
	if !errors.Is(err, ErrMissingClaim) {
		t.Errorf("expected ErrMissingClaim, got %v", err)
	}
}

func TestJWTVerifier_NonNumericSubject(t *testing.T) {
	verifier, _ := NewJWTVerifier(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := token.SignedString(testSecret)

	uid, err := verifier.Verify(signed)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	if uid != identity.NoUID {
		t.Errorf("expected NoUID on failure, got %d", uid)
	}
}

func TestJWTVerifier_RejectsNoneAlgorithm(t *testing.T) {
	verifier, _ := NewJWTVerifier(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "1000",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
