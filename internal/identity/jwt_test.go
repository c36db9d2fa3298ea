package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims *TokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims(userID string) *TokenClaims {
	return &TokenClaims{
		UserID: userID,
		Role:   "USER",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestJWTValidatorSuccess(t *testing.T) {
	v := NewJWTValidator(testSecret, newFakeStore(), newTestLogger())
	credential := signToken(t, testSecret, validClaims("42"))

	id, err := v.Validate(context.Background(), credential)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if id.UserID != "42" || id.NeighborhoodID != "sector2" || id.Name != "Asha" {
		t.Errorf("Wrong identity: %+v", id)
	}
}

func TestJWTValidatorSubjectFallback(t *testing.T) {
	v := NewJWTValidator(testSecret, newFakeStore(), newTestLogger())
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	id, err := v.Validate(context.Background(), signToken(t, testSecret, claims))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if id.UserID != "42" {
		t.Errorf("Expected user 42 via sub claim, got %q", id.UserID)
	}
}

func TestJWTValidatorWrongSecret(t *testing.T) {
	v := NewJWTValidator(testSecret, newFakeStore(), newTestLogger())
	credential := signToken(t, "other-secret", validClaims("42"))

	if _, err := v.Validate(context.Background(), credential); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Expected ErrInvalidCredential, got %v", err)
	}
}

func TestJWTValidatorExpiredToken(t *testing.T) {
	v := NewJWTValidator(testSecret, newFakeStore(), newTestLogger())
	claims := validClaims("42")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	if _, err := v.Validate(context.Background(), signToken(t, testSecret, claims)); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Expected ErrInvalidCredential, got %v", err)
	}
}

func TestJWTValidatorGarbage(t *testing.T) {
	v := NewJWTValidator(testSecret, newFakeStore(), newTestLogger())

	for _, credential := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := v.Validate(context.Background(), credential); !errors.Is(err, ErrInvalidCredential) {
			t.Errorf("credential %q: expected ErrInvalidCredential, got %v", credential, err)
		}
	}
}

func TestJWTValidatorNoUserIDClaim(t *testing.T) {
	v := NewJWTValidator(testSecret, newFakeStore(), newTestLogger())
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	if _, err := v.Validate(context.Background(), signToken(t, testSecret, claims)); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Expected ErrInvalidCredential, got %v", err)
	}
}

func TestJWTValidatorUnknownUser(t *testing.T) {
	v := NewJWTValidator(testSecret, newFakeStore(), newTestLogger())
	credential := signToken(t, testSecret, validClaims("404"))

	if _, err := v.Validate(context.Background(), credential); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Expected ErrInvalidCredential, got %v", err)
	}
}
