package auth_test

import (
	"testing"
	"time"

	"github.com/comandaweb/terminal/internal/auth"
	"github.com/golang-jwt/jwt/v5"
)

// signToken builds a backend-style token. The terminal never verifies the
// signature, so any secret will do.
func signToken(t *testing.T, role string, exp time.Time) string {
	t.Helper()
	claims := auth.Claims{
		UserID: 9,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestParseClaims(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := signToken(t, "cozinha", exp)

	claims, err := auth.ParseClaims(token)
	if err != nil {
		t.Fatalf("parse claims: %v", err)
	}
	if claims.Role != "cozinha" {
		t.Errorf("role: got %q, want cozinha", claims.Role)
	}
	if claims.UserID != 9 {
		t.Errorf("user id: got %d, want 9", claims.UserID)
	}
	if claims.Expired(exp.Add(-time.Second)) {
		t.Error("should not be expired before exp")
	}
	if !claims.Expired(exp) {
		t.Error("should be expired at exp")
	}
}

func TestParseClaimsWithInvalidString(t *testing.T) {
	if _, err := auth.ParseClaims("not-a-jwt"); err == nil {
		t.Fatal("expected error parsing invalid token string")
	}
}

func TestClaimsWithoutExpiry(t *testing.T) {
	var c *auth.Claims
	if c.Expired(time.Now()) {
		t.Error("nil claims never expire")
	}
	c = &auth.Claims{}
	if c.Expired(time.Now()) {
		t.Error("claims without exp never expire")
	}
}
