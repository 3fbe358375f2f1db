package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/schoolsecure/hallpass/internal/model"
)

func TestNewAccessTokenClaims(t *testing.T) {
	at, err := NewAccessToken("test-secret", 42, model.RoleTeacher, 7, 15)
	if err != nil {
		t.Fatalf("token build failed: %v", err)
	}
	if at.Token == "" {
		t.Fatal("empty token string")
	}
	if remaining := time.Until(at.Exp); remaining < 14*time.Minute || remaining > 16*time.Minute {
		t.Fatalf("expiry should be ~15m out, got %s", remaining)
	}

	parsed, err := jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token does not verify: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("unexpected claims type %T", parsed.Claims)
	}
	if claims["sub"].(float64) != 42 {
		t.Fatalf("sub claim lost: %v", claims["sub"])
	}
	if claims["role"].(string) != "TEACHER" {
		t.Fatalf("role claim lost: %v", claims["role"])
	}
	if claims["school_id"].(float64) != 7 {
		t.Fatalf("school_id claim lost: %v", claims["school_id"])
	}
}

func TestNewAccessTokenWrongSecret(t *testing.T) {
	at, err := NewAccessToken("right-secret", 1, model.RoleStudent, 1, 15)
	if err != nil {
		t.Fatalf("token build failed: %v", err)
	}
	if _, err := jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("wrong-secret"), nil
	}); err == nil {
		t.Fatal("token verified under the wrong secret")
	}
}

func TestNewRefreshToken(t *testing.T) {
	rt, err := NewRefreshToken(14)
	if err != nil {
		t.Fatalf("refresh token build failed: %v", err)
	}
	if len(rt.Raw) != 96 {
		t.Fatalf("expected 96 hex chars, got %d", len(rt.Raw))
	}
	if remaining := time.Until(rt.Exp); remaining < 13*24*time.Hour {
		t.Fatalf("refresh expiry too soon: %s", remaining)
	}

	other, err := NewRefreshToken(14)
	if err != nil {
		t.Fatalf("second refresh token build failed: %v", err)
	}
	if rt.Raw == other.Raw {
		t.Fatal("two refresh tokens should never collide")
	}
}

func TestHashRefreshRawIsStable(t *testing.T) {
	a := HashRefreshRaw("some-raw-token")
	b := HashRefreshRaw("some-raw-token")
	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if a == HashRefreshRaw("another-token") {
		t.Fatal("different tokens should hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex length 64, got %d", len(a))
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !VerifyPassword(hash, "hunter2") {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(hash, "hunter3") {
		t.Fatal("wrong password accepted")
	}
}

func TestHashPasswordNormalizesCost(t *testing.T) {
	hash, err := HashPassword("pw", 0)
	if err != nil {
		t.Fatalf("zero cost should fall back to default: %v", err)
	}
	if !VerifyPassword(hash, "pw") {
		t.Fatal("fallback-cost hash does not verify")
	}
}
