package auth

import (
	"testing"
	"time"

	"callcenter-analytics/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "secret",
		JWTIssuer:      "issuer",
		JWTAudience:    "aud",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.IssueAccess(now, "user-1", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok == "" {
		t.Fatalf("expected token string")
	}

	claims, err := m.Verify(tok, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.IssueAccess(now, "u", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, now.Add(2*time.Hour)); err == nil {
		t.Fatalf("expected expiry rejection")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m1, _ := NewManager(config.AuthConfig{JWTSecret: "secret-a", AccessTokenTTL: time.Minute})
	m2, _ := NewManager(config.AuthConfig{JWTSecret: "secret-b", AccessTokenTTL: time.Minute})

	now := time.Now().UTC()
	tok, err := m1.IssueAccess(now, "u", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m2.Verify(tok, now); err == nil {
		t.Fatalf("expected signature rejection")
	}
}
