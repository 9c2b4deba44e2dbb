package authz

import (
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Fatalf("expected matching password to check out")
	}
	if CheckPassword(hash, "wrong password") {
		t.Fatalf("expected non-matching password to fail")
	}
}

func TestToken_RoundTrip(t *testing.T) {
	tok := GenerateToken("operator1", time.Hour, "secret")
	subject, err := ParseToken(tok, "secret")
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if subject != "operator1" {
		t.Fatalf("expected subject operator1, got %q", subject)
	}
}

func TestToken_WrongSecretRejected(t *testing.T) {
	tok := GenerateToken("operator1", time.Hour, "secret")
	if _, err := ParseToken(tok, "other-secret"); err == nil {
		t.Fatalf("expected signature mismatch to be rejected")
	}
}

func TestToken_ExpiredRejected(t *testing.T) {
	tok := GenerateToken("operator1", -time.Minute, "secret")
	if _, err := ParseToken(tok, "secret"); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
