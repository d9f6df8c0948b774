package security

import (
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	auth := NewAuthService(testSecret, time.Hour)

	token, err := auth.GenerateToken("u1", "amy@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	identity, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if identity.UID != "u1" || identity.Email != "amy@example.com" {
		t.Errorf("identity = %+v", identity)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	auth := NewAuthService(testSecret, time.Hour)
	other := NewAuthService("another-secret-that-is-long-enough", time.Hour)

	token, err := auth.GenerateToken("u1", "amy@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("token validated with the wrong secret")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	auth := NewAuthService(testSecret, -time.Minute)

	token, err := auth.GenerateToken("u1", "amy@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := auth.ValidateToken(token); err == nil {
		t.Error("expired token validated")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	auth := NewAuthService(testSecret, time.Hour)
	if _, err := auth.ValidateToken("not-a-jwt"); err == nil {
		t.Error("garbage token validated")
	}
}

func TestHashLedgerPassword(t *testing.T) {
	hash, err := HashLedgerPassword("s3cret")
	if err != nil {
		t.Fatalf("HashLedgerPassword: %v", err)
	}
	if hash == "" || hash == "s3cret" {
		t.Errorf("hash = %q", hash)
	}

	if err := CheckLedgerPassword(hash, "s3cret"); err != nil {
		t.Errorf("CheckLedgerPassword match: %v", err)
	}
	if err := CheckLedgerPassword(hash, "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestHashLedgerPasswordEmptyStaysEmpty(t *testing.T) {
	hash, err := HashLedgerPassword("")
	if err != nil {
		t.Fatalf("HashLedgerPassword: %v", err)
	}
	if hash != "" {
		t.Errorf("empty password hashed to %q", hash)
	}
}
