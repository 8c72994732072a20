package auth

import (
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	tok, err := SignJWT(42, "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := ParseJWT(tok, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected 42, got %d", id)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	tok, _ := SignJWT(1, "secret", time.Hour)
	if _, err := ParseJWT(tok, "other"); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestJWTExpired(t *testing.T) {
	tok, _ := SignJWT(1, "secret", -time.Minute)
	if _, err := ParseJWT(tok, "secret"); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(h, "hunter2") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(h, "hunter3") || CheckPassword("", "hunter2") {
		t.Fatalf("unexpected match")
	}
}
