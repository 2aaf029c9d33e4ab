package services

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("secret")
	token, err := svc.GenerateToken("user-42")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sub, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("expected subject user-42, got %q", sub)
	}
}

func TestValidateRejectsForeignToken(t *testing.T) {
	token, err := NewTokenService("secret-a").GenerateToken("user-42")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenService("secret-b").ValidateToken(token); err == nil {
		t.Fatal("expected a token signed with another key to be rejected")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := NewTokenService("secret").ValidateToken("not-a-jwt"); err == nil {
		t.Fatal("expected garbage to be rejected")
	}
}
