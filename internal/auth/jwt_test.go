package auth

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateAndVerify(t *testing.T) {
	if err := InitJWT("test-secret", time.Hour); err != nil {
		t.Fatalf("InitJWT failed: %v", err)
	}

	token, err := GenerateJWT(42, "user@example.com")

	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	claims, err := VerifyJWT(token)

	if err != nil {
		t.Fatalf("VerifyJWT failed: %v", err)
	}

	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}

	if claims.Email != "user@example.com" {
		t.Errorf("Email = %q, want user@example.com", claims.Email)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	if err := InitJWT("test-secret", time.Hour); err != nil {
		t.Fatalf("InitJWT failed: %v", err)
	}

	token, err := GenerateJWT(42, "user@example.com")

	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	// Corrupt the signature segment.
	parts := strings.Split(token, ".")
	parts[2] = "AAAA" + parts[2][4:]
	tampered := strings.Join(parts, ".")

	if _, err := VerifyJWT(tampered); err == nil {
		t.Error("VerifyJWT accepted a tampered token")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	if err := InitJWT("test-secret", -time.Minute); err != nil {
		t.Fatalf("InitJWT failed: %v", err)
	}

	token, err := GenerateJWT(42, "user@example.com")

	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	if _, err := VerifyJWT(token); err == nil {
		t.Error("VerifyJWT accepted an expired token")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	if err := InitJWT("first-secret", time.Hour); err != nil {
		t.Fatalf("InitJWT failed: %v", err)
	}

	token, err := GenerateJWT(42, "user@example.com")

	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	if err := InitJWT("second-secret", time.Hour); err != nil {
		t.Fatalf("InitJWT failed: %v", err)
	}

	if _, err := VerifyJWT(token); err == nil {
		t.Error("VerifyJWT accepted a token signed with a different secret")
	}
}

func TestInitJWTRequiresSecret(t *testing.T) {
	if err := InitJWT("", time.Hour); err == nil {
		t.Error("InitJWT accepted an empty secret")
	}
}
