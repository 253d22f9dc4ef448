package utils

import (
	"strings"
	"testing"
)

func TestTokenPairRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")

	access, refresh, expiresIn, err := svc.GenerateTokenPair("user-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if expiresIn == 0 {
		t.Error("expiresIn is zero")
	}

	claims, err := svc.ValidateAccessToken(access)
	if err != nil {
		t.Fatalf("access token rejected: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@example.com" {
		t.Errorf("claims = %+v", claims)
	}

	rclaims, err := svc.ValidateRefreshToken(refresh)
	if err != nil {
		t.Fatalf("refresh token rejected: %v", err)
	}
	if rclaims.UserID != "user-1" {
		t.Errorf("refresh claims = %+v", rclaims)
	}
}

func TestTokenTypeEnforcement(t *testing.T) {
	svc := NewJWTService("test-secret")
	access, refresh, _, err := svc.GenerateTokenPair("user-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ValidateRefreshToken(access); err == nil {
		t.Error("access token accepted as refresh token")
	}
	if _, err := svc.ValidateAccessToken(refresh); err == nil {
		t.Error("refresh token accepted as access token")
	}

	pending, err := svc.GenerateTwoFactorToken("user-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateAccessToken(pending); err == nil {
		t.Error("twofactor token accepted as access token")
	}
	if _, err := svc.ValidateTwoFactorToken(pending); err != nil {
		t.Errorf("twofactor token rejected by its own validator: %v", err)
	}
	if _, err := svc.ValidateTwoFactorToken(access); err == nil {
		t.Error("access token accepted as twofactor token")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	signer := NewJWTService("secret-a")
	verifier := NewJWTService("secret-b")

	access, _, _, err := signer.GenerateTokenPair("user-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.ValidateToken(access); err == nil {
		t.Error("token signed with a different secret accepted")
	}
}

func TestGenerateURLToken(t *testing.T) {
	a, err := GenerateURLToken(24)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateURLToken(24)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two tokens are identical")
	}
	if strings.ContainsAny(a, "+/=") {
		t.Errorf("token %q is not URL safe", a)
	}
}

func TestHashToken(t *testing.T) {
	h := HashToken("some-refresh-token")
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h))
	}
	if h != HashToken("some-refresh-token") {
		t.Error("hash is not deterministic")
	}
	if h == HashToken("other-token") {
		t.Error("different tokens hash equal")
	}
}
