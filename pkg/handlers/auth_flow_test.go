package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"teamhub-backend/pkg/utils"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "User@Example.COM",
		"password": "correct-horse-battery",
		"name":     "Case Test",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d body %s", rec.Code, rec.Body.String())
	}
	user, _ := decode(t, rec)["user"].(map[string]interface{})
	if user["email"] != "user@example.com" {
		t.Errorf("email = %v, want lowercased", user["email"])
	}

	// Duplicate registration conflicts regardless of case.
	rec = env.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "user@example.com",
		"password": "another-password-123",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: status = %d, want 409", rec.Code)
	}

	// Wrong password and unknown email produce the same answer.
	for _, creds := range []map[string]string{
		{"email": "user@example.com", "password": "wrong-password-here"},
		{"email": "nobody@example.com", "password": "correct-horse-battery"},
	} {
		rec = env.do(http.MethodPost, "/api/auth/login", "", creds)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("bad login %v: status = %d, want 401", creds["email"], rec.Code)
		}
	}

	rec = env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "user@example.com",
		"password": "correct-horse-battery",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d body %s", rec.Code, rec.Body.String())
	}
	data := decode(t, rec)
	if data["access_token"] == "" || data["refresh_token"] == "" {
		t.Error("login did not return a token pair")
	}
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	env.account("user@example.com")

	rec := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "user@example.com",
		"password": "correct-horse-battery",
	})
	data := decode(t, rec)
	firstRefresh, _ := data["refresh_token"].(string)

	rec = env.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": firstRefresh})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status = %d body %s", rec.Code, rec.Body.String())
	}
	rotated := decode(t, rec)
	secondRefresh, _ := rotated["refresh_token"].(string)
	if secondRefresh == "" || secondRefresh == firstRefresh {
		t.Error("refresh did not rotate the refresh token")
	}

	// The consumed token is dead.
	rec = env.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": firstRefresh})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("replayed refresh: status = %d, want 401", rec.Code)
	}

	// The rotated one still works.
	rec = env.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": secondRefresh})
	if rec.Code != http.StatusOK {
		t.Errorf("rotated refresh: status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	env.account("user@example.com")

	rec := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "user@example.com",
		"password": "correct-horse-battery",
	})
	data := decode(t, rec)
	refresh, _ := data["refresh_token"].(string)

	rec = env.do(http.MethodPost, "/api/auth/logout", "", map[string]string{"refresh_token": refresh})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status = %d", rec.Code)
	}
	// Logout is idempotent.
	rec = env.do(http.MethodPost, "/api/auth/logout", "", map[string]string{"refresh_token": refresh})
	if rec.Code != http.StatusOK {
		t.Errorf("second logout: status = %d, want 200", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": refresh})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout: status = %d, want 401", rec.Code)
	}
}

func TestSessionList(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.account("user@example.com")

	// A second login adds a second session.
	env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "user@example.com",
		"password": "correct-horse-battery",
	})

	rec := env.do(http.MethodGet, "/api/auth/sessions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list sessions: status = %d", rec.Code)
	}
	sessions, _ := decode(t, rec)["sessions"].([]interface{})
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}

	// Users can only revoke their own sessions.
	otherToken, _ := env.account("other@example.com")
	sessionID, _ := sessions[0].(map[string]interface{})["id"].(string)
	rec = env.do(http.MethodDelete, "/api/auth/sessions/"+sessionID, otherToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("revoke foreign session: status = %d, want 404", rec.Code)
	}

	rec = env.do(http.MethodDelete, "/api/auth/sessions/"+sessionID, token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("revoke own session: status = %d", rec.Code)
	}
}

func TestTwoFactorFlow(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.account("user@example.com")

	// Setup issues a secret but does not enable 2FA yet.
	rec := env.do(http.MethodPost, "/api/auth/2fa/setup", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("2fa setup: status = %d body %s", rec.Code, rec.Body.String())
	}
	secret, _ := decode(t, rec)["secret"].(string)
	if secret == "" {
		t.Fatal("setup returned no secret")
	}

	rec = env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "user@example.com",
		"password": "correct-horse-battery",
	})
	if d := decode(t, rec); d["two_factor_required"] == true {
		t.Fatal("2fa required before enable")
	}

	// A wrong code does not enable it.
	rec = env.do(http.MethodPost, "/api/auth/2fa/enable", token, map[string]string{"code": "000000"})
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusUnauthorized {
		t.Errorf("enable with bad code: status = %d", rec.Code)
	}

	code, err := utils.TOTPCode(secret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	rec = env.do(http.MethodPost, "/api/auth/2fa/enable", token, map[string]string{"code": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("enable: status = %d body %s", rec.Code, rec.Body.String())
	}

	// Login now returns a pending token instead of the real pair.
	rec = env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "user@example.com",
		"password": "correct-horse-battery",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with 2fa: status = %d", rec.Code)
	}
	data := decode(t, rec)
	if data["two_factor_required"] != true {
		t.Fatal("expected two_factor_required")
	}
	pending, _ := data["pending_token"].(string)
	if pending == "" {
		t.Fatal("no pending token")
	}
	if data["access_token"] != nil && data["access_token"] != "" {
		t.Error("access token leaked before 2fa verification")
	}

	// The pending token is not an access token.
	rec = env.do(http.MethodGet, "/api/auth/me", pending, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("pending token as access: status = %d, want 401", rec.Code)
	}

	// Wrong code fails verification.
	rec = env.do(http.MethodPost, "/api/auth/2fa/verify", "", map[string]string{
		"pending_token": pending,
		"code":          "000000",
	})
	if rec.Code != http.StatusUnauthorized && rec.Code != http.StatusBadRequest {
		t.Errorf("verify bad code: status = %d", rec.Code)
	}

	code, err = utils.TOTPCode(secret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	rec = env.do(http.MethodPost, "/api/auth/2fa/verify", "", map[string]string{
		"pending_token": pending,
		"code":          code,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: status = %d body %s", rec.Code, rec.Body.String())
	}
	verified := decode(t, rec)
	access, _ := verified["access_token"].(string)
	if access == "" {
		t.Fatal("verification returned no access token")
	}

	rec = env.do(http.MethodGet, "/api/auth/me", access, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("me after 2fa: status = %d", rec.Code)
	}

	// Disable requires a valid code, then logins go back to normal.
	code, _ = utils.TOTPCode(secret, time.Now())
	rec = env.do(http.MethodPost, "/api/auth/2fa/disable", access, map[string]string{"code": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("disable: status = %d body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "user@example.com",
		"password": "correct-horse-battery",
	})
	if d := decode(t, rec); d["two_factor_required"] == true {
		t.Error("2fa still required after disable")
	}
}
