package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	handler "teamhub-backend/api"
	"teamhub-backend/pkg/config"
	"teamhub-backend/pkg/database"

	"github.com/go-chi/chi/v5"
)

// testEnv wires the full router against an in-memory SQLite database,
// so tests exercise the same stack as production requests.
type testEnv struct {
	t      *testing.T
	router *chi.Mux
	db     database.DatabaseInterface
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Environment:       "development",
		Port:              "3000",
		SQLitePath:        ":memory:",
		JWTSecret:         "test-secret-for-handlers",
		BaseURL:           "http://localhost:3000",
		LeadWebhookSecret: "webhook-test-secret",
	}

	return &testEnv{t: t, router: handler.NewRouter(cfg, db), db: db}
}

// do sends a JSON request through the router. A non-empty token goes
// into the Authorization header.
func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// doWithHeader is do with one extra request header.
func (e *testEnv) doWithHeader(method, path, token string, body interface{}, header, value string) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set(header, value)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decode unwraps the success envelope's data object.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return envelope.Data
}

// account registers a user and returns the access token plus user id.
func (e *testEnv) account(email string) (token, userID string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct-horse-battery",
		"name":     "Test User",
	})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	data := decode(e.t, rec)
	token, _ = data["access_token"].(string)
	user, _ := data["user"].(map[string]interface{})
	userID, _ = user["id"].(string)
	if token == "" || userID == "" {
		e.t.Fatalf("register %s: missing token or id in %v", email, data)
	}
	return token, userID
}

// org creates an organization as the given user and returns its id.
func (e *testEnv) org(token, name, slug string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/organizations", token, map[string]string{
		"name": name,
		"slug": slug,
	})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("create org %s: status %d body %s", slug, rec.Code, rec.Body.String())
	}
	org, _ := decode(e.t, rec)["organization"].(map[string]interface{})
	id, _ := org["id"].(string)
	if id == "" {
		e.t.Fatalf("create org %s: no id", slug)
	}
	return id
}

// invite sends an invitation and returns its token and id.
func (e *testEnv) invite(token, orgID, email, role string) (invToken, invID string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, fmt.Sprintf("/api/organizations/%s/invitations", orgID), token, map[string]string{
		"email": email,
		"role":  role,
	})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("invite %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	inv, _ := decode(e.t, rec)["invitation"].(map[string]interface{})
	invToken, _ = inv["token"].(string)
	invID, _ = inv["id"].(string)
	if invToken == "" || invID == "" {
		e.t.Fatalf("invite %s: missing token or id in %v", email, inv)
	}
	return invToken, invID
}
