package handlers_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestConversationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme", "acme")
	base := fmt.Sprintf("/api/organizations/%s/conversations", orgID)

	rec := env.do(http.MethodPost, base, ownerToken, map[string]string{
		"subject":    "Pricing question",
		"peer_email": "customer@example.com",
		"body":       "Hi, thanks for reaching out.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create conversation: status = %d body %s", rec.Code, rec.Body.String())
	}
	conv, _ := decode(t, rec)["conversation"].(map[string]interface{})
	convID, _ := conv["id"].(string)
	if conv["status"] != "open" {
		t.Errorf("status = %v, want open", conv["status"])
	}

	// The opening message is there.
	rec = env.do(http.MethodGet, base+"/"+convID, ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get conversation: status = %d", rec.Code)
	}
	messages, _ := decode(t, rec)["messages"].([]interface{})
	if len(messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(messages))
	}
	if messages[0].(map[string]interface{})["direction"] != "out" {
		t.Errorf("direction = %v, want out", messages[0].(map[string]interface{})["direction"])
	}

	rec = env.do(http.MethodPost, base+"/"+convID+"/messages", ownerToken, map[string]string{
		"body": "Following up on my previous note.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("post message: status = %d body %s", rec.Code, rec.Body.String())
	}

	// Close, then replying conflicts until reopened.
	rec = env.do(http.MethodPost, base+"/"+convID+"/status", ownerToken, map[string]string{"status": "closed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("close: status = %d", rec.Code)
	}
	rec = env.do(http.MethodPost, base+"/"+convID+"/messages", ownerToken, map[string]string{"body": "One more thing."})
	if rec.Code != http.StatusConflict {
		t.Errorf("reply to closed: status = %d, want 409", rec.Code)
	}
	rec = env.do(http.MethodPost, base+"/"+convID+"/status", ownerToken, map[string]string{"status": "open"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reopen: status = %d", rec.Code)
	}
	rec = env.do(http.MethodPost, base+"/"+convID+"/messages", ownerToken, map[string]string{"body": "One more thing."})
	if rec.Code != http.StatusCreated {
		t.Errorf("reply after reopen: status = %d", rec.Code)
	}

	// Status filter only returns matching threads.
	rec = env.do(http.MethodGet, base+"?status=closed", ownerToken, nil)
	closed, _ := decode(t, rec)["conversations"].([]interface{})
	if len(closed) != 0 {
		t.Errorf("closed conversations = %d, want 0", len(closed))
	}
	rec = env.do(http.MethodGet, base+"?status=open", ownerToken, nil)
	open, _ := decode(t, rec)["conversations"].([]interface{})
	if len(open) != 1 {
		t.Errorf("open conversations = %d, want 1", len(open))
	}

	// Soft delete hides the thread from list and get.
	rec = env.do(http.MethodDelete, base+"/"+convID, ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	rec = env.do(http.MethodGet, base+"/"+convID, ownerToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: status = %d, want 404", rec.Code)
	}
}

func TestConversationTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	aToken, _ := env.account("a@example.com")
	aOrg := env.org(aToken, "Org A", "org-a")
	bToken, _ := env.account("b@example.com")
	bOrg := env.org(bToken, "Org B", "org-b")

	rec := env.do(http.MethodPost, fmt.Sprintf("/api/organizations/%s/conversations", aOrg), aToken, map[string]string{
		"subject":    "Private thread",
		"peer_email": "peer@example.com",
	})
	conv, _ := decode(t, rec)["conversation"].(map[string]interface{})
	convID, _ := conv["id"].(string)

	// Another tenant cannot reach the thread, not even through their own org.
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%s/conversations/%s", bOrg, convID), bToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant get: status = %d, want 404", rec.Code)
	}
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%s/conversations", aOrg), bToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-member list: status = %d, want 403", rec.Code)
	}
}

func TestLeadStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme", "acme")
	base := fmt.Sprintf("/api/organizations/%s/leads", orgID)

	rec := env.do(http.MethodPost, base, ownerToken, map[string]string{
		"email":   "prospect@example.com",
		"name":    "Pat Prospect",
		"company": "BigCo",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create lead: status = %d body %s", rec.Code, rec.Body.String())
	}
	lead, _ := decode(t, rec)["lead"].(map[string]interface{})
	leadID, _ := lead["id"].(string)
	if lead["status"] != "new" {
		t.Errorf("initial status = %v, want new", lead["status"])
	}
	if lead["source"] != "manual" {
		t.Errorf("source = %v, want manual", lead["source"])
	}

	for _, status := range []string{"contacted", "qualified", "lost"} {
		rec = env.do(http.MethodPost, base+"/"+leadID+"/status", ownerToken, map[string]string{"status": status})
		if rec.Code != http.StatusOK {
			t.Fatalf("set status %s: status = %d", status, rec.Code)
		}
	}

	rec = env.do(http.MethodPost, base+"/"+leadID+"/status", ownerToken, map[string]string{"status": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status: status = %d, want 400", rec.Code)
	}
}

func TestTemplates(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme", "acme")
	base := fmt.Sprintf("/api/organizations/%s/templates", orgID)

	// Builtins show up before any custom template exists.
	rec := env.do(http.MethodGet, base, ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list templates: status = %d", rec.Code)
	}
	templates, _ := decode(t, rec)["templates"].([]interface{})
	if len(templates) == 0 {
		t.Fatal("expected builtin templates")
	}
	first := templates[0].(map[string]interface{})
	if first["builtin"] != true {
		t.Errorf("first template builtin = %v, want true", first["builtin"])
	}
	builtinID, _ := first["id"].(string)
	if !strings.HasPrefix(builtinID, "builtin:") {
		t.Errorf("builtin id = %q, want builtin: prefix", builtinID)
	}
	builtinCount := len(templates)

	rec = env.do(http.MethodPost, base, ownerToken, map[string]string{
		"name": "Renewal nudge",
		"body": "Hi {{name}}, your plan renews soon.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create template: status = %d body %s", rec.Code, rec.Body.String())
	}
	tpl, _ := decode(t, rec)["template"].(map[string]interface{})
	tplID, _ := tpl["id"].(string)

	rec = env.do(http.MethodGet, base, ownerToken, nil)
	templates, _ = decode(t, rec)["templates"].([]interface{})
	if len(templates) != builtinCount+1 {
		t.Errorf("templates = %d, want %d", len(templates), builtinCount+1)
	}

	// Builtins reject mutation.
	rec = env.do(http.MethodPatch, base+"/"+builtinID, ownerToken, map[string]string{"name": "Hijacked"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("patch builtin: status = %d, want 403", rec.Code)
	}
	rec = env.do(http.MethodDelete, base+"/"+builtinID, ownerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("delete builtin: status = %d, want 403", rec.Code)
	}

	// Plain members can read but not write templates.
	memberToken, _, _ := addMember(t, env, ownerToken, orgID, "member@example.com", "member")
	rec = env.do(http.MethodGet, base, memberToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("member list templates: status = %d", rec.Code)
	}
	rec = env.do(http.MethodPost, base, memberToken, map[string]string{"name": "Nope", "body": "x"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("member create template: status = %d, want 403", rec.Code)
	}

	rec = env.do(http.MethodPatch, base+"/"+tplID, ownerToken, map[string]string{"subject": "Renewal"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch template: status = %d body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(http.MethodDelete, base+"/"+tplID, ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete template: status = %d", rec.Code)
	}
	rec = env.do(http.MethodGet, base, ownerToken, nil)
	templates, _ = decode(t, rec)["templates"].([]interface{})
	if len(templates) != builtinCount {
		t.Errorf("templates after delete = %d, want %d", len(templates), builtinCount)
	}
}
