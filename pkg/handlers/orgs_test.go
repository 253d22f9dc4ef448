package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"teamhub-backend/pkg/models"
	"teamhub-backend/pkg/utils"
)

func TestCreateOrganizationSlugValidation(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.account("founder@example.com")

	cases := []struct {
		name string
		slug string
		want int
	}{
		{"valid slug", "acme-inc", http.StatusCreated},
		{"leading digit", "1acme", http.StatusBadRequest},
		{"leading hyphen", "-acme", http.StatusBadRequest},
		{"uppercase", "Acme", http.StatusBadRequest},
		{"underscore", "acme_inc", http.StatusBadRequest},
		{"too short", "a", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/organizations", token, map[string]string{
				"name": "Acme",
				"slug": tc.slug,
			})
			if rec.Code != tc.want {
				t.Errorf("slug %q: status = %d, want %d (body %s)", tc.slug, rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	// Duplicate slug is a conflict, not a validation error.
	rec := env.do(http.MethodPost, "/api/organizations", token, map[string]string{
		"name": "Acme Again",
		"slug": "acme-inc",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate slug: status = %d, want 409", rec.Code)
	}
}

func TestListMyOrganizationsETag(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.account("founder@example.com")
	env.org(token, "Acme", "acme")

	rec := env.do(http.MethodGet, "/api/organizations", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list orgs: status = %d", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header on organization list")
	}

	// Replaying with If-None-Match should short-circuit.
	rec2 := env.doWithHeader(http.MethodGet, "/api/organizations", token, nil, "If-None-Match", etag)
	if rec2.Code != http.StatusNotModified {
		t.Errorf("conditional list: status = %d, want 304", rec2.Code)
	}
}

func TestInviteAcceptFlow(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme", "acme")

	invToken, _ := env.invite(ownerToken, orgID, "new@example.com", "member")

	// A second pending invitation for the same email is rejected.
	rec := env.do(http.MethodPost, fmt.Sprintf("/api/organizations/%s/invitations", orgID), ownerToken, map[string]string{
		"email": "new@example.com",
		"role":  "member",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate invite: status = %d, want 409", rec.Code)
	}

	memberToken, _ := env.account("new@example.com")

	// The invitee sees the pending invitation.
	rec = env.do(http.MethodGet, "/api/invitations/my", memberToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list my invitations: status = %d", rec.Code)
	}
	invs, _ := decode(t, rec)["invitations"].([]interface{})
	if len(invs) != 1 {
		t.Fatalf("my invitations = %d, want 1", len(invs))
	}
	inv := invs[0].(map[string]interface{})
	if inv["status_label"] != "Pending" {
		t.Errorf("status_label = %v, want Pending", inv["status_label"])
	}

	// A different user cannot accept someone else's invitation.
	strangerToken, _ := env.account("stranger@example.com")
	rec = env.do(http.MethodPost, "/api/invitations/accept", strangerToken, map[string]string{"token": invToken})
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger accept: status = %d, want 403", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/invitations/accept", memberToken, map[string]string{"token": invToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept invitation: status = %d body %s", rec.Code, rec.Body.String())
	}

	// Accepting twice is a conflict.
	rec = env.do(http.MethodPost, "/api/invitations/accept", memberToken, map[string]string{"token": invToken})
	if rec.Code != http.StatusConflict {
		t.Errorf("second accept: status = %d, want 409", rec.Code)
	}

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%s/members", orgID), ownerToken, nil)
	members, _ := decode(t, rec)["members"].([]interface{})
	if len(members) != 2 {
		t.Errorf("members = %d, want 2", len(members))
	}
}

func TestRejectAndCancelStayDistinct(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme", "acme")

	rejectToken, _ := env.invite(ownerToken, orgID, "reject@example.com", "member")
	_, cancelID := env.invite(ownerToken, orgID, "cancel@example.com", "member")

	inviteeToken, _ := env.account("reject@example.com")
	rec := env.do(http.MethodPost, "/api/invitations/reject", inviteeToken, map[string]string{"token": rejectToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: status = %d body %s", rec.Code, rec.Body.String())
	}
	rejected, _ := decode(t, rec)["invitation"].(map[string]interface{})

	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/organizations/%s/invitations/%s", orgID, cancelID), ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status = %d body %s", rec.Code, rec.Body.String())
	}
	canceled, _ := decode(t, rec)["invitation"].(map[string]interface{})

	if rejected["status"] != "rejected" {
		t.Errorf("rejected status = %v", rejected["status"])
	}
	if canceled["status"] != "canceled" {
		t.Errorf("canceled status = %v", canceled["status"])
	}
	if rejected["status_label"] == canceled["status_label"] {
		t.Errorf("rejected and canceled share label %v", rejected["status_label"])
	}
	if rejected["status_badge"] == canceled["status_badge"] {
		t.Errorf("rejected and canceled share badge %v", rejected["status_badge"])
	}
}

func TestExpiredInvitation(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, ownerID := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme", "acme")

	// Plant an invitation whose deadline has already passed.
	token, err := utils.GenerateURLToken(24)
	if err != nil {
		t.Fatal(err)
	}
	inv := &models.OrganizationInvitation{
		OrganizationID: orgID,
		Email:          "late@example.com",
		Role:           models.RoleMember,
		InviterID:      ownerID,
		Token:          token,
		Status:         models.InvitationPending,
		ExpiresAt:      time.Now().Add(-time.Hour),
	}
	if err := env.db.CreateInvitation(inv); err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	lateToken, _ := env.account("late@example.com")
	rec := env.do(http.MethodPost, "/api/invitations/accept", lateToken, map[string]string{"token": token})
	if rec.Code != http.StatusGone {
		t.Errorf("accept expired: status = %d, want 410", rec.Code)
	}
	rec = env.do(http.MethodPost, "/api/invitations/reject", lateToken, map[string]string{"token": token})
	if rec.Code != http.StatusGone {
		t.Errorf("reject expired: status = %d, want 410", rec.Code)
	}

	// Expiry disables cancel too; the row stays pending and renders as
	// expired instead.
	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/organizations/%s/invitations/%s", orgID, inv.ID), ownerToken, nil)
	if rec.Code != http.StatusGone {
		t.Errorf("cancel expired: status = %d, want 410", rec.Code)
	}

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%s/invitations", orgID), ownerToken, nil)
	invs, _ := decode(t, rec)["invitations"].([]interface{})
	if len(invs) != 1 {
		t.Fatalf("org invitations = %d, want 1", len(invs))
	}
	view := invs[0].(map[string]interface{})
	if view["status"] != "pending" || view["status_label"] != "Expired" {
		t.Errorf("expired view = status %v label %v, want pending/Expired", view["status"], view["status_label"])
	}
}

// addMember runs the invite/accept flow and returns the new member's
// token, user id and membership id.
func addMember(t *testing.T, env *testEnv, ownerToken, orgID, email, role string) (token, userID, memberID string) {
	t.Helper()
	invToken, _ := env.invite(ownerToken, orgID, email, role)
	token, userID = env.account(email)
	rec := env.do(http.MethodPost, "/api/invitations/accept", token, map[string]string{"token": invToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept for %s: status = %d body %s", email, rec.Code, rec.Body.String())
	}
	membership, _ := decode(t, rec)["membership"].(map[string]interface{})
	memberID, _ = membership["id"].(string)
	if memberID == "" {
		t.Fatalf("accept for %s: no membership id", email)
	}
	return token, userID, memberID
}

func TestAdminCannotTouchOwner(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, ownerID := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme", "acme")

	adminToken, _, _ := addMember(t, env, ownerToken, orgID, "admin@example.com", "admin")

	// Find the owner's membership id.
	rec := env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%s/members", orgID), adminToken, nil)
	members, _ := decode(t, rec)["members"].([]interface{})
	var ownerMemberID string
	for _, raw := range members {
		m := raw.(map[string]interface{})
		if m["user_id"] == ownerID {
			ownerMemberID, _ = m["id"].(string)
		}
	}
	if ownerMemberID == "" {
		t.Fatal("owner membership not found")
	}

	rec = env.do(http.MethodPatch, fmt.Sprintf("/api/organizations/%s/members/%s", orgID, ownerMemberID), adminToken,
		map[string]interface{}{"role": "member"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("admin demotes owner: status = %d, want 403", rec.Code)
	}

	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/organizations/%s/members/%s", orgID, ownerMemberID), adminToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("admin removes owner: status = %d, want 403", rec.Code)
	}

	// Admin may not grant the owner role either.
	rec = env.do(http.MethodPost, fmt.Sprintf("/api/organizations/%s/invitations", orgID), adminToken, map[string]string{
		"email": "boss@example.com",
		"role":  "owner",
	})
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusForbidden {
		t.Errorf("admin invites owner: status = %d, want 400 or 403", rec.Code)
	}
}

func TestLastOwnerProtection(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme", "acme")

	// The sole owner cannot leave.
	rec := env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%s/members", orgID), ownerToken, nil)
	members, _ := decode(t, rec)["members"].([]interface{})
	ownerMemberID, _ := members[0].(map[string]interface{})["id"].(string)

	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/organizations/%s/members/%s", orgID, ownerMemberID), ownerToken, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("sole owner leaves: status = %d, want 409", rec.Code)
	}

	// Promote a member to owner, then the original owner may leave.
	_, _, memberID := addMember(t, env, ownerToken, orgID, "second@example.com", "member")
	rec = env.do(http.MethodPatch, fmt.Sprintf("/api/organizations/%s/members/%s", orgID, memberID), ownerToken,
		map[string]interface{}{"role": "owner"})
	if rec.Code != http.StatusOK {
		t.Fatalf("promote to owner: status = %d body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/organizations/%s/members/%s", orgID, ownerMemberID), ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("owner leaves with backup owner: status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestSameRoleUpdateIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme", "acme")
	_, _, memberID := addMember(t, env, ownerToken, orgID, "member@example.com", "member")

	rec := env.do(http.MethodPatch, fmt.Sprintf("/api/organizations/%s/members/%s", orgID, memberID), ownerToken,
		map[string]interface{}{"role": "member"})
	if rec.Code != http.StatusOK {
		t.Fatalf("same role: status = %d body %s", rec.Code, rec.Body.String())
	}
	member, _ := decode(t, rec)["member"].(map[string]interface{})
	if member["version"] != float64(1) {
		t.Errorf("version after no-op = %v, want 1", member["version"])
	}
}

func TestMemberRoleVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme", "acme")
	_, _, memberID := addMember(t, env, ownerToken, orgID, "member@example.com", "member")

	// A stale version is rejected.
	rec := env.do(http.MethodPatch, fmt.Sprintf("/api/organizations/%s/members/%s", orgID, memberID), ownerToken,
		map[string]interface{}{"role": "admin", "version": 99})
	if rec.Code != http.StatusConflict {
		t.Errorf("stale version: status = %d, want 409", rec.Code)
	}

	// The current version goes through.
	rec = env.do(http.MethodPatch, fmt.Sprintf("/api/organizations/%s/members/%s", orgID, memberID), ownerToken,
		map[string]interface{}{"role": "admin", "version": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("current version: status = %d body %s", rec.Code, rec.Body.String())
	}
	member, _ := decode(t, rec)["member"].(map[string]interface{})
	if member["role"] != "admin" {
		t.Errorf("role after update = %v, want admin", member["role"])
	}
	if member["version"] != float64(2) {
		t.Errorf("version after update = %v, want 2", member["version"])
	}
}

func TestDeleteOrganizationRequiresConfirmation(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme Inc", "acme")

	rec := env.do(http.MethodDelete, "/api/organizations/"+orgID, ownerToken, map[string]string{"confirm": "acme"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("wrong confirmation: status = %d, want 400", rec.Code)
	}

	rec = env.do(http.MethodDelete, "/api/organizations/"+orgID, ownerToken, map[string]string{"confirm": "Acme Inc"})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete org: status = %d body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/api/organizations/"+orgID, ownerToken, nil)
	if rec.Code != http.StatusForbidden && rec.Code != http.StatusNotFound {
		t.Errorf("get deleted org: status = %d, want 403 or 404", rec.Code)
	}
}

func TestMemberCannotManage(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.account("owner@example.com")
	orgID := env.org(ownerToken, "Acme", "acme")
	memberToken, _, _ := addMember(t, env, ownerToken, orgID, "member@example.com", "member")

	rec := env.do(http.MethodPost, fmt.Sprintf("/api/organizations/%s/invitations", orgID), memberToken, map[string]string{
		"email": "friend@example.com",
		"role":  "member",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("member invites: status = %d, want 403", rec.Code)
	}

	rec = env.do(http.MethodPatch, "/api/organizations/"+orgID, memberToken, map[string]string{"name": "Renamed"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("member updates org: status = %d, want 403", rec.Code)
	}

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/organizations/%s/invitations", orgID), memberToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("member lists invitations: status = %d, want 403", rec.Code)
	}
}
