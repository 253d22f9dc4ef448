package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"teamhub-backend/pkg/config"
	"teamhub-backend/pkg/database"
	"teamhub-backend/pkg/mailer"
	"teamhub-backend/pkg/middleware"
	"teamhub-backend/pkg/models"
	"teamhub-backend/pkg/policy"
	"teamhub-backend/pkg/utils"
)

const invitationTTL = 7 * 24 * time.Hour

// OrgsHandler owns organizations, memberships and the invitation
// lifecycle. Every mutation goes through the policy package; role
// strings from storage are decoded once and passed around typed.
type OrgsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	mail   mailer.Mailer
}

func NewOrgsHandler(cfg *config.Config, db database.DatabaseInterface, mail mailer.Mailer) *OrgsHandler {
	return &OrgsHandler{config: cfg, db: db, mail: mail}
}

// invitationView decorates an invitation with its render-time label and
// badge, so clients never re-derive expiry themselves.
type invitationView struct {
	models.OrganizationInvitation
	StatusLabel string              `json:"status_label"`
	StatusBadge policy.BadgeVariant `json:"status_badge"`
	Expired     bool                `json:"expired"`
}

func viewInvitation(inv models.OrganizationInvitation, now time.Time) invitationView {
	return invitationView{
		OrganizationInvitation: inv,
		StatusLabel:            policy.StatusLabel(&inv, now),
		StatusBadge:            policy.StatusBadge(&inv, now),
		Expired:                policy.Expired(&inv, now),
	}
}

func viewInvitations(invs []models.OrganizationInvitation, now time.Time) []invitationView {
	views := make([]invitationView, 0, len(invs))
	for _, inv := range invs {
		views = append(views, viewInvitation(inv, now))
	}
	return views
}

// getUserRole resolves the caller's typed role in the organization.
func (h *OrgsHandler) getUserRole(userID, orgID string) (models.OrgMemberRole, bool) {
	m, err := h.db.GetMembership(orgID, userID)
	if err != nil {
		return "", false
	}
	role, err := policy.ParseRole(string(m.Role))
	if err != nil {
		return "", false
	}
	return role, true
}

func (h *OrgsHandler) requireOrgMember(w http.ResponseWriter, userID, orgID string) (models.OrgMemberRole, bool) {
	role, ok := h.getUserRole(userID, orgID)
	if !ok {
		utils.WriteForbiddenResponse(w, "Not a member of this organization")
		return "", false
	}
	return role, true
}

// POST /api/organizations
func (h *OrgsHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.OrganizationCreateRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid organization request", err.Error())
		return
	}

	org := &models.Organization{
		Name:    req.Name,
		Slug:    req.Slug,
		Logo:    req.Logo,
		OwnerID: user.ID,
	}
	if err := h.db.CreateOrganization(org); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "An organization with this slug already exists")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to create organization")
		return
	}

	// The creator is the first owner member.
	membership := &models.OrganizationMembership{
		OrganizationID: org.ID,
		UserID:         user.ID,
		Role:           models.RoleOwner,
	}
	if err := h.db.AddOrganizationMember(membership); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create membership")
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"organization": org})
}

// GET /api/organizations
func (h *OrgsHandler) ListMyOrganizations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	orgs, err := h.db.ListUserOrganizations(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list organizations")
		return
	}

	// Weak ETag: orgs:<user>:<count>:<maxUpdated>
	var maxUpdated int64
	for _, o := range orgs {
		if ts := o.UpdatedAt.UnixMilli(); ts > maxUpdated {
			maxUpdated = ts
		}
	}
	etag := fmt.Sprintf("W/\"orgs:%s:%d:%d\"", user.ID, len(orgs), maxUpdated)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"organizations": orgs})
}

// GET /api/organizations/{orgID}
func (h *OrgsHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chi.URLParam(r, "orgID")

	role, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}

	org, err := h.db.GetOrganization(orgID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Organization not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"organization": org,
		"role":         role,
	})
}

// PATCH /api/organizations/{orgID}
func (h *OrgsHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chi.URLParam(r, "orgID")

	role, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}
	if !policy.CanManageOrganization(role) {
		utils.WriteForbiddenResponse(w, "Only owners and admins can update the organization")
		return
	}

	var req models.OrganizationUpdateRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid organization patch", err.Error())
		return
	}

	org, err := h.db.GetOrganization(orgID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Organization not found")
		return
	}
	if req.Name != "" {
		org.Name = req.Name
	}
	if req.Slug != "" {
		org.Slug = req.Slug
	}
	if req.Logo != "" {
		org.Logo = req.Logo
	}

	if err := h.db.UpdateOrganization(org); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "An organization with this slug already exists")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to update organization")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organization": org})
}

// DELETE /api/organizations/{orgID}
// Deletion is owner-only and requires re-typing the organization name.
func (h *OrgsHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chi.URLParam(r, "orgID")

	role, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}
	if !policy.CanDeleteOrganization(role) {
		utils.WriteForbiddenResponse(w, "Only the owner can delete the organization")
		return
	}

	var req struct {
		Confirm string `json:"confirm"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	org, err := h.db.GetOrganization(orgID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Organization not found")
		return
	}
	if req.Confirm != org.Name {
		utils.WriteBadRequestResponse(w, "Type the organization name to confirm deletion")
		return
	}

	if err := h.db.DeleteOrganization(orgID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to delete organization")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": orgID})
}

// GET /api/organizations/{orgID}/members
func (h *OrgsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chi.URLParam(r, "orgID")

	if _, ok := h.requireOrgMember(w, user.ID, orgID); !ok {
		return
	}
	members, err := h.db.ListOrganizationMembers(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list members")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"members": members})
}

// PATCH /api/organizations/{orgID}/members/{memberID}
func (h *OrgsHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chi.URLParam(r, "orgID")
	memberID := chi.URLParam(r, "memberID")

	callerRole, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}
	if !policy.CanManageMembers(callerRole) {
		utils.WriteForbiddenResponse(w, "Only owners and admins can manage members")
		return
	}

	var req struct {
		Role    string `json:"role"`
		Version int    `json:"version"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	newRole, err := policy.ParseRole(req.Role)
	if err != nil {
		utils.WriteBadRequestResponse(w, "Unknown role")
		return
	}

	target, err := h.db.GetMembershipByID(memberID)
	if err != nil || target.OrganizationID != orgID {
		utils.WriteNotFoundResponse(w, "Member not found")
		return
	}
	if target.UserID == user.ID {
		utils.WriteBadRequestResponse(w, "You cannot change your own role")
		return
	}

	// The caller must be allowed to assign both the member's current
	// role and the new one; otherwise an admin could demote an owner.
	if !policy.CanAssign(callerRole, target.Role) || !policy.CanAssign(callerRole, newRole) {
		utils.WriteForbiddenResponse(w, "You cannot assign this role")
		return
	}

	// Same role is a no-op, no write and no version bump.
	if newRole == target.Role {
		utils.WriteSuccessResponse(w, map[string]interface{}{"member": target})
		return
	}

	// Demoting the only owner would leave the organization unmanageable.
	if target.Role == models.RoleOwner && newRole != models.RoleOwner {
		owners, err := h.db.CountOwners(orgID)
		if err != nil {
			utils.WriteInternalServerErrorResponse(w, "Failed to check owners")
			return
		}
		if owners <= 1 {
			utils.WriteConflictResponse(w, "An organization must keep at least one owner")
			return
		}
	}

	version := req.Version
	if version == 0 {
		version = target.Version
	}
	if err := h.db.UpdateMemberRole(memberID, newRole, version); err != nil {
		switch {
		case errors.Is(err, database.ErrVersionConflict):
			utils.WriteConflictResponse(w, "Member was modified concurrently, reload and retry")
		case errors.Is(err, database.ErrNotFound):
			utils.WriteNotFoundResponse(w, "Member not found")
		default:
			utils.WriteInternalServerErrorResponse(w, "Failed to update member")
		}
		return
	}

	updated, err := h.db.GetMembershipByID(memberID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load member")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"member": updated})
}

// DELETE /api/organizations/{orgID}/members/{memberID}
// Managers remove others; any member may remove their own membership to
// leave the organization.
func (h *OrgsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chi.URLParam(r, "orgID")
	memberID := chi.URLParam(r, "memberID")

	callerRole, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}

	target, err := h.db.GetMembershipByID(memberID)
	if err != nil || target.OrganizationID != orgID {
		utils.WriteNotFoundResponse(w, "Member not found")
		return
	}

	leaving := target.UserID == user.ID
	if !leaving {
		if !policy.CanManageMembers(callerRole) {
			utils.WriteForbiddenResponse(w, "Only owners and admins can remove members")
			return
		}
		if !policy.CanAssign(callerRole, target.Role) {
			utils.WriteForbiddenResponse(w, "You cannot remove a member with this role")
			return
		}
	}

	if target.Role == models.RoleOwner {
		owners, err := h.db.CountOwners(orgID)
		if err != nil {
			utils.WriteInternalServerErrorResponse(w, "Failed to check owners")
			return
		}
		if owners <= 1 {
			utils.WriteConflictResponse(w, "An organization must keep at least one owner")
			return
		}
	}

	if err := h.db.RemoveMember(memberID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to remove member")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"removed": true, "id": memberID})
}

// POST /api/organizations/{orgID}/invitations
func (h *OrgsHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chi.URLParam(r, "orgID")

	callerRole, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}
	if !policy.CanManageMembers(callerRole) {
		utils.WriteForbiddenResponse(w, "Only owners and admins can invite members")
		return
	}

	var req models.InviteMemberRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	req.OrganizationID = orgID
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid invitation request", err.Error())
		return
	}

	role, err := policy.ParseRole(req.Role)
	if err != nil || !policy.CanAssign(callerRole, role) {
		utils.WriteForbiddenResponse(w, "You cannot invite with this role")
		return
	}

	// Already a member?
	if existing, err := h.db.GetUserByEmail(req.Email); err == nil {
		if _, err := h.db.GetMembership(orgID, existing.ID); err == nil {
			utils.WriteConflictResponse(w, "This user is already a member")
			return
		}
	}

	pending, err := h.db.HasPendingInvitation(orgID, req.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to check invitations")
		return
	}
	if pending {
		utils.WriteConflictResponse(w, "A pending invitation already exists for this email")
		return
	}

	token, err := utils.GenerateURLToken(24)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate invitation token")
		return
	}

	inv := &models.OrganizationInvitation{
		OrganizationID: orgID,
		Email:          req.Email,
		Role:           role,
		InviterID:      user.ID,
		Token:          token,
		Status:         models.InvitationPending,
		ExpiresAt:      time.Now().Add(invitationTTL),
	}
	if err := h.db.CreateInvitation(inv); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create invitation")
		return
	}

	// Mail delivery must not fail the request.
	go func(inv models.OrganizationInvitation) {
		org, err := h.db.GetOrganization(inv.OrganizationID)
		if err != nil {
			return
		}
		acceptURL := h.config.BaseURL + "/invitations/" + inv.Token
		body := mailer.InvitationBody(org.Name, user.Email, string(inv.Role), acceptURL)
		if err := h.mail.Send(inv.Email, "You have been invited to "+org.Name, body); err != nil {
			fmt.Printf("[warn] failed to send invitation email to %s: %v\n", inv.Email, err)
		}
	}(*inv)

	utils.WriteCreatedResponse(w, map[string]interface{}{"invitation": viewInvitation(*inv, time.Now())})
}

// GET /api/organizations/{orgID}/invitations
func (h *OrgsHandler) ListOrgInvitations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chi.URLParam(r, "orgID")

	callerRole, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}
	if !policy.CanManageMembers(callerRole) {
		utils.WriteForbiddenResponse(w, "Only owners and admins can view invitations")
		return
	}

	invs, err := h.db.ListOrganizationInvitations(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list invitations")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitations": viewInvitations(invs, time.Now())})
}

// GET /api/invitations/my
func (h *OrgsHandler) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	invs, err := h.db.ListInvitationsByEmail(strings.ToLower(user.Email))
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list invitations")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitations": viewInvitations(invs, time.Now())})
}

// resolveInvitee loads the invitation from the request body token and
// checks it is addressed to the caller.
func (h *OrgsHandler) resolveInvitee(w http.ResponseWriter, r *http.Request, userEmail string) (*models.OrganizationInvitation, bool) {
	var req struct {
		Token string `json:"token"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return nil, false
	}
	if req.Token == "" {
		utils.WriteBadRequestResponse(w, "token is required")
		return nil, false
	}

	inv, err := h.db.GetInvitationByToken(req.Token)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Invitation not found")
		return nil, false
	}
	if !strings.EqualFold(inv.Email, userEmail) {
		utils.WriteForbiddenResponse(w, "This invitation was sent to a different email")
		return nil, false
	}
	return inv, true
}

// applyTransition runs the state machine and persists the outcome.
func (h *OrgsHandler) applyTransition(w http.ResponseWriter, inv *models.OrganizationInvitation, action policy.InvitationAction, acceptedBy *string) bool {
	now := time.Now()
	next, err := policy.Transition(inv, action, now)
	if err != nil {
		switch {
		case errors.Is(err, policy.ErrInvitationExpired):
			utils.WriteGoneResponse(w, "This invitation has expired")
		case errors.Is(err, policy.ErrInvalidTransition):
			utils.WriteConflictResponse(w, "This invitation is no longer pending")
		default:
			utils.WriteInternalServerErrorResponse(w, "Failed to update invitation")
		}
		return false
	}

	if err := h.db.UpdateInvitationStatus(inv.ID, next, acceptedBy, inv.Version); err != nil {
		if errors.Is(err, database.ErrVersionConflict) {
			utils.WriteConflictResponse(w, "Invitation was modified concurrently, reload and retry")
		} else {
			utils.WriteInternalServerErrorResponse(w, "Failed to update invitation")
		}
		return false
	}
	inv.Status = next
	inv.AcceptedBy = acceptedBy
	inv.Version++
	return true
}

// POST /api/invitations/accept
func (h *OrgsHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	inv, ok := h.resolveInvitee(w, r, user.Email)
	if !ok {
		return
	}

	// Joining an organization twice is a conflict, not a crash.
	if _, err := h.db.GetMembership(inv.OrganizationID, user.ID); err == nil {
		utils.WriteConflictResponse(w, "You are already a member of this organization")
		return
	}

	if !h.applyTransition(w, inv, policy.ActionAccept, &user.ID) {
		return
	}

	membership := &models.OrganizationMembership{
		OrganizationID: inv.OrganizationID,
		UserID:         user.ID,
		Role:           inv.Role,
	}
	if err := h.db.AddOrganizationMember(membership); err != nil && !errors.Is(err, database.ErrDuplicate) {
		utils.WriteInternalServerErrorResponse(w, "Failed to create membership")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"organization_id": inv.OrganizationID,
		"membership":      membership,
		"invitation":      viewInvitation(*inv, time.Now()),
	})
}

// POST /api/invitations/reject
func (h *OrgsHandler) RejectInvitation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	inv, ok := h.resolveInvitee(w, r, user.Email)
	if !ok {
		return
	}
	if !h.applyTransition(w, inv, policy.ActionReject, nil) {
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitation": viewInvitation(*inv, time.Now())})
}

// DELETE /api/organizations/{orgID}/invitations/{invitationID}
// Cancel withdraws a pending invitation from the inviter's side.
func (h *OrgsHandler) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chi.URLParam(r, "orgID")
	invitationID := chi.URLParam(r, "invitationID")

	callerRole, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}
	if !policy.CanManageMembers(callerRole) {
		utils.WriteForbiddenResponse(w, "Only owners and admins can cancel invitations")
		return
	}

	inv, err := h.db.GetInvitationByID(invitationID)
	if err != nil || inv.OrganizationID != orgID {
		utils.WriteNotFoundResponse(w, "Invitation not found")
		return
	}
	if !h.applyTransition(w, inv, policy.ActionCancel, nil) {
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitation": viewInvitation(*inv, time.Now())})
}
