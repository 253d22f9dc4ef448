package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"teamhub-backend/pkg/config"
	"teamhub-backend/pkg/database"
	"teamhub-backend/pkg/middleware"
	"teamhub-backend/pkg/utils"
)

// AdminHandler serves the platform console. Admin status lives on the
// user record, not on JWT claims, so a flag flip takes effect on the
// next request rather than at token refresh.
type AdminHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewAdminHandler(cfg *config.Config, db database.DatabaseInterface) *AdminHandler {
	return &AdminHandler{config: cfg, db: db}
}

func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return false
	}
	full, err := h.db.GetUserByID(user.ID)
	if err != nil || !full.IsAdmin {
		utils.WriteForbiddenResponse(w, "Admin access required")
		return false
	}
	return true
}

// GET /api/admin/users?page=1&per_page=20
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	page, _ := strconv.Atoi(utils.GetQueryParam(r, "page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(utils.GetQueryParam(r, "per_page", "20"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	users, total, err := h.db.ListUsers((page-1)*perPage, perPage)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list users")
		return
	}
	utils.WritePaginatedResponse(w, map[string]interface{}{"users": users}, page, perPage, total)
}

// GET /api/admin/users/{userID}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	user, err := h.db.GetUserByID(chi.URLParam(r, "userID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"user": user})
}

// POST /api/admin/users/{userID}/disable
// Disabling also revokes every live session, so the lockout is
// immediate instead of waiting out the access token TTL plus refresh.
func (h *AdminHandler) DisableUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	userID := chi.URLParam(r, "userID")

	caller, _ := middleware.GetUserFromContext(r.Context())
	if caller != nil && caller.ID == userID {
		utils.WriteBadRequestResponse(w, "You cannot disable your own account")
		return
	}

	if err := h.db.SetUserDisabled(userID, true); err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	if err := h.db.RevokeUserSessions(userID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to revoke sessions")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"disabled": true, "id": userID})
}

// POST /api/admin/users/{userID}/enable
func (h *AdminHandler) EnableUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := h.db.SetUserDisabled(userID, false); err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"disabled": false, "id": userID})
}

// POST /api/admin/users/{userID}/promote
func (h *AdminHandler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := h.db.SetUserAdmin(userID, true); err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"is_admin": true, "id": userID})
}

// POST /api/admin/users/{userID}/demote
func (h *AdminHandler) DemoteUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	userID := chi.URLParam(r, "userID")

	caller, _ := middleware.GetUserFromContext(r.Context())
	if caller != nil && caller.ID == userID {
		utils.WriteBadRequestResponse(w, "You cannot revoke your own admin access")
		return
	}

	if err := h.db.SetUserAdmin(userID, false); err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"is_admin": false, "id": userID})
}

// GET /api/admin/users/{userID}/sessions
func (h *AdminHandler) ListUserSessions(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	sessions, err := h.db.ListUserSessions(chi.URLParam(r, "userID"))
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list sessions")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"sessions": sessions})
}

// DELETE /api/admin/sessions/{sessionID}
func (h *AdminHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.db.RevokeSession(sessionID); err != nil {
		utils.WriteNotFoundResponse(w, "Session not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"revoked": true, "id": sessionID})
}
