package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"teamhub-backend/pkg/catalog"
	"teamhub-backend/pkg/config"
	"teamhub-backend/pkg/database"
	"teamhub-backend/pkg/middleware"
	"teamhub-backend/pkg/models"
	"teamhub-backend/pkg/policy"
	"teamhub-backend/pkg/utils"
)

// InboxHandler covers the org-scoped communication surface:
// conversations with messages, captured leads, and reply templates.
type InboxHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewInboxHandler(cfg *config.Config, db database.DatabaseInterface) *InboxHandler {
	return &InboxHandler{config: cfg, db: db}
}

// memberOf resolves the caller and their role in the route's org.
// Writes the error response itself on failure.
func (h *InboxHandler) memberOf(w http.ResponseWriter, r *http.Request) (*models.User, models.OrgMemberRole, string, bool) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return nil, "", "", false
	}
	orgID := chi.URLParam(r, "orgID")
	m, err := h.db.GetMembership(orgID, user.ID)
	if err != nil {
		utils.WriteForbiddenResponse(w, "Not a member of this organization")
		return nil, "", "", false
	}
	role, err := policy.ParseRole(string(m.Role))
	if err != nil {
		utils.WriteForbiddenResponse(w, "Not a member of this organization")
		return nil, "", "", false
	}
	return user, role, orgID, true
}

// conversationInOrg loads the conversation and checks it belongs to the
// route's org, so IDs from other tenants come back as 404.
func (h *InboxHandler) conversationInOrg(w http.ResponseWriter, orgID, id string) (*models.Conversation, bool) {
	c, err := h.db.GetConversation(id)
	if err != nil || c.OrganizationID != orgID {
		utils.WriteNotFoundResponse(w, "Conversation not found")
		return nil, false
	}
	return c, true
}

// ==== conversations ====

type conversationCreateRequest struct {
	Subject   string `json:"subject" validate:"required,min=1,max=200"`
	PeerEmail string `json:"peer_email" validate:"required,email"`
	Body      string `json:"body" validate:"omitempty,max=10000"`
}

// POST /api/organizations/{orgID}/conversations
func (h *InboxHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	user, _, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}

	var req conversationCreateRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	req.PeerEmail = strings.ToLower(strings.TrimSpace(req.PeerEmail))
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid conversation request", err.Error())
		return
	}

	conv := &models.Conversation{
		OrganizationID: orgID,
		Subject:        req.Subject,
		PeerEmail:      req.PeerEmail,
		Status:         models.ConversationOpen,
	}
	if err := h.db.CreateConversation(conv); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create conversation")
		return
	}

	// Opening message is optional.
	if req.Body != "" {
		msg := &models.Message{
			ConversationID: conv.ID,
			AuthorID:       &user.ID,
			Body:           req.Body,
			Direction:      models.MessageOutbound,
		}
		if err := h.db.CreateMessage(msg); err != nil {
			utils.WriteInternalServerErrorResponse(w, "Failed to create message")
			return
		}
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"conversation": conv})
}

// GET /api/organizations/{orgID}/conversations?status=open
func (h *InboxHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	_, _, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}

	status := utils.GetQueryParam(r, "status", "")
	if status != "" && status != string(models.ConversationOpen) && status != string(models.ConversationClosed) {
		utils.WriteBadRequestResponse(w, "status must be open or closed")
		return
	}

	convs, err := h.db.ListConversations(orgID, status)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list conversations")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"conversations": convs})
}

// GET /api/organizations/{orgID}/conversations/{conversationID}
func (h *InboxHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	_, _, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}
	conv, ok := h.conversationInOrg(w, orgID, chi.URLParam(r, "conversationID"))
	if !ok {
		return
	}
	messages, err := h.db.ListMessages(conv.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list messages")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"conversation": conv,
		"messages":     messages,
	})
}

// POST /api/organizations/{orgID}/conversations/{conversationID}/status
func (h *InboxHandler) SetConversationStatus(w http.ResponseWriter, r *http.Request) {
	_, _, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}
	conv, ok := h.conversationInOrg(w, orgID, chi.URLParam(r, "conversationID"))
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	status := models.ConversationStatus(req.Status)
	if status != models.ConversationOpen && status != models.ConversationClosed {
		utils.WriteBadRequestResponse(w, "status must be open or closed")
		return
	}

	if err := h.db.UpdateConversationStatus(conv.ID, status); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update conversation")
		return
	}
	conv.Status = status
	utils.WriteSuccessResponse(w, map[string]interface{}{"conversation": conv})
}

// DELETE /api/organizations/{orgID}/conversations/{conversationID}
func (h *InboxHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	_, role, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}
	if !policy.CanManageOrganization(role) {
		utils.WriteForbiddenResponse(w, "Only owners and admins can delete conversations")
		return
	}
	conv, ok := h.conversationInOrg(w, orgID, chi.URLParam(r, "conversationID"))
	if !ok {
		return
	}
	if err := h.db.SoftDeleteConversation(conv.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to delete conversation")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": conv.ID})
}

// POST /api/organizations/{orgID}/conversations/{conversationID}/messages
func (h *InboxHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	user, _, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}
	conv, ok := h.conversationInOrg(w, orgID, chi.URLParam(r, "conversationID"))
	if !ok {
		return
	}
	if conv.Status == models.ConversationClosed {
		utils.WriteConflictResponse(w, "Conversation is closed, reopen it to reply")
		return
	}

	var req struct {
		Body string `json:"body" validate:"required,min=1,max=10000"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid message", err.Error())
		return
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		AuthorID:       &user.ID,
		Body:           req.Body,
		Direction:      models.MessageOutbound,
	}
	if err := h.db.CreateMessage(msg); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create message")
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"message": msg})
}

// ==== leads ====

type leadCreateRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Name    string `json:"name" validate:"omitempty,max=200"`
	Company string `json:"company" validate:"omitempty,max=200"`
	Source  string `json:"source" validate:"omitempty,max=100"`
	Notes   string `json:"notes" validate:"omitempty,max=5000"`
}

// POST /api/organizations/{orgID}/leads
func (h *InboxHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	_, _, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}

	var req leadCreateRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid lead", err.Error())
		return
	}

	source := req.Source
	if source == "" {
		source = "manual"
	}
	lead := &models.Lead{
		OrganizationID: orgID,
		Email:          req.Email,
		Name:           req.Name,
		Company:        req.Company,
		Source:         source,
		Status:         models.LeadNew,
		Notes:          req.Notes,
	}
	if err := h.db.CreateLead(lead); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create lead")
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"lead": lead})
}

// GET /api/organizations/{orgID}/leads
func (h *InboxHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	_, _, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}
	leads, err := h.db.ListLeads(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list leads")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"leads": leads})
}

// GET /api/organizations/{orgID}/leads/{leadID}
func (h *InboxHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	_, _, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}
	lead, err := h.db.GetLead(chi.URLParam(r, "leadID"))
	if err != nil || lead.OrganizationID != orgID {
		utils.WriteNotFoundResponse(w, "Lead not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"lead": lead})
}

// POST /api/organizations/{orgID}/leads/{leadID}/status
func (h *InboxHandler) SetLeadStatus(w http.ResponseWriter, r *http.Request) {
	_, _, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}
	lead, err := h.db.GetLead(chi.URLParam(r, "leadID"))
	if err != nil || lead.OrganizationID != orgID {
		utils.WriteNotFoundResponse(w, "Lead not found")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	status := models.LeadStatus(req.Status)
	switch status {
	case models.LeadNew, models.LeadContacted, models.LeadQualified, models.LeadLost:
	default:
		utils.WriteBadRequestResponse(w, "status must be one of new, contacted, qualified, lost")
		return
	}

	if err := h.db.UpdateLeadStatus(lead.ID, status); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update lead")
		return
	}
	lead.Status = status
	utils.WriteSuccessResponse(w, map[string]interface{}{"lead": lead})
}

// ==== templates ====

type templateRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Subject string `json:"subject" validate:"omitempty,max=200"`
	Body    string `json:"body" validate:"required,min=1,max=10000"`
}

// GET /api/organizations/{orgID}/templates
// Merges the embedded builtin catalog with the org's own templates,
// builtins first, each group sorted by name.
func (h *InboxHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	_, _, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}

	builtin, err := catalog.Builtin()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load builtin templates")
		return
	}
	own, err := h.db.ListTemplates(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list templates")
		return
	}
	sort.Slice(own, func(i, j int) bool { return own[i].Name < own[j].Name })

	templates := make([]models.MessageTemplate, 0, len(builtin)+len(own))
	templates = append(templates, builtin...)
	templates = append(templates, own...)
	utils.WriteSuccessResponse(w, map[string]interface{}{"templates": templates})
}

// POST /api/organizations/{orgID}/templates
func (h *InboxHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	_, role, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}
	if !policy.CanManageOrganization(role) {
		utils.WriteForbiddenResponse(w, "Only owners and admins can manage templates")
		return
	}

	var req templateRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid template", err.Error())
		return
	}

	tpl := &models.MessageTemplate{
		OrganizationID: orgID,
		Name:           req.Name,
		Subject:        req.Subject,
		Body:           req.Body,
	}
	if err := h.db.CreateTemplate(tpl); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create template")
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"template": tpl})
}

// templateForWrite loads an org-owned, mutable template. Builtin IDs
// are rejected before the lookup since they never live in the store.
func (h *InboxHandler) templateForWrite(w http.ResponseWriter, orgID, id string) (*models.MessageTemplate, bool) {
	if strings.HasPrefix(id, "builtin:") {
		utils.WriteForbiddenResponse(w, "Builtin templates are read-only")
		return nil, false
	}
	tpl, err := h.db.GetTemplate(id)
	if err != nil || tpl.OrganizationID != orgID {
		utils.WriteNotFoundResponse(w, "Template not found")
		return nil, false
	}
	return tpl, true
}

// PATCH /api/organizations/{orgID}/templates/{templateID}
func (h *InboxHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	_, role, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}
	if !policy.CanManageOrganization(role) {
		utils.WriteForbiddenResponse(w, "Only owners and admins can manage templates")
		return
	}
	tpl, ok := h.templateForWrite(w, orgID, chi.URLParam(r, "templateID"))
	if !ok {
		return
	}

	var req struct {
		Name    string `json:"name" validate:"omitempty,min=1,max=200"`
		Subject string `json:"subject" validate:"omitempty,max=200"`
		Body    string `json:"body" validate:"omitempty,min=1,max=10000"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid template patch", err.Error())
		return
	}
	if req.Name != "" {
		tpl.Name = req.Name
	}
	if req.Subject != "" {
		tpl.Subject = req.Subject
	}
	if req.Body != "" {
		tpl.Body = req.Body
	}

	if err := h.db.UpdateTemplate(tpl); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Template not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to update template")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"template": tpl})
}

// DELETE /api/organizations/{orgID}/templates/{templateID}
func (h *InboxHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	_, role, orgID, ok := h.memberOf(w, r)
	if !ok {
		return
	}
	if !policy.CanManageOrganization(role) {
		utils.WriteForbiddenResponse(w, "Only owners and admins can manage templates")
		return
	}
	tpl, ok := h.templateForWrite(w, orgID, chi.URLParam(r, "templateID"))
	if !ok {
		return
	}
	if err := h.db.DeleteTemplate(tpl.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to delete template")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": tpl.ID})
}
