package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"teamhub-backend/pkg/config"
	"teamhub-backend/pkg/database"
	"teamhub-backend/pkg/models"
	"teamhub-backend/pkg/utils"
)

// WebhookHandler receives lead submissions from external forms. The
// endpoint is unauthenticated; authenticity comes from an HMAC-SHA256
// signature over the raw body.
type WebhookHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewWebhookHandler(cfg *config.Config, db database.DatabaseInterface) *WebhookHandler {
	return &WebhookHandler{config: cfg, db: db}
}

type leadWebhookPayload struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Source  string `json:"source"`
}

// verifySignature checks the X-Signature header against the raw body.
// The header carries the lowercase hex digest, optionally prefixed
// with "sha256=".
func (h *WebhookHandler) verifySignature(body []byte, header string) bool {
	if h.config.LeadWebhookSecret == "" || header == "" {
		return false
	}
	header = strings.TrimPrefix(header, "sha256=")

	mac := hmac.New(sha256.New, []byte(h.config.LeadWebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	got, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(expected)
	return hmac.Equal(got, want)
}

// POST /api/webhooks/leads/{orgSlug}
func (h *WebhookHandler) ReceiveLead(w http.ResponseWriter, r *http.Request) {
	org, err := h.db.GetOrganizationBySlug(chi.URLParam(r, "orgSlug"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Organization not found")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		utils.WriteBadRequestResponse(w, "Failed to read request body")
		return
	}

	if !h.verifySignature(body, r.Header.Get("X-Signature")) {
		utils.WriteUnauthorizedResponse(w, "Invalid webhook signature")
		return
	}

	var payload leadWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid JSON payload")
		return
	}
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	if payload.Email == "" {
		utils.WriteBadRequestResponse(w, "email is required")
		return
	}

	source := payload.Source
	if source == "" {
		source = "webhook"
	}
	lead := &models.Lead{
		OrganizationID: org.ID,
		Email:          payload.Email,
		Name:           payload.Name,
		Company:        payload.Company,
		Source:         source,
		Status:         models.LeadNew,
	}
	if err := h.db.CreateLead(lead); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to store lead")
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"lead_id": lead.ID})
}
