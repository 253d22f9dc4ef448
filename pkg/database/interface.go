package database

import (
	"errors"
	"fmt"

	"teamhub-backend/pkg/config"
	"teamhub-backend/pkg/models"
)

// Sentinel errors shared by every backend.
var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when an update carries a stale
	// version. The caller re-reads and retries or reports a conflict.
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate record")
)

// DatabaseInterface is the storage surface of the API.
type DatabaseInterface interface {
	// Users
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateUser(user *models.User) error
	DeleteUser(id string) error
	ListUsers(offset, limit int) ([]models.User, int, error)
	SetUserDisabled(id string, disabled bool) error
	SetUserAdmin(id string, isAdmin bool) error
	SetUserTOTP(id, secret string, enabled bool) error

	// Sessions
	CreateSession(s *models.Session) error
	GetSessionByTokenHash(hash string) (*models.Session, error)
	ListUserSessions(userID string) ([]models.Session, error)
	RevokeSession(id string) error
	RevokeUserSessions(userID string) error

	// Organizations
	CreateOrganization(org *models.Organization) error
	GetOrganization(orgID string) (*models.Organization, error)
	GetOrganizationBySlug(slug string) (*models.Organization, error)
	UpdateOrganization(org *models.Organization) error
	DeleteOrganization(orgID string) error
	ListUserOrganizations(userID string) ([]models.Organization, error)

	// Memberships
	AddOrganizationMember(m *models.OrganizationMembership) error
	GetMembership(orgID, userID string) (*models.OrganizationMembership, error)
	GetMembershipByID(id string) (*models.OrganizationMembership, error)
	ListOrganizationMembers(orgID string) ([]models.OrganizationMembership, error)
	// UpdateMemberRole applies the role only when the stored row still
	// has expectedVersion; otherwise ErrVersionConflict.
	UpdateMemberRole(memberID string, role models.OrgMemberRole, expectedVersion int) error
	RemoveMember(memberID string) error
	CountOwners(orgID string) (int, error)

	// Invitations
	CreateInvitation(inv *models.OrganizationInvitation) error
	GetInvitationByID(id string) (*models.OrganizationInvitation, error)
	GetInvitationByToken(token string) (*models.OrganizationInvitation, error)
	ListInvitationsByEmail(email string) ([]models.OrganizationInvitation, error)
	ListOrganizationInvitations(orgID string) ([]models.OrganizationInvitation, error)
	HasPendingInvitation(orgID, email string) (bool, error)
	// UpdateInvitationStatus moves the invitation to status only when
	// the stored row still has expectedVersion.
	UpdateInvitationStatus(id string, status models.InvitationStatus, acceptedBy *string, expectedVersion int) error

	// Conversations & messages
	CreateConversation(c *models.Conversation) error
	GetConversation(id string) (*models.Conversation, error)
	ListConversations(orgID, status string) ([]models.Conversation, error)
	UpdateConversationStatus(id string, status models.ConversationStatus) error
	SoftDeleteConversation(id string) error
	CreateMessage(m *models.Message) error
	ListMessages(conversationID string) ([]models.Message, error)

	// Leads
	CreateLead(l *models.Lead) error
	GetLead(id string) (*models.Lead, error)
	ListLeads(orgID string) ([]models.Lead, error)
	UpdateLeadStatus(id string, status models.LeadStatus) error

	// Message templates
	CreateTemplate(t *models.MessageTemplate) error
	GetTemplate(id string) (*models.MessageTemplate, error)
	ListTemplates(orgID string) ([]models.MessageTemplate, error)
	UpdateTemplate(t *models.MessageTemplate) error
	DeleteTemplate(id string) error

	// Lifecycle
	HealthCheck() error
	Close() error
}

// NewDatabase selects the backend from configuration: Postgres when a
// DSN is set, embedded SQLite otherwise.
func NewDatabase(cfg *config.Config) (DatabaseInterface, error) {
	if cfg.PostgresDSN != "" {
		return NewPostgresDatabase(cfg.PostgresDSN)
	}
	if cfg.SQLitePath != "" {
		return NewSQLiteDatabase(cfg.SQLitePath)
	}
	return nil, fmt.Errorf("no database configured: set POSTGRES_DSN or SQLITE_PATH")
}
