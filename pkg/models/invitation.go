package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
	InvitationCanceled InvitationStatus = "canceled"
)

// OrganizationInvitation is an invite to join an organization.
// Rows are never deleted: cancel and reject are status changes, and expiry
// is derived from ExpiresAt rather than stored as a status.
type OrganizationInvitation struct {
	ID             string           `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	Email          string           `json:"email" db:"email"`
	Role           OrgMemberRole    `json:"role" db:"role"`
	InviterID      string           `json:"inviter_id" db:"inviter_id"`
	Token          string           `json:"token" db:"token"`
	Status         InvitationStatus `json:"status" db:"status"`
	ExpiresAt      time.Time        `json:"expires_at" db:"expires_at"`
	AcceptedBy     *string          `json:"accepted_by,omitempty" db:"accepted_by"`
	Version        int              `json:"version" db:"version"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// InviteMemberRequest represents the payload for inviting a member.
// Owner is deliberately not an invitable role.
type InviteMemberRequest struct {
	OrganizationID string `json:"organization_id" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Role           string `json:"role" validate:"required,oneof=admin member"`
}
