package models

import "time"

// Organization represents a collaborative workspace (owner + members)
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	Logo      string    `json:"logo,omitempty" db:"logo"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type OrgMemberRole string

const (
	RoleOwner  OrgMemberRole = "owner"
	RoleAdmin  OrgMemberRole = "admin"
	RoleMember OrgMemberRole = "member"
)

// OrganizationMembership relates users to organizations with a role.
// Version is bumped on every role change and checked on mutation so two
// admins editing the same member cannot silently overwrite each other.
type OrganizationMembership struct {
	ID             string        `json:"id" db:"id"`
	OrganizationID string        `json:"organization_id" db:"organization_id"`
	UserID         string        `json:"user_id" db:"user_id"`
	Role           OrgMemberRole `json:"role" db:"role"`
	Version        int           `json:"version" db:"version"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// OrganizationCreateRequest represents the payload for creating an organization
type OrganizationCreateRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"required,slug"`
	Logo string `json:"logo" validate:"omitempty,url"`
}

// OrganizationUpdateRequest is a partial patch; empty fields are left unchanged
type OrganizationUpdateRequest struct {
	Name string `json:"name" validate:"omitempty,max=100"`
	Slug string `json:"slug" validate:"omitempty,slug"`
	Logo string `json:"logo" validate:"omitempty,url"`
}
