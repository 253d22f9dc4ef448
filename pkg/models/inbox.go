package models

import "time"

type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

// Conversation is a message thread with an external contact, scoped to an
// organization.
type Conversation struct {
	ID             string             `json:"id" db:"id"`
	OrganizationID string             `json:"organization_id" db:"organization_id"`
	Subject        string             `json:"subject" db:"subject"`
	PeerEmail      string             `json:"peer_email" db:"peer_email"`
	Status         ConversationStatus `json:"status" db:"status"`
	AssigneeID     *string            `json:"assignee_id,omitempty" db:"assignee_id"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time         `json:"deleted_at,omitempty" db:"deleted_at"`
}

type MessageDirection string

const (
	MessageInbound  MessageDirection = "in"
	MessageOutbound MessageDirection = "out"
)

// Message is a single entry in a conversation. AuthorID is nil for inbound
// messages from the external contact.
type Message struct {
	ID             string           `json:"id" db:"id"`
	ConversationID string           `json:"conversation_id" db:"conversation_id"`
	AuthorID       *string          `json:"author_id,omitempty" db:"author_id"`
	Body           string           `json:"body" db:"body"`
	Direction      MessageDirection `json:"direction" db:"direction"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadLost      LeadStatus = "lost"
)

// Lead is a sales contact captured manually or through the inbound webhook.
type Lead struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	Email          string     `json:"email" db:"email"`
	Name           string     `json:"name,omitempty" db:"name"`
	Company        string     `json:"company,omitempty" db:"company"`
	Source         string     `json:"source,omitempty" db:"source"`
	Status         LeadStatus `json:"status" db:"status"`
	Notes          string     `json:"notes,omitempty" db:"notes"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// MessageTemplate is a reusable reply. Builtin templates come from the
// embedded catalog and are read-only.
type MessageTemplate struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id,omitempty" db:"organization_id"`
	Name           string     `json:"name" db:"name"`
	Subject        string     `json:"subject,omitempty" db:"subject"`
	Body           string     `json:"body" db:"body"`
	Builtin        bool       `json:"builtin" db:"builtin"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}
