package policy

import (
	"errors"
	"time"

	"teamhub-backend/pkg/models"
)

var (
	// ErrInvalidTransition is returned when an action is applied to an
	// invitation that is not in the pending state.
	ErrInvalidTransition = errors.New("invitation is not pending")

	// ErrInvitationExpired is returned when acting on an invitation whose
	// deadline has passed.
	ErrInvitationExpired = errors.New("invitation has expired")
)

// InvitationAction is a request to move an invitation out of pending.
type InvitationAction string

const (
	ActionAccept InvitationAction = "accept"
	ActionReject InvitationAction = "reject"
	ActionCancel InvitationAction = "cancel"
)

// Expired reports whether the invitation deadline has passed. Expiry is
// derived from the stored deadline, never written back as a status.
func Expired(inv *models.OrganizationInvitation, now time.Time) bool {
	return now.After(inv.ExpiresAt)
}

// Actionable reports whether the invitee can still accept or reject:
// the invitation is pending and not past its deadline.
func Actionable(inv *models.OrganizationInvitation, now time.Time) bool {
	return inv.Status == models.InvitationPending && !Expired(inv, now)
}

// Transition returns the status the invitation moves to under action, or an
// error if the move is illegal. Accepted, rejected and canceled are all
// terminal. Expiry disables every action: an expired invitation stays
// pending in storage and is surfaced as expired at render time.
func Transition(inv *models.OrganizationInvitation, action InvitationAction, now time.Time) (models.InvitationStatus, error) {
	if inv.Status != models.InvitationPending {
		return inv.Status, ErrInvalidTransition
	}
	if Expired(inv, now) {
		return inv.Status, ErrInvitationExpired
	}
	switch action {
	case ActionAccept:
		return models.InvitationAccepted, nil
	case ActionReject:
		return models.InvitationRejected, nil
	case ActionCancel:
		return models.InvitationCanceled, nil
	}
	return inv.Status, ErrInvalidTransition
}

// StatusLabel is the user-facing label for an invitation, with expiry
// derived at render time for pending rows.
func StatusLabel(inv *models.OrganizationInvitation, now time.Time) string {
	if inv.Status == models.InvitationPending && Expired(inv, now) {
		return "Expired"
	}
	switch inv.Status {
	case models.InvitationPending:
		return "Pending"
	case models.InvitationAccepted:
		return "Accepted"
	case models.InvitationRejected:
		return "Rejected"
	case models.InvitationCanceled:
		return "Canceled"
	}
	return string(inv.Status)
}

// BadgeVariant is a presentation hint carried alongside StatusLabel so
// clients render invitation states consistently.
type BadgeVariant string

const (
	BadgeDefault     BadgeVariant = "default"
	BadgeSecondary   BadgeVariant = "secondary"
	BadgeDestructive BadgeVariant = "destructive"
	BadgeOutline     BadgeVariant = "outline"
)

// StatusBadge maps an invitation to its badge variant. Canceled and
// rejected are visually distinct from each other and from expiry.
func StatusBadge(inv *models.OrganizationInvitation, now time.Time) BadgeVariant {
	if inv.Status == models.InvitationPending && Expired(inv, now) {
		return BadgeOutline
	}
	switch inv.Status {
	case models.InvitationPending:
		return BadgeDefault
	case models.InvitationAccepted:
		return BadgeSecondary
	case models.InvitationRejected:
		return BadgeDestructive
	case models.InvitationCanceled:
		return BadgeOutline
	}
	return BadgeDefault
}
