package policy

import (
	"errors"
	"testing"
	"time"

	"teamhub-backend/pkg/models"
)

func invitation(status models.InvitationStatus, expiresAt time.Time) *models.OrganizationInvitation {
	return &models.OrganizationInvitation{
		ID:             "inv-1",
		OrganizationID: "org-1",
		Email:          "new@example.com",
		Role:           models.RoleMember,
		Status:         status,
		ExpiresAt:      expiresAt,
	}
}

func TestActionable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    models.InvitationStatus
		expiresAt time.Time
		want      bool
	}{
		{"pending and before deadline", models.InvitationPending, now.Add(time.Hour), true},
		{"pending exactly at deadline", models.InvitationPending, now, true},
		{"pending past deadline", models.InvitationPending, now.Add(-time.Second), false},
		{"accepted", models.InvitationAccepted, now.Add(time.Hour), false},
		{"rejected", models.InvitationRejected, now.Add(time.Hour), false},
		{"canceled", models.InvitationCanceled, now.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := invitation(tt.status, tt.expiresAt)
			if got := Actionable(inv, now); got != tt.want {
				t.Errorf("Actionable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransitionFromPending(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		action InvitationAction
		want   models.InvitationStatus
	}{
		{ActionAccept, models.InvitationAccepted},
		{ActionReject, models.InvitationRejected},
		{ActionCancel, models.InvitationCanceled},
	}

	for _, tt := range tests {
		inv := invitation(models.InvitationPending, future)
		got, err := Transition(inv, tt.action, now)
		if err != nil {
			t.Errorf("Transition(pending, %s) returned error: %v", tt.action, err)
		}
		if got != tt.want {
			t.Errorf("Transition(pending, %s) = %s, want %s", tt.action, got, tt.want)
		}
	}
}

func TestTransitionTerminalStatesRejected(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)

	terminal := []models.InvitationStatus{
		models.InvitationAccepted,
		models.InvitationRejected,
		models.InvitationCanceled,
	}
	actions := []InvitationAction{ActionAccept, ActionReject, ActionCancel}

	for _, status := range terminal {
		for _, action := range actions {
			inv := invitation(status, future)
			got, err := Transition(inv, action, now)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Transition(%s, %s) err = %v, want ErrInvalidTransition", status, action, err)
			}
			if got != status {
				t.Errorf("Transition(%s, %s) changed status to %s", status, action, got)
			}
		}
	}
}

func TestTransitionExpired(t *testing.T) {
	now := time.Now()
	inv := invitation(models.InvitationPending, now.Add(-time.Minute))

	if _, err := Transition(inv, ActionAccept, now); !errors.Is(err, ErrInvitationExpired) {
		t.Errorf("accept on expired invitation err = %v, want ErrInvitationExpired", err)
	}
	if _, err := Transition(inv, ActionReject, now); !errors.Is(err, ErrInvitationExpired) {
		t.Errorf("reject on expired invitation err = %v, want ErrInvitationExpired", err)
	}
	if _, err := Transition(inv, ActionCancel, now); !errors.Is(err, ErrInvitationExpired) {
		t.Errorf("cancel on expired invitation err = %v, want ErrInvitationExpired", err)
	}

	// The stored status never changes on expiry.
	if inv.Status != models.InvitationPending {
		t.Errorf("expired invitation status = %s, want pending", inv.Status)
	}
}

func TestStatusLabelAndBadge(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name      string
		status    models.InvitationStatus
		expiresAt time.Time
		label     string
		badge     BadgeVariant
	}{
		{"pending", models.InvitationPending, future, "Pending", BadgeDefault},
		{"pending expired", models.InvitationPending, past, "Expired", BadgeOutline},
		{"accepted", models.InvitationAccepted, future, "Accepted", BadgeSecondary},
		{"rejected", models.InvitationRejected, future, "Rejected", BadgeDestructive},
		{"canceled", models.InvitationCanceled, future, "Canceled", BadgeOutline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := invitation(tt.status, tt.expiresAt)
			if got := StatusLabel(inv, now); got != tt.label {
				t.Errorf("StatusLabel = %q, want %q", got, tt.label)
			}
			if got := StatusBadge(inv, now); got != tt.badge {
				t.Errorf("StatusBadge = %q, want %q", got, tt.badge)
			}
		})
	}

	// Canceled and rejected stay distinguishable.
	rej := invitation(models.InvitationRejected, future)
	can := invitation(models.InvitationCanceled, future)
	if StatusLabel(rej, now) == StatusLabel(can, now) {
		t.Error("rejected and canceled labels must differ")
	}
	if StatusBadge(rej, now) == StatusBadge(can, now) {
		t.Error("rejected and canceled badges must differ")
	}
}
