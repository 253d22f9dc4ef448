package models

import "time"

// Session is a server-side record of an issued refresh token. The token
// itself is never stored, only its SHA-256 hash. Revoking the session
// invalidates the refresh token immediately; access tokens expire on their
// own short TTL.
type Session struct {
	ID               string     `json:"id" db:"id"`
	UserID           string     `json:"user_id" db:"user_id"`
	RefreshTokenHash string     `json:"-" db:"refresh_token_hash"`
	UserAgent        string     `json:"user_agent,omitempty" db:"user_agent"`
	IP               string     `json:"ip,omitempty" db:"ip"`
	ExpiresAt        time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// Active reports whether the session can still mint access tokens.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
