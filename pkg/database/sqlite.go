package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"teamhub-backend/pkg/models"
)

// SQLiteDatabase implements DatabaseInterface on an embedded SQLite
// file. It is the zero-config backend for development and tests.
type SQLiteDatabase struct {
	db *sql.DB
}

// NewSQLiteDatabase opens (and migrates) a SQLite database. Use
// ":memory:" for an ephemeral one.
func NewSQLiteDatabase(path string) (DatabaseInterface, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// The embedded driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	s := &SQLiteDatabase{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDatabase) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL DEFAULT 'email',
			is_admin INTEGER NOT NULL DEFAULT 0,
			disabled INTEGER NOT NULL DEFAULT 0,
			totp_secret TEXT NOT NULL DEFAULT '',
			totp_enabled INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			refresh_token_hash TEXT NOT NULL UNIQUE,
			user_agent TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMP NOT NULL,
			revoked_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			logo TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS organization_members (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(organization_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS organization_invitations (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			email TEXT NOT NULL,
			role TEXT NOT NULL,
			inviter_id TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'pending',
			expires_at TIMESTAMP NOT NULL,
			accepted_by TEXT,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			subject TEXT NOT NULL,
			peer_email TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			assignee_id TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			author_id TEXT,
			body TEXT NOT NULL,
			direction TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS leads (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			email TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'new',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS message_templates (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_members_org ON organization_members(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invitations_email ON organization_invitations(email)`,
		`CREATE INDEX IF NOT EXISTS idx_invitations_org ON organization_invitations(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_org ON conversations(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_org ON leads(organization_id)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}
	return nil
}

func sqliteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---- Users ----

func (s *SQLiteDatabase) CreateUser(user *models.User) error {
	if user.Provider == "" {
		user.Provider = "email"
	}
	user.ID = uuid.NewString()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO users (id, email, password_hash, name, avatar, provider, is_admin, disabled, totp_secret, totp_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Password, user.Name, user.Avatar, user.Provider,
		user.IsAdmin, user.Disabled, user.TOTPSecret, user.TOTPEnabled, user.CreatedAt, user.UpdatedAt)
	if sqliteUnique(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const sqliteUserColumns = `id, email, password_hash, name, avatar, provider, is_admin, disabled, totp_secret, totp_enabled, created_at, updated_at`

func (s *SQLiteDatabase) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Avatar,
		&u.Provider, &u.IsAdmin, &u.Disabled, &u.TOTPSecret, &u.TOTPEnabled, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteDatabase) GetUserByEmail(email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+sqliteUserColumns+` FROM users WHERE email = ?`, email))
}

func (s *SQLiteDatabase) GetUserByID(id string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id))
}

func (s *SQLiteDatabase) UpdateUser(user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE users SET email = ?, password_hash = ?, name = ?, avatar = ?, provider = ?, updated_at = ?
		WHERE id = ?`,
		user.Email, user.Password, user.Name, user.Avatar, user.Provider, user.UpdatedAt, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDatabase) DeleteUser(id string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	return err
}

func (s *SQLiteDatabase) ListUsers(offset, limit int) ([]models.User, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := s.db.Query(`SELECT `+sqliteUserColumns+` FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Avatar,
			&u.Provider, &u.IsAdmin, &u.Disabled, &u.TOTPSecret, &u.TOTPEnabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (s *SQLiteDatabase) SetUserDisabled(id string, disabled bool) error {
	res, err := s.db.Exec(`UPDATE users SET disabled = ?, updated_at = ? WHERE id = ?`, disabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set user disabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDatabase) SetUserAdmin(id string, isAdmin bool) error {
	res, err := s.db.Exec(`UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?`, isAdmin, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set user admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDatabase) SetUserTOTP(id, secret string, enabled bool) error {
	res, err := s.db.Exec(`UPDATE users SET totp_secret = ?, totp_enabled = ?, updated_at = ? WHERE id = ?`,
		secret, enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set user totp: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Sessions ----

func (s *SQLiteDatabase) CreateSession(sess *models.Session) error {
	sess.ID = uuid.NewString()
	sess.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, user_id, refresh_token_hash, user_agent, ip, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.RefreshTokenHash, sess.UserAgent, sess.IP, sess.ExpiresAt, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

const sqliteSessionColumns = `id, user_id, refresh_token_hash, user_agent, ip, expires_at, revoked_at, created_at`

func (s *SQLiteDatabase) GetSessionByTokenHash(hash string) (*models.Session, error) {
	var sess models.Session
	err := s.db.QueryRow(`SELECT `+sqliteSessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, hash).
		Scan(&sess.ID, &sess.UserID, &sess.RefreshTokenHash, &sess.UserAgent, &sess.IP,
			&sess.ExpiresAt, &sess.RevokedAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteDatabase) ListUserSessions(userID string) ([]models.Session, error) {
	rows, err := s.db.Query(`SELECT `+sqliteSessionColumns+` FROM sessions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.RefreshTokenHash, &sess.UserAgent, &sess.IP,
			&sess.ExpiresAt, &sess.RevokedAt, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteDatabase) RevokeSession(id string) error {
	res, err := s.db.Exec(`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDatabase) RevokeUserSessions(userID string) error {
	_, err := s.db.Exec(`UPDATE sessions SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`, time.Now().UTC(), userID)
	return err
}

// ---- Organizations ----

func (s *SQLiteDatabase) CreateOrganization(org *models.Organization) error {
	org.ID = uuid.NewString()
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO organizations (id, name, slug, logo, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.Slug, org.Logo, org.OwnerID, org.CreatedAt, org.UpdatedAt)
	if sqliteUnique(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

const sqliteOrgColumns = `id, name, slug, logo, owner_id, created_at, updated_at`

func (s *SQLiteDatabase) scanOrg(row *sql.Row) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Logo, &o.OwnerID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}
	return &o, nil
}

func (s *SQLiteDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	return s.scanOrg(s.db.QueryRow(`SELECT `+sqliteOrgColumns+` FROM organizations WHERE id = ?`, orgID))
}

func (s *SQLiteDatabase) GetOrganizationBySlug(slug string) (*models.Organization, error) {
	return s.scanOrg(s.db.QueryRow(`SELECT `+sqliteOrgColumns+` FROM organizations WHERE slug = ?`, slug))
}

func (s *SQLiteDatabase) UpdateOrganization(org *models.Organization) error {
	org.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`UPDATE organizations SET name = ?, slug = ?, logo = ?, updated_at = ? WHERE id = ?`,
		org.Name, org.Slug, org.Logo, org.UpdatedAt, org.ID)
	if sqliteUnique(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDatabase) DeleteOrganization(orgID string) error {
	res, err := s.db.Exec(`DELETE FROM organizations WHERE id = ?`, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDatabase) ListUserOrganizations(userID string) ([]models.Organization, error) {
	rows, err := s.db.Query(`
		SELECT o.id, o.name, o.slug, o.logo, o.owner_id, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = ?
		ORDER BY o.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	orgs := []models.Organization{}
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.Logo, &o.OwnerID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// ---- Memberships ----

func (s *SQLiteDatabase) AddOrganizationMember(m *models.OrganizationMembership) error {
	m.ID = uuid.NewString()
	m.Version = 1
	m.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO organization_members (id, organization_id, user_id, role, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.OrganizationID, m.UserID, m.Role, m.Version, m.CreatedAt)
	if sqliteUnique(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

const sqliteMemberColumns = `id, organization_id, user_id, role, version, created_at`

func (s *SQLiteDatabase) scanMember(row *sql.Row) (*models.OrganizationMembership, error) {
	var m models.OrganizationMembership
	err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Version, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}
	return &m, nil
}

func (s *SQLiteDatabase) GetMembership(orgID, userID string) (*models.OrganizationMembership, error) {
	return s.scanMember(s.db.QueryRow(
		`SELECT `+sqliteMemberColumns+` FROM organization_members WHERE organization_id = ? AND user_id = ?`, orgID, userID))
}

func (s *SQLiteDatabase) GetMembershipByID(id string) (*models.OrganizationMembership, error) {
	return s.scanMember(s.db.QueryRow(`SELECT `+sqliteMemberColumns+` FROM organization_members WHERE id = ?`, id))
}

func (s *SQLiteDatabase) ListOrganizationMembers(orgID string) ([]models.OrganizationMembership, error) {
	rows, err := s.db.Query(`SELECT `+sqliteMemberColumns+` FROM organization_members WHERE organization_id = ? ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []models.OrganizationMembership{}
	for rows.Next() {
		var m models.OrganizationMembership
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Version, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLiteDatabase) UpdateMemberRole(memberID string, role models.OrgMemberRole, expectedVersion int) error {
	res, err := s.db.Exec(`
		UPDATE organization_members SET role = ?, version = version + 1
		WHERE id = ? AND version = ?`, role, memberID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetMembershipByID(memberID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *SQLiteDatabase) RemoveMember(memberID string) error {
	res, err := s.db.Exec(`DELETE FROM organization_members WHERE id = ?`, memberID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDatabase) CountOwners(orgID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM organization_members WHERE organization_id = ? AND role = 'owner'`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return count, nil
}

// ---- Invitations ----

func (s *SQLiteDatabase) CreateInvitation(inv *models.OrganizationInvitation) error {
	inv.ID = uuid.NewString()
	inv.Version = 1
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO organization_invitations (id, organization_id, email, role, inviter_id, token, status, expires_at, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.OrganizationID, inv.Email, inv.Role, inv.InviterID, inv.Token,
		inv.Status, inv.ExpiresAt, inv.Version, inv.CreatedAt, inv.UpdatedAt)
	if sqliteUnique(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

const sqliteInvitationColumns = `id, organization_id, email, role, inviter_id, token, status, expires_at, accepted_by, version, created_at, updated_at`

func (s *SQLiteDatabase) scanInvitation(row *sql.Row) (*models.OrganizationInvitation, error) {
	var inv models.OrganizationInvitation
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.InviterID,
		&inv.Token, &inv.Status, &inv.ExpiresAt, &inv.AcceptedBy, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invitation: %w", err)
	}
	return &inv, nil
}

func (s *SQLiteDatabase) GetInvitationByID(id string) (*models.OrganizationInvitation, error) {
	return s.scanInvitation(s.db.QueryRow(`SELECT `+sqliteInvitationColumns+` FROM organization_invitations WHERE id = ?`, id))
}

func (s *SQLiteDatabase) GetInvitationByToken(token string) (*models.OrganizationInvitation, error) {
	return s.scanInvitation(s.db.QueryRow(`SELECT `+sqliteInvitationColumns+` FROM organization_invitations WHERE token = ?`, token))
}

func (s *SQLiteDatabase) listInvitations(query string, arg interface{}) ([]models.OrganizationInvitation, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	invitations := []models.OrganizationInvitation{}
	for rows.Next() {
		var inv models.OrganizationInvitation
		if err := rows.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.InviterID,
			&inv.Token, &inv.Status, &inv.ExpiresAt, &inv.AcceptedBy, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

func (s *SQLiteDatabase) ListInvitationsByEmail(email string) ([]models.OrganizationInvitation, error) {
	return s.listInvitations(`SELECT `+sqliteInvitationColumns+` FROM organization_invitations WHERE email = ? ORDER BY created_at DESC`, email)
}

func (s *SQLiteDatabase) ListOrganizationInvitations(orgID string) ([]models.OrganizationInvitation, error) {
	return s.listInvitations(`SELECT `+sqliteInvitationColumns+` FROM organization_invitations WHERE organization_id = ? ORDER BY created_at DESC`, orgID)
}

func (s *SQLiteDatabase) HasPendingInvitation(orgID, email string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM organization_invitations
		WHERE organization_id = ? AND email = ? AND status = 'pending' AND expires_at > ?`,
		orgID, email, time.Now().UTC()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check pending invitation: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteDatabase) UpdateInvitationStatus(id string, status models.InvitationStatus, acceptedBy *string, expectedVersion int) error {
	res, err := s.db.Exec(`
		UPDATE organization_invitations
		SET status = ?, accepted_by = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		status, acceptedBy, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetInvitationByID(id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// ---- Conversations & messages ----

func (s *SQLiteDatabase) CreateConversation(c *models.Conversation) error {
	if c.Status == "" {
		c.Status = models.ConversationOpen
	}
	c.ID = uuid.NewString()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO conversations (id, organization_id, subject, peer_email, status, assignee_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrganizationID, c.Subject, c.PeerEmail, c.Status, c.AssigneeID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

const sqliteConversationColumns = `id, organization_id, subject, peer_email, status, assignee_id, created_at, updated_at, deleted_at`

func (s *SQLiteDatabase) GetConversation(id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRow(`SELECT `+sqliteConversationColumns+` FROM conversations WHERE id = ? AND deleted_at IS NULL`, id).
		Scan(&c.ID, &c.OrganizationID, &c.Subject, &c.PeerEmail, &c.Status, &c.AssigneeID,
			&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

func (s *SQLiteDatabase) ListConversations(orgID, status string) ([]models.Conversation, error) {
	query := `SELECT ` + sqliteConversationColumns + ` FROM conversations WHERE organization_id = ? AND deleted_at IS NULL`
	args := []interface{}{orgID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Subject, &c.PeerEmail, &c.Status, &c.AssigneeID,
			&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (s *SQLiteDatabase) UpdateConversationStatus(id string, status models.ConversationStatus) error {
	res, err := s.db.Exec(`UPDATE conversations SET status = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDatabase) SoftDeleteConversation(id string) error {
	res, err := s.db.Exec(`UPDATE conversations SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDatabase) CreateMessage(m *models.Message) error {
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO messages (id, conversation_id, author_id, body, direction, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.AuthorID, m.Body, m.Direction, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	_, _ = s.db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, m.CreatedAt, m.ConversationID)
	return nil
}

func (s *SQLiteDatabase) ListMessages(conversationID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, author_id, body, direction, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AuthorID, &m.Body, &m.Direction, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ---- Leads ----

func (s *SQLiteDatabase) CreateLead(l *models.Lead) error {
	if l.Status == "" {
		l.Status = models.LeadNew
	}
	l.ID = uuid.NewString()
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO leads (id, organization_id, email, name, company, source, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.OrganizationID, l.Email, l.Name, l.Company, l.Source, l.Status, l.Notes, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

const sqliteLeadColumns = `id, organization_id, email, name, company, source, status, notes, created_at, updated_at, deleted_at`

func (s *SQLiteDatabase) GetLead(id string) (*models.Lead, error) {
	var l models.Lead
	err := s.db.QueryRow(`SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ? AND deleted_at IS NULL`, id).
		Scan(&l.ID, &l.OrganizationID, &l.Email, &l.Name, &l.Company, &l.Source, &l.Status, &l.Notes,
			&l.CreatedAt, &l.UpdatedAt, &l.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &l, nil
}

func (s *SQLiteDatabase) ListLeads(orgID string) ([]models.Lead, error) {
	rows, err := s.db.Query(`SELECT `+sqliteLeadColumns+` FROM leads WHERE organization_id = ? AND deleted_at IS NULL ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.Email, &l.Name, &l.Company, &l.Source,
			&l.Status, &l.Notes, &l.CreatedAt, &l.UpdatedAt, &l.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (s *SQLiteDatabase) UpdateLeadStatus(id string, status models.LeadStatus) error {
	res, err := s.db.Exec(`UPDATE leads SET status = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Message templates ----

func (s *SQLiteDatabase) CreateTemplate(t *models.MessageTemplate) error {
	t.ID = uuid.NewString()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO message_templates (id, organization_id, name, subject, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrganizationID, t.Name, t.Subject, t.Body, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

const sqliteTemplateColumns = `id, organization_id, name, subject, body, created_at, updated_at, deleted_at`

func (s *SQLiteDatabase) GetTemplate(id string) (*models.MessageTemplate, error) {
	var t models.MessageTemplate
	err := s.db.QueryRow(`SELECT `+sqliteTemplateColumns+` FROM message_templates WHERE id = ? AND deleted_at IS NULL`, id).
		Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Subject, &t.Body, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &t, nil
}

func (s *SQLiteDatabase) ListTemplates(orgID string) ([]models.MessageTemplate, error) {
	rows, err := s.db.Query(`SELECT `+sqliteTemplateColumns+` FROM message_templates WHERE organization_id = ? AND deleted_at IS NULL ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []models.MessageTemplate{}
	for rows.Next() {
		var t models.MessageTemplate
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Subject, &t.Body,
			&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *SQLiteDatabase) UpdateTemplate(t *models.MessageTemplate) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`UPDATE message_templates SET name = ?, subject = ?, body = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		t.Name, t.Subject, t.Body, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDatabase) DeleteTemplate(id string) error {
	res, err := s.db.Exec(`UPDATE message_templates SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Lifecycle ----

func (s *SQLiteDatabase) HealthCheck() error {
	return s.db.Ping()
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}
