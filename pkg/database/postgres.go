package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"teamhub-backend/pkg/models"

	"github.com/lib/pq"
)

// PostgresDatabase implements DatabaseInterface on PostgreSQL.
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a Postgres connection pool.
func NewPostgresDatabase(dsn string) (DatabaseInterface, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresDatabase{db: db}, nil
}

// isUniqueViolation reports whether err is a unique constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ---- Users ----

func (db *PostgresDatabase) CreateUser(user *models.User) error {
	if user.Provider == "" {
		user.Provider = "email"
	}
	query := `
		INSERT INTO users (email, password_hash, name, avatar, provider, is_admin, disabled, totp_secret, totp_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, user.Email, user.Password, nullIfEmpty(user.Name), nullIfEmpty(user.Avatar),
		user.Provider, user.IsAdmin, user.Disabled, nullIfEmpty(user.TOTPSecret), user.TOTPEnabled).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, email, COALESCE(password_hash,''), COALESCE(name,''), COALESCE(avatar,''),
	COALESCE(provider,'email'), is_admin, disabled, COALESCE(totp_secret,''), totp_enabled, created_at, updated_at`

func (db *PostgresDatabase) scanUser(row *sql.Row) (*models.User, error) {
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

func (db *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return db.scanUser(db.db.QueryRow(query, email))
}

func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return db.scanUser(db.db.QueryRow(query, id))
}

func (db *PostgresDatabase) UpdateUser(user *models.User) error {
	query := `
		UPDATE users
		SET email = $2, password_hash = $3, name = $4, avatar = $5, provider = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, user.ID, user.Email, user.Password,
		nullIfEmpty(user.Name), nullIfEmpty(user.Avatar), user.Provider).Scan(&user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteUser(id string) error {
	_, err := db.db.Exec(`DELETE FROM users WHERE id = $1`, id)
	return err
}

func (db *PostgresDatabase) ListUsers(offset, limit int) ([]models.User, int, error) {
	var total int
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC OFFSET $1 LIMIT $2`
	rows, err := db.db.Query(query, offset, limit)
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

func (db *PostgresDatabase) SetUserDisabled(id string, disabled bool) error {
	res, err := db.db.Exec(`UPDATE users SET disabled = $2, updated_at = NOW() WHERE id = $1`, id, disabled)
	if err != nil {
		return fmt.Errorf("failed to set user disabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) SetUserAdmin(id string, isAdmin bool) error {
	res, err := db.db.Exec(`UPDATE users SET is_admin = $2, updated_at = NOW() WHERE id = $1`, id, isAdmin)
	if err != nil {
		return fmt.Errorf("failed to set user admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) SetUserTOTP(id, secret string, enabled bool) error {
	res, err := db.db.Exec(`UPDATE users SET totp_secret = $2, totp_enabled = $3, updated_at = NOW() WHERE id = $1`,
		id, nullIfEmpty(secret), enabled)
	if err != nil {
		return fmt.Errorf("failed to set user totp: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Sessions ----

func (db *PostgresDatabase) CreateSession(s *models.Session) error {
	query := `
		INSERT INTO sessions (user_id, refresh_token_hash, user_agent, ip, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`
	err := db.db.QueryRow(query, s.UserID, s.RefreshTokenHash,
		nullIfEmpty(s.UserAgent), nullIfEmpty(s.IP), s.ExpiresAt).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, refresh_token_hash, COALESCE(user_agent,''), COALESCE(ip,''), expires_at, revoked_at, created_at`

func (db *PostgresDatabase) GetSessionByTokenHash(hash string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE refresh_token_hash = $1`
	var s models.Session
	err := db.db.QueryRow(query, hash).Scan(&s.ID, &s.UserID, &s.RefreshTokenHash,
		&s.UserAgent, &s.IP, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (db *PostgresDatabase) ListUserSessions(userID string) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := db.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash,
			&s.UserAgent, &s.IP, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (db *PostgresDatabase) RevokeSession(id string) error {
	res, err := db.db.Exec(`UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) RevokeUserSessions(userID string) error {
	_, err := db.db.Exec(`UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	return err
}

// ---- Organizations ----

func (db *PostgresDatabase) CreateOrganization(org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, slug, logo, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, org.Name, org.Slug, nullIfEmpty(org.Logo), org.OwnerID).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

const orgColumns = `id, name, slug, COALESCE(logo,''), owner_id, created_at, updated_at`

func (db *PostgresDatabase) scanOrg(row *sql.Row) (*models.Organization, error) {
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

func (db *PostgresDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	return db.scanOrg(db.db.QueryRow(`SELECT `+orgColumns+` FROM organizations WHERE id = $1`, orgID))
}

func (db *PostgresDatabase) GetOrganizationBySlug(slug string) (*models.Organization, error) {
	return db.scanOrg(db.db.QueryRow(`SELECT `+orgColumns+` FROM organizations WHERE slug = $1`, slug))
}

func (db *PostgresDatabase) UpdateOrganization(org *models.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, slug = $3, logo = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, org.ID, org.Name, org.Slug, nullIfEmpty(org.Logo)).Scan(&org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteOrganization(orgID string) error {
	res, err := db.db.Exec(`DELETE FROM organizations WHERE id = $1`, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) ListUserOrganizations(userID string) ([]models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug, COALESCE(o.logo,''), o.owner_id, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.created_at
	`
	rows, err := db.db.Query(query, userID)
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

func (db *PostgresDatabase) AddOrganizationMember(m *models.OrganizationMembership) error {
	query := `
		INSERT INTO organization_members (organization_id, user_id, role, version, created_at)
		VALUES ($1, $2, $3, 1, NOW())
		RETURNING id, version, created_at
	`
	err := db.db.QueryRow(query, m.OrganizationID, m.UserID, m.Role).Scan(&m.ID, &m.Version, &m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

const memberColumns = `id, organization_id, user_id, role, version, created_at`

func (db *PostgresDatabase) scanMember(row *sql.Row) (*models.OrganizationMembership, error) {
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

func (db *PostgresDatabase) GetMembership(orgID, userID string) (*models.OrganizationMembership, error) {
	query := `SELECT ` + memberColumns + ` FROM organization_members WHERE organization_id = $1 AND user_id = $2`
	return db.scanMember(db.db.QueryRow(query, orgID, userID))
}

func (db *PostgresDatabase) GetMembershipByID(id string) (*models.OrganizationMembership, error) {
	query := `SELECT ` + memberColumns + ` FROM organization_members WHERE id = $1`
	return db.scanMember(db.db.QueryRow(query, id))
}

func (db *PostgresDatabase) ListOrganizationMembers(orgID string) ([]models.OrganizationMembership, error) {
	query := `SELECT ` + memberColumns + ` FROM organization_members WHERE organization_id = $1 ORDER BY created_at`
	rows, err := db.db.Query(query, orgID)
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

func (db *PostgresDatabase) UpdateMemberRole(memberID string, role models.OrgMemberRole, expectedVersion int) error {
	query := `
		UPDATE organization_members
		SET role = $2, version = version + 1
		WHERE id = $1 AND version = $3
	`
	res, err := db.db.Exec(query, memberID, role, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Distinguish a stale version from a missing row.
		if _, err := db.GetMembershipByID(memberID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (db *PostgresDatabase) RemoveMember(memberID string) error {
	res, err := db.db.Exec(`DELETE FROM organization_members WHERE id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) CountOwners(orgID string) (int, error) {
	var count int
	err := db.db.QueryRow(`SELECT COUNT(*) FROM organization_members WHERE organization_id = $1 AND role = 'owner'`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return count, nil
}

// ---- Invitations ----

func (db *PostgresDatabase) CreateInvitation(inv *models.OrganizationInvitation) error {
	query := `
		INSERT INTO organization_invitations (organization_id, email, role, inviter_id, token, status, expires_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, NOW(), NOW())
		RETURNING id, version, created_at, updated_at
	`
	err := db.db.QueryRow(query, inv.OrganizationID, inv.Email, inv.Role, inv.InviterID,
		inv.Token, inv.Status, inv.ExpiresAt).Scan(&inv.ID, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

const invitationColumns = `id, organization_id, email, role, inviter_id, token, status, expires_at, accepted_by, version, created_at, updated_at`

func (db *PostgresDatabase) scanInvitation(row *sql.Row) (*models.OrganizationInvitation, error) {
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

func (db *PostgresDatabase) GetInvitationByID(id string) (*models.OrganizationInvitation, error) {
	return db.scanInvitation(db.db.QueryRow(`SELECT `+invitationColumns+` FROM organization_invitations WHERE id = $1`, id))
}

func (db *PostgresDatabase) GetInvitationByToken(token string) (*models.OrganizationInvitation, error) {
	return db.scanInvitation(db.db.QueryRow(`SELECT `+invitationColumns+` FROM organization_invitations WHERE token = $1`, token))
}

func (db *PostgresDatabase) listInvitations(query string, arg interface{}) ([]models.OrganizationInvitation, error) {
	rows, err := db.db.Query(query, arg)
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

func (db *PostgresDatabase) ListInvitationsByEmail(email string) ([]models.OrganizationInvitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM organization_invitations WHERE email = $1 ORDER BY created_at DESC`
	return db.listInvitations(query, email)
}

func (db *PostgresDatabase) ListOrganizationInvitations(orgID string) ([]models.OrganizationInvitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM organization_invitations WHERE organization_id = $1 ORDER BY created_at DESC`
	return db.listInvitations(query, orgID)
}

func (db *PostgresDatabase) HasPendingInvitation(orgID, email string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM organization_invitations WHERE organization_id = $1 AND email = $2 AND status = 'pending' AND expires_at > NOW()`
	if err := db.db.QueryRow(query, orgID, email).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check pending invitation: %w", err)
	}
	return count > 0, nil
}

func (db *PostgresDatabase) UpdateInvitationStatus(id string, status models.InvitationStatus, acceptedBy *string, expectedVersion int) error {
	query := `
		UPDATE organization_invitations
		SET status = $2, accepted_by = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $4
	`
	res, err := db.db.Exec(query, id, status, acceptedBy, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := db.GetInvitationByID(id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// ---- Conversations & messages ----

func (db *PostgresDatabase) CreateConversation(c *models.Conversation) error {
	if c.Status == "" {
		c.Status = models.ConversationOpen
	}
	query := `
		INSERT INTO conversations (organization_id, subject, peer_email, status, assignee_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, c.OrganizationID, c.Subject, c.PeerEmail, c.Status, c.AssigneeID).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

const conversationColumns = `id, organization_id, subject, peer_email, status, assignee_id, created_at, updated_at, deleted_at`

func (db *PostgresDatabase) GetConversation(id string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1 AND deleted_at IS NULL`
	var c models.Conversation
	err := db.db.QueryRow(query, id).Scan(&c.ID, &c.OrganizationID, &c.Subject, &c.PeerEmail,
		&c.Status, &c.AssigneeID, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

func (db *PostgresDatabase) ListConversations(orgID, status string) ([]models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE organization_id = $1 AND deleted_at IS NULL`
	args := []interface{}{orgID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Subject, &c.PeerEmail,
			&c.Status, &c.AssigneeID, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (db *PostgresDatabase) UpdateConversationStatus(id string, status models.ConversationStatus) error {
	res, err := db.db.Exec(`UPDATE conversations SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) SoftDeleteConversation(id string) error {
	res, err := db.db.Exec(`UPDATE conversations SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) CreateMessage(m *models.Message) error {
	query := `
		INSERT INTO messages (conversation_id, author_id, body, direction, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`
	err := db.db.QueryRow(query, m.ConversationID, m.AuthorID, m.Body, m.Direction).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	// A new message bumps the thread so inbox ordering stays fresh.
	_, _ = db.db.Exec(`UPDATE conversations SET updated_at = NOW() WHERE id = $1`, m.ConversationID)
	return nil
}

func (db *PostgresDatabase) ListMessages(conversationID string) ([]models.Message, error) {
	query := `SELECT id, conversation_id, author_id, body, direction, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at`
	rows, err := db.db.Query(query, conversationID)
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

func (db *PostgresDatabase) CreateLead(l *models.Lead) error {
	if l.Status == "" {
		l.Status = models.LeadNew
	}
	query := `
		INSERT INTO leads (organization_id, email, name, company, source, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, l.OrganizationID, l.Email, nullIfEmpty(l.Name), nullIfEmpty(l.Company),
		nullIfEmpty(l.Source), l.Status, nullIfEmpty(l.Notes)).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

const leadColumns = `id, organization_id, email, COALESCE(name,''), COALESCE(company,''), COALESCE(source,''), status, COALESCE(notes,''), created_at, updated_at, deleted_at`

func (db *PostgresDatabase) GetLead(id string) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 AND deleted_at IS NULL`
	var l models.Lead
	err := db.db.QueryRow(query, id).Scan(&l.ID, &l.OrganizationID, &l.Email, &l.Name, &l.Company,
		&l.Source, &l.Status, &l.Notes, &l.CreatedAt, &l.UpdatedAt, &l.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &l, nil
}

func (db *PostgresDatabase) ListLeads(orgID string) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE organization_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := db.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.Email, &l.Name, &l.Company,
			&l.Source, &l.Status, &l.Notes, &l.CreatedAt, &l.UpdatedAt, &l.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (db *PostgresDatabase) UpdateLeadStatus(id string, status models.LeadStatus) error {
	res, err := db.db.Exec(`UPDATE leads SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Message templates ----

func (db *PostgresDatabase) CreateTemplate(t *models.MessageTemplate) error {
	query := `
		INSERT INTO message_templates (organization_id, name, subject, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, t.OrganizationID, t.Name, nullIfEmpty(t.Subject), t.Body).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

const templateColumns = `id, organization_id, name, COALESCE(subject,''), body, created_at, updated_at, deleted_at`

func (db *PostgresDatabase) GetTemplate(id string) (*models.MessageTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM message_templates WHERE id = $1 AND deleted_at IS NULL`
	var t models.MessageTemplate
	err := db.db.QueryRow(query, id).Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Subject,
		&t.Body, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &t, nil
}

func (db *PostgresDatabase) ListTemplates(orgID string) ([]models.MessageTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM message_templates WHERE organization_id = $1 AND deleted_at IS NULL ORDER BY name`
	rows, err := db.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []models.MessageTemplate{}
	for rows.Next() {
		var t models.MessageTemplate
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Subject,
			&t.Body, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (db *PostgresDatabase) UpdateTemplate(t *models.MessageTemplate) error {
	query := `
		UPDATE message_templates
		SET name = $2, subject = $3, body = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, t.ID, t.Name, nullIfEmpty(t.Subject), t.Body).Scan(&t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteTemplate(id string) error {
	res, err := db.db.Exec(`UPDATE message_templates SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Lifecycle ----

func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
