package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rosevale/habitloop/internal/model"
)

const inviteTTL = 7 * 24 * time.Hour

type InviteStore struct {
	db *sql.DB
}

func NewInviteStore(db *sql.DB) *InviteStore {
	return &InviteStore{db: db}
}

func scanInvite(scanner interface{ Scan(...any) error }) (*model.Invite, error) {
	var inv model.Invite
	var acceptedAt sql.NullTime
	err := scanner.Scan(
		&inv.ID, &inv.Token, &inv.GroupID, &inv.Email, &inv.InvitedBy,
		&inv.ExpiresAt, &acceptedAt, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}
	return &inv, nil
}

const inviteCols = `id, token, group_id, email, invited_by, expires_at, accepted_at, created_at`

// Create issues a group invitation with a random token and 7-day expiry.
func (s *InviteStore) Create(groupID int64, email string, invitedBy int64) (*model.Invite, error) {
	token := uuid.NewString()
	expiresAt := time.Now().UTC().Add(inviteTTL)

	result, err := s.db.Exec(
		`INSERT INTO invites (token, group_id, email, invited_by, expires_at) VALUES (?, ?, ?, ?, ?)`,
		token, groupID, email, invitedBy, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM invites WHERE id = ?`, id)
	return scanInvite(row)
}

// GetByToken returns a pending invite, or nil when missing, expired, or
// already accepted.
func (s *InviteStore) GetByToken(token string) (*model.Invite, error) {
	row := s.db.QueryRow(
		`SELECT `+inviteCols+` FROM invites WHERE token = ? AND expires_at > datetime('now') AND accepted_at IS NULL`,
		token,
	)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite by token: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) MarkAccepted(id int64) error {
	_, err := s.db.Exec(`UPDATE invites SET accepted_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark invite accepted: %w", err)
	}
	return nil
}

func (s *InviteStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM invites WHERE expires_at <= datetime('now') AND accepted_at IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("delete expired invites: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
