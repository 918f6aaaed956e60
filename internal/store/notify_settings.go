package store

import (
	"database/sql"
	"fmt"
)

// NotifySettingsStore is the primary persistence tier for per-user
// notification settings snapshots. Values are opaque JSON.
type NotifySettingsStore struct {
	db *sql.DB
}

func NewNotifySettingsStore(db *sql.DB) *NotifySettingsStore {
	return &NotifySettingsStore{db: db}
}

// Get returns the stored snapshot for a user, or "" when none exists.
func (s *NotifySettingsStore) Get(userID int64) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM notify_settings WHERE user_id = ?`, userID).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get notify settings: %w", err)
	}
	return value, nil
}

// Set overwrites the stored snapshot for a user. Last write wins.
func (s *NotifySettingsStore) Set(userID int64, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO notify_settings (user_id, value, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(user_id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, value,
	)
	if err != nil {
		return fmt.Errorf("set notify settings: %w", err)
	}
	return nil
}
