package store

import (
	"database/sql"
	"fmt"

	"github.com/rosevale/habitloop/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

const backupCols = `id, object_key, size_bytes, created_at`

func (s *BackupStore) Record(objectKey string, sizeBytes int64) (*model.BackupRecord, error) {
	result, err := s.db.Exec(
		`INSERT INTO backups (object_key, size_bytes) VALUES (?, ?)`,
		objectKey, sizeBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert backup record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	var rec model.BackupRecord
	err = s.db.QueryRow(`SELECT `+backupCols+` FROM backups WHERE id = ?`, id).
		Scan(&rec.ID, &rec.ObjectKey, &rec.SizeBytes, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get backup record: %w", err)
	}
	return &rec, nil
}

func (s *BackupStore) List(limit int) ([]model.BackupRecord, error) {
	rows, err := s.db.Query(`SELECT `+backupCols+` FROM backups ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var recs []model.BackupRecord
	for rows.Next() {
		var rec model.BackupRecord
		if err := rows.Scan(&rec.ID, &rec.ObjectKey, &rec.SizeBytes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Oldest returns the oldest records beyond keep, for pruning.
func (s *BackupStore) Oldest(keep int) ([]model.BackupRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+backupCols+` FROM backups ORDER BY created_at DESC LIMIT -1 OFFSET ?`, keep,
	)
	if err != nil {
		return nil, fmt.Errorf("list oldest backups: %w", err)
	}
	defer rows.Close()

	var recs []model.BackupRecord
	for rows.Next() {
		var rec model.BackupRecord
		if err := rows.Scan(&rec.ID, &rec.ObjectKey, &rec.SizeBytes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *BackupStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM backups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete backup record: %w", err)
	}
	return nil
}
