package store

import (
	"database/sql"
	"fmt"

	"github.com/rosevale/habitloop/internal/model"
)

type HabitStore struct {
	db *sql.DB
}

func NewHabitStore(db *sql.DB) *HabitStore {
	return &HabitStore{db: db}
}

func scanHabit(scanner interface{ Scan(...any) error }) (*model.Habit, error) {
	var h model.Habit
	var createdBy sql.NullInt64

	err := scanner.Scan(
		&h.ID, &h.GroupID, &h.Name, &h.Description, &h.Emoji,
		&h.WeekdayMask, &createdBy, &h.SortOrder, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		h.CreatedBy = &createdBy.Int64
	}
	return &h, nil
}

const habitCols = `id, group_id, name, description, emoji, weekday_mask, created_by, sort_order, created_at, updated_at`

func (s *HabitStore) Create(groupID int64, name, description, emoji string, weekdayMask int, createdBy *int64) (*model.Habit, error) {
	var by sql.NullInt64
	if createdBy != nil {
		by = sql.NullInt64{Int64: *createdBy, Valid: true}
	}
	result, err := s.db.Exec(
		`INSERT INTO habits (group_id, name, description, emoji, weekday_mask, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		groupID, name, description, emoji, weekdayMask, by,
	)
	if err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id, groupID)
}

func (s *HabitStore) GetByID(id, groupID int64) (*model.Habit, error) {
	row := s.db.QueryRow(`SELECT `+habitCols+` FROM habits WHERE id = ? AND group_id = ?`, id, groupID)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

func (s *HabitStore) List(groupID int64) ([]model.Habit, error) {
	rows, err := s.db.Query(
		`SELECT `+habitCols+` FROM habits WHERE group_id = ? ORDER BY sort_order ASC, name ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []model.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

func (s *HabitStore) CountByGroup(groupID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM habits WHERE group_id = ?`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count habits: %w", err)
	}
	return count, nil
}

func (s *HabitStore) Update(id, groupID int64, name, description, emoji string, weekdayMask int) (*model.Habit, error) {
	_, err := s.db.Exec(
		`UPDATE habits SET name = ?, description = ?, emoji = ?, weekday_mask = ?, updated_at = datetime('now')
		 WHERE id = ? AND group_id = ?`,
		name, description, emoji, weekdayMask, id, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return s.GetByID(id, groupID)
}

func (s *HabitStore) Delete(id, groupID int64) error {
	_, err := s.db.Exec(`DELETE FROM habits WHERE id = ? AND group_id = ?`, id, groupID)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

// --- Log methods ---

func scanLog(scanner interface{ Scan(...any) error }) (*model.HabitLog, error) {
	var l model.HabitLog
	err := scanner.Scan(&l.ID, &l.HabitID, &l.UserID, &l.LogDate, &l.Status, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const logCols = `id, habit_id, user_id, log_date, status, created_at`

// UpsertLog records a success or failure for a habit day, replacing any
// earlier entry for the same day.
func (s *HabitStore) UpsertLog(habitID, userID int64, logDate, status string) (*model.HabitLog, error) {
	_, err := s.db.Exec(
		`INSERT INTO habit_logs (habit_id, user_id, log_date, status) VALUES (?, ?, ?, ?)
		 ON CONFLICT(habit_id, user_id, log_date) DO UPDATE SET status = excluded.status`,
		habitID, userID, logDate, status,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert habit log: %w", err)
	}
	row := s.db.QueryRow(
		`SELECT `+logCols+` FROM habit_logs WHERE habit_id = ? AND user_id = ? AND log_date = ?`,
		habitID, userID, logDate,
	)
	return scanLog(row)
}

func (s *HabitStore) DeleteLog(habitID, userID int64, logDate string) error {
	_, err := s.db.Exec(
		`DELETE FROM habit_logs WHERE habit_id = ? AND user_id = ? AND log_date = ?`,
		habitID, userID, logDate,
	)
	if err != nil {
		return fmt.Errorf("delete habit log: %w", err)
	}
	return nil
}

// ListLogs returns a user's logs for one habit ordered by day ascending.
func (s *HabitStore) ListLogs(habitID, userID int64) ([]model.HabitLog, error) {
	rows, err := s.db.Query(
		`SELECT `+logCols+` FROM habit_logs WHERE habit_id = ? AND user_id = ? ORDER BY log_date ASC`,
		habitID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

// ListLogsInRange returns a user's logs for one habit between two habit-day
// labels (inclusive).
func (s *HabitStore) ListLogsInRange(habitID, userID int64, from, to string) ([]model.HabitLog, error) {
	rows, err := s.db.Query(
		`SELECT `+logCols+` FROM habit_logs WHERE habit_id = ? AND user_id = ? AND log_date >= ? AND log_date <= ? ORDER BY log_date ASC`,
		habitID, userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list habit logs in range: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

func scanLogs(rows *sql.Rows) ([]model.HabitLog, error) {
	var logs []model.HabitLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}
