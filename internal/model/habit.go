package model

import "time"

// Habit log statuses.
const (
	LogStatusSuccess = "success"
	LogStatusFailure = "failure"
)

// WeekdayMaskDaily has every weekday bit set (bit 0 = Sunday).
const WeekdayMaskDaily = 0x7F

type Habit struct {
	ID          int64     `json:"id"`
	GroupID     int64     `json:"group_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Emoji       string    `json:"emoji"`
	WeekdayMask int       `json:"weekday_mask"`
	CreatedBy   *int64    `json:"created_by"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HabitLog records one user's success or failure for one habit day.
// LogDate is the habit-day label in YYYY-MM-DD form.
type HabitLog struct {
	ID        int64     `json:"id"`
	HabitID   int64     `json:"habit_id"`
	UserID    int64     `json:"user_id"`
	LogDate   string    `json:"log_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ActiveOn reports whether the habit is scheduled on the given weekday.
func (h Habit) ActiveOn(weekday time.Weekday) bool {
	return h.WeekdayMask&(1<<uint(weekday)) != 0
}
