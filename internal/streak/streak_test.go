package streak

import (
	"testing"
	"time"

	"github.com/rosevale/habitloop/internal/model"
)

func lima(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Lima")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func dailyHabit() *model.Habit {
	return &model.Habit{ID: 1, Name: "Run", WeekdayMask: model.WeekdayMaskDaily}
}

func successLogs(dates ...string) []model.HabitLog {
	var logs []model.HabitLog
	for _, d := range dates {
		logs = append(logs, model.HabitLog{HabitID: 1, LogDate: d, Status: model.LogStatusSuccess})
	}
	return logs
}

func TestHabitDay(t *testing.T) {
	loc := lima(t)

	tests := []struct {
		name    string
		at      time.Time
		endHour int
		want    string
	}{
		{
			name:    "midnight boundary keeps calendar date",
			at:      time.Date(2026, 3, 10, 23, 30, 0, 0, loc),
			endHour: 0,
			want:    "2026-03-10",
		},
		{
			name:    "late night before 4am boundary counts as yesterday",
			at:      time.Date(2026, 3, 11, 2, 30, 0, 0, loc),
			endHour: 4,
			want:    "2026-03-10",
		},
		{
			name:    "after boundary is today",
			at:      time.Date(2026, 3, 11, 5, 0, 0, 0, loc),
			endHour: 4,
			want:    "2026-03-11",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HabitDay(tt.at, loc, tt.endHour); got != tt.want {
				t.Errorf("HabitDay = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComputeCurrentStreak(t *testing.T) {
	loc := lima(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	// Three consecutive successes up to yesterday, today unlogged.
	logs := successLogs("2026-03-07", "2026-03-08", "2026-03-09")
	s := Compute(dailyHabit(), logs, now, loc, 0)
	if s.Current != 3 {
		t.Errorf("current = %d, want 3 (today still open)", s.Current)
	}
	if s.Best != 3 {
		t.Errorf("best = %d, want 3", s.Best)
	}

	// Logging today extends it.
	logs = append(logs, model.HabitLog{HabitID: 1, LogDate: "2026-03-10", Status: model.LogStatusSuccess})
	s = Compute(dailyHabit(), logs, now, loc, 0)
	if s.Current != 4 {
		t.Errorf("current = %d, want 4", s.Current)
	}

	// A failure today resets it.
	logs[len(logs)-1].Status = model.LogStatusFailure
	s = Compute(dailyHabit(), logs, now, loc, 0)
	if s.Current != 0 {
		t.Errorf("current = %d, want 0 after failure", s.Current)
	}
}

func TestComputeGapBreaksStreak(t *testing.T) {
	loc := lima(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	// 03-08 missing: streak only covers 03-09.
	logs := successLogs("2026-03-06", "2026-03-07", "2026-03-09")
	s := Compute(dailyHabit(), logs, now, loc, 0)
	if s.Current != 1 {
		t.Errorf("current = %d, want 1", s.Current)
	}
	if s.Best != 2 {
		t.Errorf("best = %d, want 2 (the 06-07 run)", s.Best)
	}
}

func TestComputeWeekdayMaskSkipsInactiveDays(t *testing.T) {
	loc := lima(t)
	// 2026-03-09 is a Monday. Habit active Mon/Wed/Fri only.
	mask := 1<<int(time.Monday) | 1<<int(time.Wednesday) | 1<<int(time.Friday)
	habit := &model.Habit{ID: 1, Name: "Gym", WeekdayMask: mask}

	// Fri 03-06 and Mon 03-09 logged; the weekend neither breaks nor counts.
	logs := successLogs("2026-03-06", "2026-03-09")
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc) // Tuesday, inactive
	s := Compute(habit, logs, now, loc, 0)
	if s.Current != 2 {
		t.Errorf("current = %d, want 2", s.Current)
	}
	if s.Best != 2 {
		t.Errorf("best = %d, want 2", s.Best)
	}
}

func TestComputeLateNightBoundary(t *testing.T) {
	loc := lima(t)
	// 01:00 with endHour 4: still habit day 03-09, so the streak ending
	// 03-09 is current even though the calendar says 03-10.
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, loc)
	logs := successLogs("2026-03-08", "2026-03-09")
	s := Compute(dailyHabit(), logs, now, loc, 4)
	if s.Current != 2 {
		t.Errorf("current = %d, want 2", s.Current)
	}
}

func TestComputeTotals(t *testing.T) {
	loc := lima(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	logs := []model.HabitLog{
		{HabitID: 1, LogDate: "2026-03-07", Status: model.LogStatusSuccess},
		{HabitID: 1, LogDate: "2026-03-08", Status: model.LogStatusFailure},
		{HabitID: 1, LogDate: "2026-03-09", Status: model.LogStatusSuccess},
	}
	s := Compute(dailyHabit(), logs, now, loc, 0)
	if s.TotalSuccess != 2 || s.TotalFailure != 1 {
		t.Errorf("totals = %d/%d, want 2/1", s.TotalSuccess, s.TotalFailure)
	}
	if s.SuccessRate < 0.66 || s.SuccessRate > 0.67 {
		t.Errorf("success rate = %f", s.SuccessRate)
	}
}

func TestComputeEmpty(t *testing.T) {
	loc := lima(t)
	s := Compute(dailyHabit(), nil, time.Now(), loc, 0)
	if s.Current != 0 || s.Best != 0 || s.SuccessRate != 0 {
		t.Errorf("empty logs should zero out: %+v", s)
	}
}

func TestHeatmap(t *testing.T) {
	loc := lima(t)
	logs := []model.HabitLog{
		{HabitID: 1, LogDate: "2026-03-02", Status: model.LogStatusSuccess},
		{HabitID: 1, LogDate: "2026-03-04", Status: model.LogStatusFailure},
	}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, loc)
	to := time.Date(2026, 3, 7, 0, 0, 0, 0, loc)

	cells := Heatmap(dailyHabit(), logs, from, to)
	if len(cells) != 7 {
		t.Fatalf("expected 7 cells, got %d", len(cells))
	}
	if cells[1].Date != "2026-03-02" || cells[1].Status != model.LogStatusSuccess {
		t.Errorf("cell 1 = %+v", cells[1])
	}
	if cells[3].Status != model.LogStatusFailure {
		t.Errorf("cell 3 = %+v", cells[3])
	}
	if cells[0].Status != "" {
		t.Errorf("unlogged day should be empty, got %q", cells[0].Status)
	}
}
