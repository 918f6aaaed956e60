// Package streak computes habit streaks and completion statistics from
// daily logs.
package streak

import (
	"time"

	"github.com/rosevale/habitloop/internal/model"
)

// DateLayout is the day-bucket key format used in habit logs.
const DateLayout = "2006-01-02"

// Summary aggregates one habit's logs for one user.
type Summary struct {
	Current      int     `json:"current"`
	Best         int     `json:"best"`
	TotalSuccess int     `json:"total_success"`
	TotalFailure int     `json:"total_failure"`
	SuccessRate  float64 `json:"success_rate"`
}

// HabitDay maps an instant to the habit day it belongs to. A day-end
// hour after midnight stretches the previous day: at endHour 4, 02:30
// still counts toward yesterday.
func HabitDay(t time.Time, loc *time.Location, endHour int) string {
	local := t.In(loc)
	if endHour != 0 && local.Hour() < endHour {
		local = local.AddDate(0, 0, -1)
	}
	return local.Format(DateLayout)
}

// Compute walks the habit's logs and returns its streak summary as of
// now. Weekdays outside the habit's mask neither extend nor break a
// streak, and the current habit day may still be unlogged without
// breaking the current streak.
func Compute(habit *model.Habit, logs []model.HabitLog, now time.Time, loc *time.Location, endHour int) Summary {
	var s Summary
	byDate := make(map[string]string, len(logs))
	var first time.Time
	for _, l := range logs {
		byDate[l.LogDate] = l.Status
		switch l.Status {
		case model.LogStatusSuccess:
			s.TotalSuccess++
		case model.LogStatusFailure:
			s.TotalFailure++
		}
		d, err := time.ParseInLocation(DateLayout, l.LogDate, loc)
		if err != nil {
			continue
		}
		if first.IsZero() || d.Before(first) {
			first = d
		}
	}
	if total := s.TotalSuccess + s.TotalFailure; total > 0 {
		s.SuccessRate = float64(s.TotalSuccess) / float64(total)
	}
	if len(byDate) == 0 {
		return s
	}

	today, err := time.ParseInLocation(DateLayout, HabitDay(now, loc, endHour), loc)
	if err != nil {
		return s
	}

	// Current streak: walk back from today. The current day gets a grace
	// period while unlogged.
	for d := today; ; d = d.AddDate(0, 0, -1) {
		if !habit.ActiveOn(d.Weekday()) {
			if d.Before(first) {
				break
			}
			continue
		}
		status, logged := byDate[d.Format(DateLayout)]
		if status == model.LogStatusSuccess {
			s.Current++
			continue
		}
		if !logged && d.Equal(today) {
			continue
		}
		break
	}

	// Best streak: forward scan over the whole history.
	run := 0
	for d := first; !d.After(today); d = d.AddDate(0, 0, 1) {
		if !habit.ActiveOn(d.Weekday()) {
			continue
		}
		status, logged := byDate[d.Format(DateLayout)]
		switch {
		case status == model.LogStatusSuccess:
			run++
			if run > s.Best {
				s.Best = run
			}
		case !logged && d.Equal(today):
			// still open
		default:
			run = 0
		}
	}
	if s.Current > s.Best {
		s.Best = s.Current
	}
	return s
}

// HeatmapDay is one cell of a habit heatmap.
type HeatmapDay struct {
	Date   string `json:"date"`
	Status string `json:"status"`
	Active bool   `json:"active"`
}

// Heatmap returns one cell per day in [from, to], inclusive. Days with
// no log have an empty status; Active reflects the weekday mask.
func Heatmap(habit *model.Habit, logs []model.HabitLog, from, to time.Time) []HeatmapDay {
	byDate := make(map[string]string, len(logs))
	for _, l := range logs {
		byDate[l.LogDate] = l.Status
	}

	var out []HeatmapDay
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(DateLayout)
		out = append(out, HeatmapDay{
			Date:   key,
			Status: byDate[key],
			Active: habit.ActiveOn(d.Weekday()),
		})
	}
	return out
}
