package notify

import (
	"fmt"
	"time"
)

// Lead times before the day-end boundary.
const (
	leadLong  = 12 * time.Hour
	leadMid   = 6 * time.Hour
	leadShort = time.Hour

	streakLead = 12 * time.Hour
)

var reminderLeads = []struct {
	lead time.Duration
	tag  string
}{
	{leadLong, "reminder-12"},
	{leadMid, "reminder-6"},
	{leadShort, "reminder-1"},
}

// Scheduled is one computed fire time with its cancellation tag.
type Scheduled struct {
	Tag    string
	FireAt time.Time
}

// NextDayEnd returns the next strictly-future day-end boundary: today's
// date at endHour:00 local time, rolled forward one calendar day if that
// instant has already passed.
func NextDayEnd(now time.Time, loc *time.Location, endHour int) time.Time {
	local := now.In(loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), endHour, 0, 0, 0, loc)
	if !end.After(now) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

// ReminderTimes computes the reminder fire times for the current cycle:
// 12, 6 and 1 hours before the next day-end. Times already in the past
// are dropped, not deferred to the following day.
func ReminderTimes(now time.Time, loc *time.Location, endHour int) []Scheduled {
	end := NextDayEnd(now, loc, endHour)
	var out []Scheduled
	for _, r := range reminderLeads {
		fireAt := end.Add(-r.lead)
		if fireAt.After(now) {
			out = append(out, Scheduled{Tag: r.tag, FireAt: fireAt})
		}
	}
	return out
}

// StreakTime computes the single streak-alert fire time, 12 hours before
// the next day-end, tagged with the best streak it would tie. The second
// return is false when that instant has already passed.
func StreakTime(now time.Time, loc *time.Location, endHour, best int) (Scheduled, bool) {
	fireAt := NextDayEnd(now, loc, endHour).Add(-streakLead)
	if !fireAt.After(now) {
		return Scheduled{}, false
	}
	return Scheduled{Tag: fmt.Sprintf("streak-%d", best), FireAt: fireAt}, true
}
