package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rosevale/habitloop/internal/model"
)

// State is the scheduler lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "uninitialized"
	}
}

// Scheduler owns one user's live notification settings, computes fire
// times and hands delivery requests to the bus. One instance per user,
// constructed and held by the Service, and shared across request
// goroutines: the mutex guards state, settings and loc.
type Scheduler struct {
	userID int64
	cache  *Cache
	bus    Bus
	perms  PermissionStore
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	state    State
	settings *Settings
	loc      *time.Location
}

// NewScheduler builds a scheduler for one user. A missing bus or
// permission source makes it permanently unavailable: every operation
// becomes a no-op returning false.
func NewScheduler(userID int64, cache *Cache, bus Bus, perms PermissionStore, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		userID: userID,
		cache:  cache,
		bus:    bus,
		perms:  perms,
		logger: logger.With("component", "notify_scheduler", "user_id", userID),
		now:    time.Now,
		loc:    time.UTC,
	}
	if bus == nil || perms == nil || cache == nil {
		s.state = StateUnavailable
	}
	return s
}

// State reports the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Initialize loads stored settings, merges in the given timezone and
// day-end hour, and moves to ready if push permission is already
// granted. Returns whether the scheduler is ready.
func (s *Scheduler) Initialize(timezone string, endHour int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUnavailable {
		return false
	}

	settings := s.cache.Load(s.userID)
	if settings == nil {
		settings = DefaultSettings()
	}
	if timezone != "" {
		settings.Timezone = timezone
	}
	if endHour >= 0 && endHour <= 23 {
		settings.EndHour = endHour
	}
	s.settings = settings
	s.loc = s.loadLocation(settings.Timezone)

	state, err := s.perms.Permission(s.userID)
	if err != nil {
		s.logger.Warn("permission check failed", "error", err)
		return false
	}
	if state != model.PushPermissionGranted {
		return false
	}

	s.cache.Save(s.userID, s.settings)
	s.state = StateReady
	return true
}

// RequestPermission asks for push permission; on grant it persists the
// settings and becomes ready.
func (s *Scheduler) RequestPermission() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateUnavailable:
		return false
	case StateReady:
		return true
	}

	granted, err := s.perms.Grant(s.userID)
	if err != nil {
		s.logger.Warn("permission request failed", "error", err)
		return false
	}
	if !granted {
		return false
	}

	if s.settings == nil {
		s.settings = DefaultSettings()
		s.loc = s.loadLocation(s.settings.Timezone)
	}
	s.cache.Save(s.userID, s.settings)
	s.state = StateReady
	return true
}

// UpdateSettings changes timezone and day-end hour in place and
// re-persists. Already scheduled notifications are not recomputed until
// the next toggle or streak refresh.
func (s *Scheduler) UpdateSettings(timezone string, endHour int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return
	}
	if timezone != "" {
		s.settings.Timezone = timezone
		s.loc = s.loadLocation(timezone)
	}
	if endHour >= 0 && endHour <= 23 {
		s.settings.EndHour = endHour
	}
	s.cache.Save(s.userID, s.settings)
}

// Toggle flips one notification type on or off, persists the snapshot
// and reconciles the schedule: enabling cancels any previous instances
// of the type before scheduling anew, disabling cancels them all.
// Returns the resulting enabled state.
func (s *Scheduler) Toggle(t NotificationType, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return false
	}

	tmpl := s.settings.ensureTemplate(t)
	tmpl.Enabled = enabled
	s.cache.Save(s.userID, s.settings)

	s.cancelType(t)
	if enabled && t == TypeReminder {
		s.scheduleReminders(tmpl)
	}
	return tmpl.Enabled
}

// Enabled reports the toggle state for a type.
func (s *Scheduler) Enabled(t NotificationType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return false
	}
	return s.settings.Template(t).Enabled
}

// Settings returns a copy of the snapshot, or nil before
// initialization.
func (s *Scheduler) Settings() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return nil
	}
	return s.settings.clone()
}

// ScheduleStreakNotification schedules the single streak alert, but
// only when streak alerts are on and the current streak is exactly one
// day short of the best: the alert fires for one qualifying day per
// climb. A fire time already in the past is dropped, not deferred.
func (s *Scheduler) ScheduleStreakNotification(current, best int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateReady {
		return
	}
	tmpl := s.settings.Template(TypeStreakAlert)
	if !tmpl.Enabled {
		return
	}
	if current+1 != best {
		return
	}

	sched, ok := StreakTime(s.now(), s.loc, s.settings.EndHour, best)
	if !ok {
		return
	}
	s.publishSchedule(tmpl, sched, map[string]any{
		"type":          TypeStreakAlert.String(),
		"currentStreak": current,
		"bestStreak":    best,
	})
}

func (s *Scheduler) scheduleReminders(tmpl *Template) {
	for _, sched := range ReminderTimes(s.now(), s.loc, s.settings.EndHour) {
		s.publishSchedule(tmpl, sched, map[string]any{"type": TypeReminder.String()})
	}
}

func (s *Scheduler) publishSchedule(tmpl *Template, sched Scheduled, data map[string]any) {
	s.bus.Publish(Message{
		Type: MsgSchedule,
		Payload: Payload{
			Title: tmpl.Title,
			Options: Options{
				Body:  tmpl.Body,
				Icon:  tmpl.Icon,
				Badge: tmpl.Badge,
				Tag:   sched.Tag,
				Data:  data,
			},
			NotifyAt: sched.FireAt.Format(time.RFC3339),
			UserID:   s.userID,
		},
	})
	s.cache.MirrorFireTime(s.userID, sched.Tag, sched.FireAt)
}

func (s *Scheduler) cancelType(t NotificationType) {
	prefix := s.settings.Template(t).Tag
	s.cache.ClearMirror(s.userID, prefix)
	s.bus.Publish(Message{
		Type:    MsgCancel,
		Payload: Payload{Tag: prefix, UserID: s.userID},
	})
}

func (s *Scheduler) loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		s.logger.Warn("unknown timezone, using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}
