package notify

import (
	"log/slog"
	"sync"
)

// HabitStreak is the per-habit streak pair the service needs to decide
// whether a streak alert applies.
type HabitStreak struct {
	Current int
	Best    int
}

// Service is the composition root for notifications: it owns the cache,
// the bus hand-off and one lazily built scheduler per user. Handlers
// never construct schedulers themselves.
type Service struct {
	cache  *Cache
	bus    Bus
	perms  PermissionStore
	logger *slog.Logger

	mu         sync.Mutex
	schedulers map[int64]*Scheduler
}

func NewService(cache *Cache, bus Bus, perms PermissionStore, logger *slog.Logger) *Service {
	return &Service{
		cache:      cache,
		bus:        bus,
		perms:      perms,
		logger:     logger,
		schedulers: make(map[int64]*Scheduler),
	}
}

// SchedulerFor returns the user's scheduler, building and initializing
// it from the stored snapshot on first use.
func (s *Service) SchedulerFor(userID int64) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sched, ok := s.schedulers[userID]; ok {
		return sched
	}
	sched := NewScheduler(userID, s.cache, s.bus, s.perms, s.logger)
	sched.Initialize("", -1)
	s.schedulers[userID] = sched
	return sched
}

// RefreshStreakAlerts re-evaluates the streak alert for every habit.
// It runs in full each time with no diffing; duplicate schedules share
// a tag and collapse in the worker.
func (s *Service) RefreshStreakAlerts(userID int64, habits []HabitStreak) {
	sched := s.SchedulerFor(userID)
	if !sched.Enabled(TypeStreakAlert) {
		return
	}
	for _, h := range habits {
		sched.ScheduleStreakNotification(h.Current, h.Best)
	}
}
