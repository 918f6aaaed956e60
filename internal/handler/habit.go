package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rosevale/habitloop/internal/auth"
	"github.com/rosevale/habitloop/internal/billing"
	"github.com/rosevale/habitloop/internal/model"
	"github.com/rosevale/habitloop/internal/notify"
	"github.com/rosevale/habitloop/internal/store"
	"github.com/rosevale/habitloop/internal/streak"
	"github.com/rosevale/habitloop/internal/websocket"
)

type HabitHandler struct {
	habits   *store.HabitStore
	subs     *store.SubscriptionStore
	notifier *notify.Service
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewHabitHandler(
	hs *store.HabitStore,
	subs *store.SubscriptionStore,
	notifier *notify.Service,
	hub *websocket.Hub,
	logger *slog.Logger,
) *HabitHandler {
	return &HabitHandler{
		habits:   hs,
		subs:     subs,
		notifier: notifier,
		hub:      hub,
		logger:   logger,
	}
}

// userClock resolves the user's timezone and day-end hour from their
// notification settings, defaulting when unset.
func (h *HabitHandler) userClock(userID int64) (*time.Location, int) {
	settings := h.notifier.SchedulerFor(userID).Settings()
	if settings == nil {
		settings = notify.DefaultSettings()
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return loc, settings.EndHour
}

type habitWithStreak struct {
	*model.Habit
	Streak streak.Summary `json:"streak"`
}

// List returns the active group's habits with the caller's streaks,
// and re-evaluates streak alerts over the full list.
func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	habits, err := h.habits.List(ac.GroupID)
	if err != nil {
		h.logger.Error("list habits", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	loc, endHour := h.userClock(ac.UserID)
	now := time.Now()

	out := make([]habitWithStreak, 0, len(habits))
	streaks := make([]notify.HabitStreak, 0, len(habits))
	for i := range habits {
		habit := &habits[i]
		logs, err := h.habits.ListLogs(habit.ID, ac.UserID)
		if err != nil {
			h.logger.Error("list logs", "habit_id", habit.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		summary := streak.Compute(habit, logs, now, loc, endHour)
		out = append(out, habitWithStreak{Habit: habit, Streak: summary})
		streaks = append(streaks, notify.HabitStreak{Current: summary.Current, Best: summary.Best})
	}

	h.notifier.RefreshStreakAlerts(ac.UserID, streaks)
	writeJSON(w, http.StatusOK, out)
}

type habitRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
	WeekdayMask *int   `json:"weekday_mask"`
}

func (req *habitRequest) mask() int {
	if req.WeekdayMask == nil {
		return model.WeekdayMaskDaily
	}
	return *req.WeekdayMask & model.WeekdayMaskDaily
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req habitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	plan, err := h.subs.PlanForUser(ac.UserID)
	if err != nil {
		h.logger.Error("plan lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	count, err := h.habits.CountByGroup(ac.GroupID)
	if err != nil {
		h.logger.Error("count habits", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if count >= billing.LimitsFor(plan).MaxHabits {
		writeError(w, http.StatusForbidden, "habit limit reached for your plan")
		return
	}

	habit, err := h.habits.Create(ac.GroupID, req.Name, req.Description, req.Emoji, req.mask(), &ac.UserID)
	if err != nil {
		h.logger.Error("create habit", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(ac.GroupID, websocket.NewMessage("habit", "created", habit.ID, nil))
	writeJSON(w, http.StatusCreated, habit)
}

func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}

	habit, err := h.habits.GetByID(id, ac.GroupID)
	if err != nil {
		h.logger.Error("get habit", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, "habit not found")
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}

	var req habitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	habit, err := h.habits.Update(id, ac.GroupID, req.Name, req.Description, req.Emoji, req.mask())
	if err != nil {
		h.logger.Error("update habit", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, "habit not found")
		return
	}

	h.hub.Broadcast(ac.GroupID, websocket.NewMessage("habit", "updated", habit.ID, nil))
	writeJSON(w, http.StatusOK, habit)
}

func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}

	if err := h.habits.Delete(id, ac.GroupID); err != nil {
		h.logger.Error("delete habit", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(ac.GroupID, websocket.NewMessage("habit", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// UpsertLog records success or failure for a habit day. A missing date
// defaults to the caller's current habit day.
func (h *HabitHandler) UpsertLog(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}

	var req struct {
		Date   string `json:"date"`
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != model.LogStatusSuccess && req.Status != model.LogStatusFailure {
		writeError(w, http.StatusBadRequest, "status must be success or failure")
		return
	}

	habit, err := h.habits.GetByID(id, ac.GroupID)
	if err != nil {
		h.logger.Error("get habit", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, "habit not found")
		return
	}

	loc, endHour := h.userClock(ac.UserID)
	if req.Date == "" {
		req.Date = streak.HabitDay(time.Now(), loc, endHour)
	} else if _, err := time.Parse(streak.DateLayout, req.Date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	log, err := h.habits.UpsertLog(habit.ID, ac.UserID, req.Date, req.Status)
	if err != nil {
		h.logger.Error("upsert log", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(ac.GroupID, websocket.NewMessage("habit_log", "created", log.ID,
		map[string]any{"habit_id": habit.ID}))
	h.refreshStreaks(ac.UserID, habit, loc, endHour)
	writeJSON(w, http.StatusOK, log)
}

// DeleteLog undoes a logged day.
func (h *HabitHandler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}
	date := r.PathValue("date")
	if _, err := time.Parse(streak.DateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	if err := h.habits.DeleteLog(id, ac.UserID, date); err != nil {
		h.logger.Error("delete log", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(ac.GroupID, websocket.NewMessage("habit_log", "deleted", id,
		map[string]any{"date": date}))
	w.WriteHeader(http.StatusNoContent)
}

// Stats returns the caller's streak summary for one habit.
func (h *HabitHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}

	habit, err := h.habits.GetByID(id, ac.GroupID)
	if err != nil {
		h.logger.Error("get habit", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, "habit not found")
		return
	}

	logs, err := h.habits.ListLogs(habit.ID, ac.UserID)
	if err != nil {
		h.logger.Error("list logs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	loc, endHour := h.userClock(ac.UserID)
	writeJSON(w, http.StatusOK, streak.Compute(habit, logs, time.Now(), loc, endHour))
}

// maxHeatmapSpan bounds the heatmap range to a leap year so a single
// request cannot ask for millions of cells.
const maxHeatmapSpan = 366 * 24 * time.Hour

// Heatmap returns per-day cells for a date range.
func (h *HabitHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}

	habit, err := h.habits.GetByID(id, ac.GroupID)
	if err != nil {
		h.logger.Error("get habit", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, "habit not found")
		return
	}

	loc, _ := h.userClock(ac.UserID)
	from, err := time.ParseInLocation(streak.DateLayout, r.URL.Query().Get("from"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.ParseInLocation(streak.DateLayout, r.URL.Query().Get("to"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not precede from")
		return
	}
	if to.Sub(from) > maxHeatmapSpan {
		writeError(w, http.StatusBadRequest, "range must not exceed 366 days")
		return
	}

	logs, err := h.habits.ListLogsInRange(habit.ID, ac.UserID,
		from.Format(streak.DateLayout), to.Format(streak.DateLayout))
	if err != nil {
		h.logger.Error("list logs in range", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, streak.Heatmap(habit, logs, from, to))
}

// refreshStreaks recomputes one habit's streak and re-runs the streak
// alert check after a log mutation.
func (h *HabitHandler) refreshStreaks(userID int64, habit *model.Habit, loc *time.Location, endHour int) {
	logs, err := h.habits.ListLogs(habit.ID, userID)
	if err != nil {
		h.logger.Error("refresh streaks", "error", err)
		return
	}
	summary := streak.Compute(habit, logs, time.Now(), loc, endHour)
	h.notifier.RefreshStreakAlerts(userID, []notify.HabitStreak{
		{Current: summary.Current, Best: summary.Best},
	})
}
