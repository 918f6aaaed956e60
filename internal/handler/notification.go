package handler

import (
	"log/slog"
	"net/http"

	"github.com/rosevale/habitloop/internal/auth"
	"github.com/rosevale/habitloop/internal/model"
	"github.com/rosevale/habitloop/internal/notify"
	"github.com/rosevale/habitloop/internal/store"
)

type NotificationHandler struct {
	pushes   *store.PushStore
	users    *store.UserStore
	notifier *notify.Service
	sender   *notify.WebPushSender
	logger   *slog.Logger
}

func NewNotificationHandler(
	ps *store.PushStore,
	us *store.UserStore,
	notifier *notify.Service,
	sender *notify.WebPushSender,
	logger *slog.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		pushes:   ps,
		users:    us,
		notifier: notifier,
		sender:   sender,
		logger:   logger,
	}
}

// VAPIDKey returns the public key browsers need to subscribe.
func (h *NotificationHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"key": h.sender.VAPIDPublicKey()})
}

// Subscribe registers (or refreshes) a push subscription endpoint.
func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	// Matches PushSubscription.toJSON() from the browser, plus an
	// optional device label.
	var req struct {
		Endpoint       string   `json:"endpoint"`
		ExpirationTime *float64 `json:"expirationTime"`
		Keys           struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
		DeviceName string `json:"device_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint and keys are required")
		return
	}

	sub, err := h.pushes.CreateSubscription(ac.UserID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *NotificationHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	subs, err := h.pushes.ListByUser(ac.UserID)
	if err != nil {
		h.logger.Error("list subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *NotificationHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	if err := h.pushes.DeleteSubscription(id, ac.UserID); err != nil {
		h.logger.Error("delete subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsResponse struct {
	State       string           `json:"state"`
	Timezone    string           `json:"timezone"`
	EndHour     int              `json:"end_hour"`
	Reminders   bool             `json:"reminders"`
	StreakAlert bool             `json:"streak_alerts"`
	Settings    *notify.Settings `json:"settings"`
}

func (h *NotificationHandler) settingsResponse(userID int64) settingsResponse {
	sched := h.notifier.SchedulerFor(userID)
	settings := sched.Settings()
	resp := settingsResponse{
		State:       sched.State().String(),
		Reminders:   sched.Enabled(notify.TypeReminder),
		StreakAlert: sched.Enabled(notify.TypeStreakAlert),
		Settings:    settings,
	}
	if settings == nil {
		settings = notify.DefaultSettings()
	}
	resp.Timezone = settings.Timezone
	resp.EndHour = settings.EndHour
	return resp
}

// GetSettings reports the caller's notification settings and state.
func (h *NotificationHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, h.settingsResponse(ac.UserID))
}

// UpdateSettings changes timezone and day-end hour without touching
// any scheduled notifications.
func (h *NotificationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Timezone string `json:"timezone"`
		EndHour  *int   `json:"end_hour"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	endHour := -1
	if req.EndHour != nil {
		if *req.EndHour < 0 || *req.EndHour > 23 {
			writeError(w, http.StatusBadRequest, "end_hour must be between 0 and 23")
			return
		}
		endHour = *req.EndHour
	}

	h.notifier.SchedulerFor(ac.UserID).UpdateSettings(req.Timezone, endHour)
	writeJSON(w, http.StatusOK, h.settingsResponse(ac.UserID))
}

// Toggle enables or disables one notification type and returns the
// effective enabled flags afterwards.
func (h *NotificationHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Type    string `json:"type"`
		Enabled bool   `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var t notify.NotificationType
	switch req.Type {
	case notify.TypeReminder.String():
		t = notify.TypeReminder
	case notify.TypeStreakAlert.String():
		t = notify.TypeStreakAlert
	default:
		writeError(w, http.StatusBadRequest, "type must be reminder or streak")
		return
	}

	h.notifier.SchedulerFor(ac.UserID).Toggle(t, req.Enabled)
	writeJSON(w, http.StatusOK, h.settingsResponse(ac.UserID))
}

// Permission records the browser's permission decision. A grant only
// sticks when at least one push subscription exists.
func (h *NotificationHandler) Permission(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		State string `json:"state"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.State {
	case model.PushPermissionGranted:
		granted := h.notifier.SchedulerFor(ac.UserID).RequestPermission()
		writeJSON(w, http.StatusOK, map[string]bool{"granted": granted})
	case model.PushPermissionDenied:
		if err := h.users.SetPushPermission(ac.UserID, model.PushPermissionDenied); err != nil {
			h.logger.Error("set push permission", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"granted": false})
	default:
		writeError(w, http.StatusBadRequest, "state must be granted or denied")
	}
}
