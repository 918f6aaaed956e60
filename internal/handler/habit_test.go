package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/rosevale/habitloop/internal/auth"
	"github.com/rosevale/habitloop/internal/database"
	"github.com/rosevale/habitloop/internal/model"
	"github.com/rosevale/habitloop/internal/notify"
	"github.com/rosevale/habitloop/internal/store"
	"github.com/rosevale/habitloop/internal/streak"
	ws "github.com/rosevale/habitloop/internal/websocket"
)

type habitTestEnv struct {
	mux    *http.ServeMux
	ac     auth.AuthContext
	habits *store.HabitStore
}

func setupHabitHandler(t *testing.T) habitTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.DiscardHandler)
	users := store.NewUserStore(db)
	groups := store.NewGroupStore(db)
	habits := store.NewHabitStore(db)
	pushes := store.NewPushStore(db)
	subs := store.NewSubscriptionStore(db)

	user, err := users.Create("ana@example.com", "Ana")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	group, err := groups.Create("Ana's habits", true)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if _, err := groups.AddMember(group.ID, user.ID, "admin"); err != nil {
		t.Fatalf("add member: %v", err)
	}

	fallback, err := notify.OpenFileStore(filepath.Join(t.TempDir(), "fallback.json"))
	if err != nil {
		t.Fatalf("open fallback store: %v", err)
	}
	cache := notify.NewCache(store.NewNotifySettingsStore(db), fallback, logger)
	bus := notify.NewChannelBus(64, logger)
	t.Cleanup(bus.Close)
	notifier := notify.NewService(cache, bus, notify.NewStorePermissions(users, pushes), logger)

	h := NewHabitHandler(habits, subs, notifier, ws.NewHub(logger), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/habits", h.List)
	mux.HandleFunc("POST /api/habits", h.Create)
	mux.HandleFunc("GET /api/habits/{id}", h.Get)
	mux.HandleFunc("PUT /api/habits/{id}", h.Update)
	mux.HandleFunc("DELETE /api/habits/{id}", h.Delete)
	mux.HandleFunc("POST /api/habits/{id}/logs", h.UpsertLog)
	mux.HandleFunc("GET /api/habits/{id}/stats", h.Stats)
	mux.HandleFunc("GET /api/habits/{id}/heatmap", h.Heatmap)

	return habitTestEnv{
		mux:    mux,
		ac:     auth.AuthContext{UserID: user.ID, GroupID: group.ID, Role: "admin"},
		habits: habits,
	}
}

func (env habitTestEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(auth.WithAuth(req.Context(), env.ac))
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func TestHabitCreateAndGet(t *testing.T) {
	env := setupHabitHandler(t)

	rec := env.do(t, http.MethodPost, "/api/habits", `{"name":"Read 20 pages","emoji":"books"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var created model.Habit
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.WeekdayMask != model.WeekdayMaskDaily {
		t.Errorf("weekday mask = %#x, want daily default %#x", created.WeekdayMask, model.WeekdayMaskDaily)
	}

	rec = env.do(t, http.MethodGet, "/api/habits/"+itoa(created.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHabitCreateEnforcesPlanLimit(t *testing.T) {
	env := setupHabitHandler(t)

	// Free plan allows five habits.
	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/api/habits", `{"name":"habit"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("habit %d: status = %d, want %d", i, rec.Code, http.StatusCreated)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/habits", `{"name":"one too many"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHabitLogDefaultsToToday(t *testing.T) {
	env := setupHabitHandler(t)

	rec := env.do(t, http.MethodPost, "/api/habits", `{"name":"Meditate"}`)
	var habit model.Habit
	if err := json.Unmarshal(rec.Body.Bytes(), &habit); err != nil {
		t.Fatalf("decode habit: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/habits/"+itoa(habit.ID)+"/logs", `{"status":"success"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("log status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var log model.HabitLog
	if err := json.Unmarshal(rec.Body.Bytes(), &log); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if log.LogDate == "" {
		t.Fatal("log date should default to the current habit day")
	}

	rec = env.do(t, http.MethodGet, "/api/habits/"+itoa(habit.ID)+"/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want %d", rec.Code, http.StatusOK)
	}
	var summary struct {
		Current int `json:"current"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Current != 1 {
		t.Errorf("current streak = %d, want 1", summary.Current)
	}
}

func TestHabitLogRejectsBadStatus(t *testing.T) {
	env := setupHabitHandler(t)

	rec := env.do(t, http.MethodPost, "/api/habits", `{"name":"Meditate"}`)
	var habit model.Habit
	if err := json.Unmarshal(rec.Body.Bytes(), &habit); err != nil {
		t.Fatalf("decode habit: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/habits/"+itoa(habit.ID)+"/logs", `{"status":"done"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHabitHeatmapCapsRange(t *testing.T) {
	env := setupHabitHandler(t)

	rec := env.do(t, http.MethodPost, "/api/habits", `{"name":"Stretch"}`)
	var habit model.Habit
	if err := json.Unmarshal(rec.Body.Bytes(), &habit); err != nil {
		t.Fatalf("decode habit: %v", err)
	}

	rec = env.do(t, http.MethodGet, "/api/habits/"+itoa(habit.ID)+"/heatmap?from=2025-01-01&to=2025-03-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var days []streak.HeatmapDay
	if err := json.Unmarshal(rec.Body.Bytes(), &days); err != nil {
		t.Fatalf("decode heatmap: %v", err)
	}
	if len(days) != 90 {
		t.Errorf("day count = %d, want 90", len(days))
	}

	rec = env.do(t, http.MethodGet, "/api/habits/"+itoa(habit.ID)+"/heatmap?from=0001-01-01&to=9999-12-31", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d for oversized range", rec.Code, http.StatusBadRequest)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
