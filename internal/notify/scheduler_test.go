package notify

import (
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeBus struct {
	mu       sync.Mutex
	messages []Message
}

func (b *fakeBus) Publish(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

func (b *fakeBus) byType(msgType string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, m := range b.messages {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

type fakePerms struct {
	state     string
	grantable bool
}

func (p *fakePerms) Permission(int64) (string, error) { return p.state, nil }

func (p *fakePerms) Grant(int64) (bool, error) {
	if p.grantable {
		p.state = "granted"
		return true, nil
	}
	return false, nil
}

func testScheduler(t *testing.T, perms PermissionStore) (*Scheduler, *fakeBus, *Cache) {
	t.Helper()
	fs, err := OpenFileStore(filepath.Join(t.TempDir(), "notify.json"))
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	cache := NewCache(newFakeSettingsStore(), fs, slog.New(slog.DiscardHandler))
	bus := &fakeBus{}
	sched := NewScheduler(1, cache, bus, perms, slog.New(slog.DiscardHandler))
	return sched, bus, cache
}

func TestSchedulerUnavailableWithoutBus(t *testing.T) {
	fs, _ := OpenFileStore(filepath.Join(t.TempDir(), "notify.json"))
	cache := NewCache(newFakeSettingsStore(), fs, slog.New(slog.DiscardHandler))
	sched := NewScheduler(1, cache, nil, &fakePerms{state: "granted"}, slog.New(slog.DiscardHandler))

	if sched.State() != StateUnavailable {
		t.Fatalf("state = %v, want unavailable", sched.State())
	}
	if sched.Initialize("America/Lima", 0) {
		t.Error("initialize should fail when unavailable")
	}
	if sched.RequestPermission() {
		t.Error("request permission should fail when unavailable")
	}
	if sched.Toggle(TypeReminder, true) {
		t.Error("toggle should fail when unavailable")
	}
}

func TestSchedulerInitializeRequiresGrant(t *testing.T) {
	sched, _, _ := testScheduler(t, &fakePerms{state: "default"})

	if sched.Initialize("America/Lima", 0) {
		t.Error("initialize should not become ready without permission")
	}
	if sched.State() != StateUninitialized {
		t.Errorf("state = %v, want uninitialized", sched.State())
	}

	// Toggles are no-ops until ready.
	if sched.Toggle(TypeReminder, true) {
		t.Error("toggle before ready should return false")
	}
}

func TestSchedulerInitializeWithGrant(t *testing.T) {
	sched, _, cache := testScheduler(t, &fakePerms{state: "granted"})

	if !sched.Initialize("America/Lima", 22) {
		t.Fatal("initialize should succeed with granted permission")
	}
	if sched.State() != StateReady {
		t.Fatalf("state = %v, want ready", sched.State())
	}

	// Merged settings were persisted.
	stored := cache.Load(1)
	if stored == nil {
		t.Fatal("expected persisted settings")
	}
	if stored.Timezone != "America/Lima" || stored.EndHour != 22 {
		t.Errorf("persisted %+v", stored)
	}
}

func TestSchedulerRequestPermission(t *testing.T) {
	perms := &fakePerms{state: "default"}
	sched, _, _ := testScheduler(t, perms)
	sched.Initialize("America/Lima", 0)

	if sched.RequestPermission() {
		t.Error("grant should fail while not grantable")
	}
	if sched.State() != StateUninitialized {
		t.Errorf("state = %v, want uninitialized", sched.State())
	}

	perms.grantable = true
	if !sched.RequestPermission() {
		t.Fatal("grant should succeed")
	}
	if sched.State() != StateReady {
		t.Errorf("state = %v, want ready", sched.State())
	}
}

func TestToggleReminderCancelsThenReschedules(t *testing.T) {
	sched, bus, _ := testScheduler(t, &fakePerms{state: "granted"})
	loc := lima(t)
	sched.now = func() time.Time { return time.Date(2026, 3, 10, 11, 0, 0, 0, loc) }
	sched.Initialize("America/Lima", 0)

	if !sched.Toggle(TypeReminder, true) {
		t.Fatal("toggle on should report enabled")
	}

	// Cancel is requested before the new schedule goes out.
	if len(bus.messages) != 4 {
		t.Fatalf("expected 4 messages (1 cancel + 3 schedules), got %d", len(bus.messages))
	}
	if bus.messages[0].Type != MsgCancel || bus.messages[0].Payload.Tag != "reminder" {
		t.Errorf("first message = %+v, want reminder cancel", bus.messages[0])
	}

	schedules := bus.byType(MsgSchedule)
	wantTags := map[string]bool{"reminder-12": true, "reminder-6": true, "reminder-1": true}
	for _, m := range schedules {
		if !wantTags[m.Payload.Options.Tag] {
			t.Errorf("unexpected schedule tag %q", m.Payload.Options.Tag)
		}
		if m.Payload.UserID != 1 {
			t.Errorf("userID = %d, want 1", m.Payload.UserID)
		}
		if _, err := time.Parse(time.RFC3339, m.Payload.NotifyAt); err != nil {
			t.Errorf("notifyAt %q not RFC3339: %v", m.Payload.NotifyAt, err)
		}
	}

	// Toggling again is cancel-then-reschedule, not additive.
	bus.messages = nil
	sched.Toggle(TypeReminder, true)
	if got := len(bus.byType(MsgSchedule)); got != 3 {
		t.Errorf("re-toggle scheduled %d, want 3", got)
	}
	if bus.messages[0].Type != MsgCancel {
		t.Error("re-toggle must cancel first")
	}
}

func TestToggleOffCancelsAll(t *testing.T) {
	sched, bus, cache := testScheduler(t, &fakePerms{state: "granted"})
	loc := lima(t)
	sched.now = func() time.Time { return time.Date(2026, 3, 10, 11, 0, 0, 0, loc) }
	sched.Initialize("America/Lima", 0)

	sched.Toggle(TypeReminder, true)
	bus.messages = nil

	if sched.Toggle(TypeReminder, false) {
		t.Error("toggle off should report disabled")
	}
	if len(bus.messages) != 1 || bus.messages[0].Type != MsgCancel {
		t.Fatalf("expected a single cancel, got %+v", bus.messages)
	}

	// The toggle state survives a reload.
	stored := cache.Load(1)
	if stored.Template(TypeReminder).Enabled {
		t.Error("reminder should be stored disabled")
	}
}

func TestStreakNotificationExactMatchOnly(t *testing.T) {
	sched, bus, _ := testScheduler(t, &fakePerms{state: "granted"})
	loc := lima(t)
	sched.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, loc) }
	sched.Initialize("America/Lima", 22)
	sched.Toggle(TypeStreakAlert, true)
	bus.messages = nil

	// One short of the best: schedules.
	sched.ScheduleStreakNotification(6, 7)
	schedules := bus.byType(MsgSchedule)
	if len(schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(schedules))
	}
	if schedules[0].Payload.Options.Tag != "streak-7" {
		t.Errorf("tag = %q, want streak-7", schedules[0].Payload.Options.Tag)
	}

	// Anything but exactly one short is a no-op, including already-tied
	// and already-beaten streaks.
	for _, pair := range [][2]int{{7, 7}, {8, 7}, {5, 7}, {0, 7}, {6, 8}} {
		bus.messages = nil
		sched.ScheduleStreakNotification(pair[0], pair[1])
		if len(bus.messages) != 0 {
			t.Errorf("streak %d/%d should not schedule, got %+v", pair[0], pair[1], bus.messages)
		}
	}
}

func TestStreakNotificationDisabledIsNoop(t *testing.T) {
	sched, bus, _ := testScheduler(t, &fakePerms{state: "granted"})
	loc := lima(t)
	sched.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, loc) }
	sched.Initialize("America/Lima", 22)
	bus.messages = nil

	sched.ScheduleStreakNotification(6, 7)
	if len(bus.messages) != 0 {
		t.Errorf("disabled streak alert should not schedule, got %+v", bus.messages)
	}
}

func TestStreakNotificationPastFireTimeDropped(t *testing.T) {
	sched, bus, _ := testScheduler(t, &fakePerms{state: "granted"})
	loc := lima(t)
	// 11:00 against a 22:00 boundary: the 10:00 fire time is already gone.
	sched.now = func() time.Time { return time.Date(2026, 3, 10, 11, 0, 0, 0, loc) }
	sched.Initialize("America/Lima", 22)
	sched.Toggle(TypeStreakAlert, true)
	bus.messages = nil

	sched.ScheduleStreakNotification(6, 7)
	if len(bus.messages) != 0 {
		t.Errorf("past fire time should be dropped, got %+v", bus.messages)
	}
}

func TestSchedulerMirrorsFireTimes(t *testing.T) {
	fs, err := OpenFileStore(filepath.Join(t.TempDir(), "notify.json"))
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	cache := NewCache(newFakeSettingsStore(), fs, slog.New(slog.DiscardHandler))
	bus := &fakeBus{}
	sched := NewScheduler(4, cache, bus, &fakePerms{state: "granted"}, slog.New(slog.DiscardHandler))
	loc := lima(t)
	sched.now = func() time.Time { return time.Date(2026, 3, 10, 11, 0, 0, 0, loc) }
	sched.Initialize("America/Lima", 0)

	sched.Toggle(TypeReminder, true)
	for _, tag := range []string{"reminder-12", "reminder-6", "reminder-1"} {
		if _, ok := fs.Get("notification-4-" + tag); !ok {
			t.Errorf("missing mirror entry for %s", tag)
		}
	}

	sched.Toggle(TypeReminder, false)
	for _, tag := range []string{"reminder-12", "reminder-6", "reminder-1"} {
		if _, ok := fs.Get("notification-4-" + tag); ok {
			t.Errorf("mirror entry for %s should be cleared", tag)
		}
	}
}

func TestUpdateSettingsPersists(t *testing.T) {
	sched, _, cache := testScheduler(t, &fakePerms{state: "granted"})
	sched.Initialize("America/Lima", 0)

	sched.UpdateSettings("Europe/Madrid", 4)
	stored := cache.Load(1)
	if stored.Timezone != "Europe/Madrid" || stored.EndHour != 4 {
		t.Errorf("stored %+v", stored)
	}
}

func TestSchedulerConcurrentAccess(t *testing.T) {
	sched, _, _ := testScheduler(t, &fakePerms{state: "granted"})
	if !sched.Initialize("America/Lima", 0) {
		t.Fatal("initialize should succeed with granted permission")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				switch n % 4 {
				case 0:
					sched.Toggle(TypeStreakAlert, j%2 == 0)
				case 1:
					sched.ScheduleStreakNotification(6, 7)
				case 2:
					sched.Enabled(TypeReminder)
				default:
					if s := sched.Settings(); s != nil {
						_ = s.Template(TypeStreakAlert).Enabled
					}
				}
			}
		}(i)
	}
	wg.Wait()

	if sched.State() != StateReady {
		t.Errorf("state = %v, want ready", sched.State())
	}
}
