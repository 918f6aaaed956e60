package store

import (
	"testing"

	"github.com/rosevale/habitloop/internal/database"
)

func TestNotifySettingsGetSet(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := NewUserStore(db)
	ns := NewNotifySettingsStore(db)

	user, err := us.Create("dee@example.com", "Dee")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	// Missing row reads as empty, not an error
	value, err := ns.Get(user.ID)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if value != "" {
		t.Errorf("value = %q, want empty", value)
	}

	payload := `{"timezone":"America/Lima","endHour":0,"configs":{"reminder":true,"streak":false}}`
	if err := ns.Set(user.ID, payload); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err = ns.Get(user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != payload {
		t.Errorf("value = %q, want %q", value, payload)
	}

	// Second write replaces the stored value
	updated := `{"timezone":"Europe/Madrid","endHour":4,"configs":{"reminder":false,"streak":true}}`
	if err := ns.Set(user.ID, updated); err != nil {
		t.Fatalf("set again: %v", err)
	}
	value, _ = ns.Get(user.ID)
	if value != updated {
		t.Errorf("value = %q, want %q", value, updated)
	}
}
