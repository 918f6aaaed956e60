package store

import (
	"testing"

	"github.com/rosevale/habitloop/internal/database"
)

func setupSessionTest(t *testing.T) (*SessionStore, *GroupStore, int64, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := NewUserStore(db)
	gs := NewGroupStore(db)
	user, err := us.Create("ana@example.com", "Ana")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	group, err := gs.Create("Ana's habits", true)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return NewSessionStore(db), gs, user.ID, group.ID
}

func TestSessionLifecycle(t *testing.T) {
	ss, _, userID, groupID := setupSessionTest(t)

	sess, err := ss.Create(userID, groupID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("session token should not be empty")
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.UserID != userID || got.GroupID != groupID {
		t.Fatalf("session = %+v, want user %d group %d", got, userID, groupID)
	}

	if err := ss.Delete(sess.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	got, err = ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("deleted session should not resolve")
	}
}

func TestSessionUnknownToken(t *testing.T) {
	ss, _, _, _ := setupSessionTest(t)

	got, err := ss.GetByToken("nope")
	if err != nil {
		t.Fatalf("get unknown token: %v", err)
	}
	if got != nil {
		t.Error("unknown token should return nil")
	}
}

func TestSessionSwitchGroup(t *testing.T) {
	ss, gs, userID, groupID := setupSessionTest(t)

	sess, err := ss.Create(userID, groupID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	other, err := gs.Create("Shared", false)
	if err != nil {
		t.Fatalf("create second group: %v", err)
	}
	if err := ss.SwitchGroup(sess.ID, other.ID); err != nil {
		t.Fatalf("switch group: %v", err)
	}
	got, err := ss.GetByToken(sess.Token)
	if err != nil || got == nil {
		t.Fatalf("get after switch: %v", err)
	}
	if got.GroupID != other.ID {
		t.Errorf("group_id = %d, want %d", got.GroupID, other.ID)
	}
}
