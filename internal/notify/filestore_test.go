package notify

import (
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.json")

	fs, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, ok := fs.Get("missing"); ok {
		t.Error("expected missing key")
	}

	if err := fs.Set("notify-settings-1", `{"timezone":"America/Lima"}`); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Reopen from disk: the write must have been flushed.
	fs2, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	value, ok := fs2.Get("notify-settings-1")
	if !ok || value != `{"timezone":"America/Lima"}` {
		t.Errorf("value = %q, ok = %v", value, ok)
	}
}

func TestFileStoreDeletePrefix(t *testing.T) {
	fs, err := OpenFileStore(filepath.Join(t.TempDir(), "notify.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	keys := []string{
		"notification-1-reminder-12",
		"notification-1-reminder-6",
		"notification-1-streak-5",
		"notification-2-reminder-12",
	}
	for _, k := range keys {
		if err := fs.Set(k, "2026-03-10T12:00:00-05:00"); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	removed, err := fs.DeletePrefix("notification-1-reminder")
	if err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("removed %d keys, want 2: %v", len(removed), removed)
	}
	if _, ok := fs.Get("notification-1-streak-5"); !ok {
		t.Error("streak entry should survive a reminder prefix delete")
	}
	if _, ok := fs.Get("notification-2-reminder-12"); !ok {
		t.Error("other user's entry should survive")
	}
}
