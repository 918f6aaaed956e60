package notify

import (
	"fmt"
	"log/slog"
	"time"
)

// Tier reports which persistence medium served an operation.
type Tier int

const (
	// TierNone means neither medium took the write; the snapshot is lost.
	TierNone Tier = iota
	// TierPrimary is the SQLite settings row.
	TierPrimary
	// TierFallback is the flat JSON file.
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierFallback:
		return "fallback"
	default:
		return "none"
	}
}

// SettingsStore is the primary persistence medium for settings snapshots.
type SettingsStore interface {
	Get(userID int64) (string, error)
	Set(userID int64, value string) error
}

// Cache persists notification settings with a two-tier fallback chain:
// database row first, flat file second. Persistence failures degrade,
// they never propagate to callers.
type Cache struct {
	primary  SettingsStore
	fallback *FileStore
	logger   *slog.Logger
}

func NewCache(primary SettingsStore, fallback *FileStore, logger *slog.Logger) *Cache {
	return &Cache{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With("component", "notify_cache"),
	}
}

func settingsKey(userID int64) string {
	return fmt.Sprintf("notify-settings-%d", userID)
}

func mirrorKey(userID int64, tag string) string {
	return fmt.Sprintf("notification-%d-%s", userID, tag)
}

// Save writes the snapshot to the first tier that accepts it and
// reports which one did. A total failure is logged and swallowed.
func (c *Cache) Save(userID int64, settings *Settings) Tier {
	value, err := settings.encode()
	if err != nil {
		c.logger.Error("encode settings", "user_id", userID, "error", err)
		return TierNone
	}

	if err := c.primary.Set(userID, value); err == nil {
		return TierPrimary
	} else {
		c.logger.Warn("primary settings write failed, using fallback",
			"user_id", userID, "error", err)
	}

	if err := c.fallback.Set(settingsKey(userID), value); err == nil {
		return TierFallback
	} else {
		c.logger.Error("fallback settings write failed, snapshot lost",
			"user_id", userID, "error", err)
	}
	return TierNone
}

// Load returns the stored snapshot, primary tier first, or nil when
// neither tier has one. Read failures degrade to "not found".
func (c *Cache) Load(userID int64) *Settings {
	value, err := c.primary.Get(userID)
	if err != nil {
		c.logger.Warn("primary settings read failed", "user_id", userID, "error", err)
	} else if value != "" {
		settings, err := decodeSettings(value)
		if err == nil {
			return settings
		}
		c.logger.Warn("corrupt primary settings", "user_id", userID, "error", err)
	}

	value, ok := c.fallback.Get(settingsKey(userID))
	if !ok {
		return nil
	}
	settings, err := decodeSettings(value)
	if err != nil {
		c.logger.Warn("corrupt fallback settings", "user_id", userID, "error", err)
		return nil
	}
	return settings
}

// MirrorFireTime records a scheduled fire time in the flat store. The
// entry is written for inspection and prefix cancellation only; the
// scheduler never reads it back.
func (c *Cache) MirrorFireTime(userID int64, tag string, fireAt time.Time) {
	if err := c.fallback.Set(mirrorKey(userID, tag), fireAt.Format(time.RFC3339)); err != nil {
		c.logger.Warn("mirror write failed", "user_id", userID, "tag", tag, "error", err)
	}
}

// ClearMirror removes every mirrored entry whose tag starts with prefix.
func (c *Cache) ClearMirror(userID int64, prefix string) {
	if _, err := c.fallback.DeletePrefix(mirrorKey(userID, prefix)); err != nil {
		c.logger.Warn("mirror clear failed", "user_id", userID, "prefix", prefix, "error", err)
	}
}
