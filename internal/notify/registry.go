package notify

// NotificationType identifies a class of scheduled notification.
type NotificationType int

const (
	TypeReminder NotificationType = iota
	TypeStreakAlert
)

// String returns the stable key used in persisted settings and tags.
func (t NotificationType) String() string {
	switch t {
	case TypeReminder:
		return "reminder"
	case TypeStreakAlert:
		return "streak"
	default:
		return "unknown"
	}
}

// Template holds the display text for one notification type. Enabled is
// the only mutable field and only the Scheduler flips it.
type Template struct {
	Enabled bool   `json:"enabled"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Icon    string `json:"icon"`
	Badge   string `json:"badge"`
	Tag     string `json:"tag"`
}

// DefaultTemplates returns a fresh copy of the built-in templates,
// exactly one per type, all disabled.
func DefaultTemplates() map[NotificationType]*Template {
	return map[NotificationType]*Template{
		TypeReminder: {
			Title: "Habit reminder",
			Body:  "You still have habits to check off today.",
			Icon:  "/static/icons/icon-192.png",
			Badge: "/static/icons/badge-72.png",
			Tag:   "reminder",
		},
		TypeStreakAlert: {
			Title: "Streak alert",
			Body:  "One more day and you beat your best streak!",
			Icon:  "/static/icons/icon-192.png",
			Badge: "/static/icons/badge-72.png",
			Tag:   "streak",
		},
	}
}
