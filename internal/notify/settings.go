package notify

import "encoding/json"

const (
	// DefaultTimezone is applied when a user has never set one.
	DefaultTimezone = "America/Lima"
	// DefaultEndHour is midnight: the day resets at 00:00 local time.
	DefaultEndHour = 0
)

// Settings is the per-user notification snapshot. It is written through
// on every mutation, last write wins, no versioning.
type Settings struct {
	Timezone string               `json:"timezone"`
	EndHour  int                  `json:"endHour"`
	Configs  map[string]*Template `json:"configs"`
}

// DefaultSettings returns a fresh snapshot with the built-in templates.
func DefaultSettings() *Settings {
	templates := DefaultTemplates()
	return &Settings{
		Timezone: DefaultTimezone,
		EndHour:  DefaultEndHour,
		Configs: map[string]*Template{
			TypeReminder.String():    templates[TypeReminder],
			TypeStreakAlert.String(): templates[TypeStreakAlert],
		},
	}
}

// Template returns the template for the given type, falling back to
// the built-in default when the stored snapshot predates the type. It
// never modifies the snapshot.
func (s *Settings) Template(t NotificationType) *Template {
	if tmpl, ok := s.Configs[t.String()]; ok {
		return tmpl
	}
	return DefaultTemplates()[t]
}

// ensureTemplate materializes the stored entry for a type so edits to
// the returned template persist. Callers must hold the owner's lock.
func (s *Settings) ensureTemplate(t NotificationType) *Template {
	if s.Configs == nil {
		s.Configs = map[string]*Template{}
	}
	tmpl, ok := s.Configs[t.String()]
	if !ok {
		tmpl = DefaultTemplates()[t]
		s.Configs[t.String()] = tmpl
	}
	return tmpl
}

// clone deep-copies the snapshot so readers can hold it outside the
// scheduler's lock.
func (s *Settings) clone() *Settings {
	out := &Settings{
		Timezone: s.Timezone,
		EndHour:  s.EndHour,
		Configs:  make(map[string]*Template, len(s.Configs)),
	}
	for name, tmpl := range s.Configs {
		copied := *tmpl
		out.Configs[name] = &copied
	}
	return out
}

func (s *Settings) encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeSettings(value string) (*Settings, error) {
	var s Settings
	if err := json.Unmarshal([]byte(value), &s); err != nil {
		return nil, err
	}
	return &s, nil
}
