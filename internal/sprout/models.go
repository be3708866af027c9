package sprout

import "time"

// Profile is a tracked child plus its owning metadata. Profiles are owned by
// the authenticated principal; one principal may own any number of profiles.
type Profile struct {
	ID        string `json:"id"`
	UserName  string `json:"userName"`
	BabyName  string `json:"babyName"`
	DOB       string `json:"dob"`       // YYYY-MM-DD
	CreatedAt string `json:"createdAt"` // ISO-8601
}

// LogCategory tags a LogEntry with the kind of event it records.
type LogCategory string

const (
	LogFeed        LogCategory = "feed"
	LogDiaper      LogCategory = "diaper"
	LogSleep       LogCategory = "sleep"
	LogNap         LogCategory = "nap"
	LogTummy       LogCategory = "tummy"
	LogWeight      LogCategory = "weight"
	LogHeight      LogCategory = "height"
	LogTemperature LogCategory = "temperature"
	LogVaccine     LogCategory = "vaccine"
	LogHealth      LogCategory = "health"
)

// LogEntry is a single recorded care event. Entries are immutable once
// created except for explicit edit/delete actions, and are displayed ordered
// by event timestamp, newest first.
type LogEntry struct {
	ID          string      `json:"id"`
	Type        LogCategory `json:"type"`
	Icon        string      `json:"icon"`
	Color       string      `json:"color"`
	Details     string      `json:"details"`
	Timestamp   int64       `json:"timestamp"` // epoch millis
	RawAmount   *float64    `json:"rawAmount,omitempty"`
	RawDuration *int64      `json:"rawDuration,omitempty"` // millis
	Notes       string      `json:"notes,omitempty"`
}

// Time returns the event timestamp as a time.Time.
func (e LogEntry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Inventory is the per-profile supply counter singleton. At most one exists
// per profile; it is upserted, never multiplied.
type Inventory struct {
	Diapers int `json:"diapers"`
	Formula int `json:"formula"`
}

// ReminderFrequency is the recurrence of a Reminder.
type ReminderFrequency string

const (
	FrequencyNone   ReminderFrequency = "none"
	FrequencyDaily  ReminderFrequency = "daily"
	FrequencyWeekly ReminderFrequency = "weekly"
)

// Reminder is a scheduled prompt. Time is an absolute instant in epoch
// millis, used only for its time-of-day component.
type Reminder struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Time      int64             `json:"time"`
	Frequency ReminderFrequency `json:"frequency"`
	IsActive  bool              `json:"isActive"`
}

// Appointment is a scheduled visit with a care provider.
type Appointment struct {
	ID       string `json:"id"`
	Date     string `json:"date"` // YYYY-MM-DD
	Time     string `json:"time"` // HH:MM
	Doctor   string `json:"doctor"`
	Location string `json:"location"`
	Reason   string `json:"reason"`
	Notes    string `json:"notes,omitempty"`
}

// Preferences holds device-local UI settings. They are persisted locally and
// never synced remotely.
type Preferences struct {
	DarkMode bool   `json:"darkMode"`
	Unit     string `json:"unit"` // "metric" or "imperial"
}

// TimerCategory identifies a stopwatch kind. Categories are the uniqueness
// key for running timers: at most one timer per category runs at a time.
type TimerCategory string

const (
	TimerSleep  TimerCategory = "sleep"
	TimerNap    TimerCategory = "nap"
	TimerTummy  TimerCategory = "tummy"
	TimerHelmet TimerCategory = "helmet"
	TimerShower TimerCategory = "shower"
)

// timerMeta carries the display attributes attached to timers and the log
// entries saved from them.
type timerMeta struct {
	Label string
	Icon  string
	Color string
	Log   LogCategory
}

var timerMetas = map[TimerCategory]timerMeta{
	TimerSleep:  {Label: "Sleep", Icon: "moon", Color: "#6366f1", Log: LogSleep},
	TimerNap:    {Label: "Nap", Icon: "cloud", Color: "#8b5cf6", Log: LogNap},
	TimerTummy:  {Label: "Tummy Time", Icon: "baby", Color: "#f59e0b", Log: LogTummy},
	TimerHelmet: {Label: "Helmet", Icon: "hard-hat", Color: "#10b981", Log: LogHealth},
	TimerShower: {Label: "Shower", Icon: "droplets", Color: "#0ea5e9", Log: LogHealth},
}

// ValidTimerCategory reports whether c names a known timer category.
func ValidTimerCategory(c TimerCategory) bool {
	_, ok := timerMetas[c]
	return ok
}

// ActiveTimer is a running stopwatch. Timers survive a restart via local
// persistence but are never synchronized across devices.
type ActiveTimer struct {
	ID       string        `json:"id"`
	Category TimerCategory `json:"category"`
	Start    int64         `json:"start"` // epoch millis
	Label    string        `json:"label"`
	Icon     string        `json:"icon"`
	Color    string        `json:"color"`
}

// StartTime returns the timer's start instant as a time.Time.
func (t ActiveTimer) StartTime() time.Time {
	return time.UnixMilli(t.Start)
}
