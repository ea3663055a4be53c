package app

import (
	"fmt"
	"strings"
	"time"

	"estirar/internal/domain/notification"
)

// Cadence is how often a new video goes out.
type Cadence string

const (
	// CadenceWeekly sends a video on MainSendWeekday and reminders on other ticks.
	CadenceWeekly Cadence = "weekly"
	// CadenceDaily sends a new video on every tick.
	CadenceDaily Cadence = "daily"
)

// ParseCadence accepts weekly or daily.
func ParseCadence(s string) (Cadence, error) {
	switch c := Cadence(strings.ToLower(strings.TrimSpace(s))); c {
	case CadenceWeekly, CadenceDaily:
		return c, nil
	default:
		return "", fmt.Errorf("unknown cadence %q", s)
	}
}

// ParseWeekday accepts English weekday names ("sunday", "Sun").
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// CycleConfig carries everything the orchestrator needs to decide and send.
type CycleConfig struct {
	Cadence         Cadence
	MainSendWeekday time.Weekday
	Location        *time.Location // cycle windows are computed in this zone

	UseTemplates     bool
	VideoTemplate    string
	ReminderTemplate string

	StreakCutoff    time.Time
	StreakWindow    int
	ReplyAckEnabled bool

	OperatorChatID int64 // 0 disables run summaries
}

// DefaultCycleConfig is the weekly Sunday model with WhatsApp templates.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{
		Cadence:          CadenceWeekly,
		MainSendWeekday:  time.Sunday,
		Location:         time.UTC,
		UseTemplates:     true,
		VideoTemplate:    "weekly_chair_exercise",
		ReminderTemplate: "chair_exercise_reminder",
		StreakCutoff:     DefaultStreakCutoff,
		StreakWindow:     DefaultStreakWindow,
	}
}

func (c CycleConfig) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// ModeFor selects what a tick at now does.
func (c CycleConfig) ModeFor(now time.Time) notification.CycleMode {
	if c.Cadence == CadenceDaily {
		return notification.ModeMainSend
	}
	if now.In(c.location()).Weekday() == c.MainSendWeekday {
		return notification.ModeMainSend
	}
	return notification.ModeReminder
}

// WindowStart is midnight of the most recent main-send day at or before now.
func (c CycleConfig) WindowStart(now time.Time) time.Time {
	loc := c.location()
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if c.Cadence == CadenceDaily {
		return midnight
	}
	offset := (int(local.Weekday()) - int(c.MainSendWeekday) + 7) % 7
	return midnight.AddDate(0, 0, -offset)
}
