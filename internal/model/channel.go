package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Channel is a posting destination with its own schedule, quota and time zone.
type Channel struct {
	ID                     uuid.UUID
	InternalName           string
	TelegramChatID         int64
	Topic                  string
	LanguageCode           string
	PostingFrequencyPerDay int
	PostingWindowStart     *TimeOfDay
	PostingWindowEnd       *TimeOfDay
	Timezone               string
	AutoPostEnabled        bool
	ContentStrategy        string
	GenerateImages         bool
	NewsSources            []string
}

// TimeOfDay is a wall-clock time in the channel's own zone, minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}
