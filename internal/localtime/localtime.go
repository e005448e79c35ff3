// Package localtime converts UTC instants into channel-local wall-clock
// terms: localization, local calendar-day bounds and posting-window checks.
// All functions are pure.
package localtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/mlevan/autopost/internal/model"
)

var ErrInvalidTimeZone = errors.New("invalid time zone")

// Localize converts a UTC instant into the given IANA zone.
//
// DST notes: Go's time package resolves ambiguous local times to the earlier
// of the two UTC instants and normalizes skipped times past the gap, which is
// exactly the behavior the evaluator relies on around transitions.
func Localize(utc time.Time, tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimeZone, tz, err)
	}
	return utc.In(loc), nil
}

// DayBounds returns the half-open interval [start, end) covering the local
// calendar day of the given local instant, as instants in that zone.
func DayBounds(local time.Time) (start, end time.Time) {
	y, m, d := local.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, local.Location())
	return start, start.AddDate(0, 0, 1)
}

// InWindow reports whether the local instant's time of day falls inside the
// window. A nil start or end means no window is configured and every instant
// qualifies. When start > end the window wraps midnight. Both ends are
// inclusive, so start == end is a single-minute window.
func InWindow(local time.Time, start, end *model.TimeOfDay) bool {
	if start == nil || end == nil {
		return true
	}
	m := local.Hour()*60 + local.Minute()
	s, e := start.Minutes(), end.Minutes()
	if s <= e {
		return s <= m && m <= e
	}
	return m >= s || m <= e
}
