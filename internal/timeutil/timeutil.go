// Package timeutil holds the date/time arithmetic the event form relies on:
// parsing and formatting of the two textual shapes the form uses ("HH:mm"
// clock values and locale dates), calendar-aware day differences, and
// wall-clock reinterpretation for all-day events.
package timeutil

import (
	"strings"
	"time"
)

// ClockLayout is the 24-hour time-of-day layout used by the form.
const ClockLayout = "15:04"

const minutesPerDay = 24 * 60

// Week is not a time package constant.
const Week = 7 * 24 * time.Hour

// ParseClock parses an "HH:mm" value into minutes after midnight.
func ParseClock(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	t, err := time.Parse(ClockLayout, value)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// FormatClock renders minutes after midnight as "HH:mm", wrapping around the
// day in both directions.
func FormatClock(minutes int) string {
	m := minutes % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return time.Date(2000, 1, 1, m/60, m%60, 0, 0, time.UTC).Format(ClockLayout)
}

// ParseDate parses a locale date using layout in loc.
func ParseDate(value, layout string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders t's calendar date using layout.
func FormatDate(t time.Time, layout string) string {
	return t.Format(layout)
}

// Combine joins a locale date and an "HH:mm" clock value into an instant in loc.
func Combine(date, clock, layout string, loc *time.Location) (time.Time, bool) {
	d, ok := ParseDate(date, layout, loc)
	if !ok {
		return time.Time{}, false
	}
	m, ok := ParseClock(clock)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), m/60, m%60, 0, 0, d.Location()), true
}

// DaysBetween returns the number of calendar dates from a to b, ignoring the
// time of day and any DST transitions in between.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// AddDays shifts t by n calendar days, keeping the wall clock.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// AsUTCWallClock keeps t's wall-clock reading but moves it to offset zero.
// 09:00-05:00 becomes 09:00Z, not 14:00Z.
func AsUTCWallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// SplitDuration expresses ms as a count of the largest unit among week, day,
// hour and minute that divides it exactly. Values that are not a whole number
// of minutes are truncated to minutes.
func SplitDuration(ms int64) (int64, time.Duration) {
	units := []time.Duration{Week, 24 * time.Hour, time.Hour}
	for _, u := range units {
		um := u.Milliseconds()
		if ms > 0 && ms%um == 0 {
			return ms / um, u
		}
	}
	return ms / time.Minute.Milliseconds(), time.Minute
}
