package form

import "evdialog/internal/timeutil"

const (
	allDayStart = "00:00"
	allDayEnd   = "23:59"
)

// AllDayBuffer keeps the explicit times that were in place when all-day was
// switched on, so switching it off can put them back.
type AllDayBuffer struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// DefaultAllDayBuffer is restored when all-day is switched off without ever
// having been switched on in this dialog.
func DefaultAllDayBuffer() AllDayBuffer {
	return AllDayBuffer{StartTime: allDayStart, EndTime: allDayEnd}
}

// ToggleAllDay switches the draft into (enable) or out of all-day mode.
//
// Enabling pins the times to 00:00-23:59, remembers the previous times in the
// returned buffer and pulls the end date back to the start date when it is
// not after it. Disabling restores the times held in buf.
func ToggleAllDay(f EventForm, enable bool, buf AllDayBuffer, locale Locale) (EventForm, AllDayBuffer) {
	next := f.Clone()

	if !enable {
		next.StartTime = buf.StartTime
		next.EndTime = buf.EndTime
		return next, buf
	}

	layout, loc := locale.layout(), locale.location()
	start, okStart := timeutil.ParseDate(f.StartDate, layout, loc)
	end, okEnd := timeutil.ParseDate(f.EndDate, layout, loc)
	if okStart && (!okEnd || timeutil.DaysBetween(start, end) <= 0) {
		next.EndDate = f.StartDate
	}

	saved := AllDayBuffer{StartTime: f.StartTime, EndTime: f.EndTime}
	next.StartTime = allDayStart
	next.EndTime = allDayEnd
	return next, saved
}
