package form

import (
	"strings"

	"evdialog/internal/timeutil"
)

// Reducer applies actions to a draft. Initial is the snapshot Reset returns;
// the owner rebuilds the Reducer with a fresh Initial whenever the event,
// the message or the default reminders change.
type Reducer struct {
	Initial EventForm
	Locale  Locale
}

// Reduce returns the draft that results from applying a to state. state is
// never modified.
func (r Reducer) Reduce(state EventForm, a Action) EventForm {
	next := state.Clone()

	switch a := a.(type) {
	case Reset:
		return r.Initial.Clone()

	case SetStartTime:
		return r.shiftStartTime(next, a.Value)

	case SetStartDate:
		return r.shiftStartDate(next, a.Value)

	case SetField:
		switch a.Field {
		case FieldStartTime:
			return r.shiftStartTime(next, a.Value)
		case FieldStartDate:
			return r.shiftStartDate(next, a.Value)
		case FieldTitle:
			next.Title = a.Value
		case FieldLocation:
			next.Location = a.Value
		case FieldDescription:
			next.Description = a.Value
		case FieldEndDate:
			next.EndDate = a.Value
		case FieldEndTime:
			next.EndTime = a.Value
		}
		return next

	case AddNotification:
		next.Notifications = state.Notifications.appended()
		return next

	case RemoveNotification:
		next.Notifications = state.Notifications.without(a.Index)
		return next

	case EditNotification:
		next.Notifications = state.Notifications.edited(a.Index, a.Op, a.Value)
		return next
	}

	return next
}

// shiftStartTime sets the start time and moves the end time by the current
// start-to-end distance so the duration is kept. Only the time of day is
// touched; dates stay as they are.
func (r Reducer) shiftStartTime(f EventForm, value string) EventForm {
	newStart, ok := timeutil.ParseClock(value)
	if !ok {
		return f
	}

	oldStart, okStart := timeutil.ParseClock(f.StartTime)
	oldEnd, okEnd := timeutil.ParseClock(f.EndTime)

	f.StartTime = timeutil.FormatClock(newStart)
	if okStart && okEnd {
		f.EndTime = timeutil.FormatClock(newStart + (oldEnd - oldStart))
	}
	return f
}

// shiftStartDate sets the start date and moves the end date by the current
// number of days between them. Times of day are not touched.
func (r Reducer) shiftStartDate(f EventForm, value string) EventForm {
	layout, loc := r.Locale.layout(), r.Locale.location()

	newStart, ok := timeutil.ParseDate(value, layout, loc)
	if !ok {
		return f
	}

	oldStart, okStart := timeutil.ParseDate(f.StartDate, layout, loc)
	oldEnd, okEnd := timeutil.ParseDate(f.EndDate, layout, loc)

	f.StartDate = strings.TrimSpace(value)
	if okStart && okEnd {
		span := timeutil.DaysBetween(oldStart, oldEnd)
		f.EndDate = timeutil.FormatDate(timeutil.AddDays(newStart, span), layout)
	}
	return f
}
