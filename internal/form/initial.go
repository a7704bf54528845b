package form

import (
	"time"

	"evdialog/internal/model"
	"evdialog/internal/timeutil"
)

// InitialInput is everything the initial snapshot depends on.
type InitialInput struct {
	// Event is set in edit mode.
	Event *model.Event
	// Message is the source of a new event in create mode.
	Message *model.Message
	// Notifications are the default reminder rows.
	Notifications []NotificationItem
	// Now is the wall-clock reference for create-mode defaults.
	Now    time.Time
	Locale Locale
}

// Initial derives the draft a freshly opened dialog starts from.
//
// In edit mode every field comes from the event. Otherwise the draft starts
// now and ends an hour later, taking title and description from the message;
// when it is already 23:xx the end date is tomorrow.
func Initial(in InitialInput) EventForm {
	layout, loc := in.Locale.layout(), in.Locale.location()

	f := EventForm{Notifications: Notifications(in.Notifications).clone()}

	if ev := in.Event; ev != nil {
		start, end := eventBounds(ev, loc)
		f.EventID = ev.ID
		f.Title = ev.Title
		f.Location = ev.Location
		f.Description = ev.Description
		f.StartDate = timeutil.FormatDate(start, layout)
		f.StartTime = start.Format(timeutil.ClockLayout)
		f.EndDate = timeutil.FormatDate(end, layout)
		f.EndTime = end.Format(timeutil.ClockLayout)
		return f
	}

	now := in.Now.In(loc)
	oneHourLater := now.Add(time.Hour)
	endDate := now
	if now.Hour() >= 23 {
		endDate = timeutil.AddDays(now, 1)
	}

	if m := in.Message; m != nil {
		f.Title = m.Title
		f.Description = m.Preview
		if f.Description == "" {
			f.Description = m.Info
		}
	}

	f.StartDate = timeutil.FormatDate(now, layout)
	f.StartTime = now.Format(timeutil.ClockLayout)
	f.EndDate = timeutil.FormatDate(endDate, layout)
	f.EndTime = oneHourLater.Format(timeutil.ClockLayout)
	return f
}

// eventBounds returns the event's start and end as wall-clock values in loc.
// All-day events are stored with their wall clock at offset zero, so their
// UTC reading is moved into loc unchanged.
func eventBounds(ev *model.Event, loc *time.Location) (time.Time, time.Time) {
	if !ev.AllDay {
		return ev.StartTime.In(loc), ev.EndTime.In(loc)
	}
	wall := func(t time.Time) time.Time {
		u := t.UTC()
		return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, loc)
	}
	return wall(ev.StartTime), wall(ev.EndTime)
}

// SharingUsers is the list of users a reminder can be addressed to: everyone
// sharing calendar access, with the current user first when missing.
func SharingUsers(targets []model.User, current model.User) []model.User {
	users := make([]model.User, 0, len(targets)+1)
	users = append(users, targets...)
	if current.ID == "" {
		return users
	}
	for _, u := range users {
		if u.ID == current.ID {
			return users
		}
	}
	return append([]model.User{current}, users...)
}

// DefaultNotifications builds the reminder rows a dialog opens with.
//
// For an existing event the persisted reminders are used. For a new event
// every tag setting is applied to every sharing user; without settings each
// user gets defaultMinutes minutes.
func DefaultNotifications(ev *model.Event, users []model.User, settings []model.NotificationSetting, defaultMinutes int) []NotificationItem {
	out := make([]NotificationItem, 0)

	if ev != nil {
		for _, n := range ev.Notifications {
			out = append(out, NotificationFromMillis(n.UserID, n.NotifyBefore))
		}
		return out
	}

	if len(settings) > 0 {
		for _, s := range settings {
			for _, u := range users {
				out = append(out, NotificationFromMillis(u.ID, s.NotifyBefore))
			}
		}
		return out
	}

	for _, u := range users {
		out = append(out, NotificationItem{
			UserID:     u.ID,
			Period:     formatInt(int64(defaultMinutes)),
			PeriodType: PeriodMinute,
		})
	}
	return out
}
