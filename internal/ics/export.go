package ics

import (
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"evdialog/internal/form"
	"evdialog/internal/timeutil"
)

// userProperty carries the reminder's addressee on a VALARM.
const userProperty ical.ComponentProperty = "X-EVDIALOG-USER"

const productID = "-//evdialog//Event Details//EN"

// ErrIncompleteDraft is returned when the draft's start or end does not parse.
var ErrIncompleteDraft = errors.New("ics: draft has no valid start or end")

// ExportDraft renders a normalized draft as a VCALENDAR with one VEVENT.
//
// All-day payloads carry their dates as UTC wall clock; they are written as
// VALUE=DATE with an exclusive DTEND. Each reminder becomes a DISPLAY alarm
// triggered the reminder's lead time before the start.
func ExportDraft(uid string, p form.UpdatePayload, allDay bool, stamp time.Time) ([]byte, error) {
	if !p.StartTime.Valid || !p.EndTime.Valid {
		return nil, ErrIncompleteDraft
	}

	cal := ical.NewCalendarFor("evdialog")
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(stamp)
	ev.SetSummary(p.Title)
	if p.Location != "" {
		ev.SetLocation(p.Location)
	}
	if p.Description != "" {
		ev.SetDescription(p.Description)
	}

	if allDay {
		start := p.StartTime.Time.UTC()
		end := timeutil.AddDays(p.EndTime.Time.UTC(), 1)
		ev.SetAllDayStartAt(start)
		ev.SetAllDayEndAt(end)
	} else {
		ev.SetStartAt(p.StartTime.Time)
		ev.SetEndAt(p.EndTime.Time)
	}

	for _, n := range p.Notifications {
		alarm := ev.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(triggerFor(time.Duration(n.NotifyBefore) * time.Millisecond))
		alarm.SetProperty(ical.ComponentPropertyDescription, "Reminder: "+p.Title)
		alarm.SetProperty(userProperty, n.UserID)
	}

	return []byte(cal.Serialize()), nil
}

// triggerFor formats a lead time as a negative duration in whole minutes.
func triggerFor(d time.Duration) string {
	return fmt.Sprintf("-PT%dM", int64(d/time.Minute))
}

// DraftActions turns an imported event into the form actions that load it
// into a draft. rows is the number of reminder rows the draft already has;
// imported reminders are appended after them.
//
// Start date and time are set before the end so the start cascade does not
// move the imported end.
func DraftActions(ev ParsedEvent, locale form.Locale, rows int) []form.Action {
	loc := locale.Location
	if loc == nil {
		loc = time.Local
	}
	layout := locale.DateLayout
	if layout == "" {
		layout = form.DefaultDateLayout
	}

	start, end := ev.Start, ev.End
	if ev.AllDay {
		// Dates are kept as calendar dates in the display location; the
		// exclusive end moves back to the last day.
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		last := timeutil.AddDays(end, -1)
		if !last.After(ev.Start) {
			last = ev.Start
		}
		end = time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 0, 0, loc)
	} else {
		start = start.In(loc)
		end = end.In(loc)
	}

	actions := []form.Action{
		form.SetField{Field: form.FieldTitle, Value: ev.Summary},
		form.SetField{Field: form.FieldLocation, Value: ev.Location},
		form.SetField{Field: form.FieldDescription, Value: ev.Description},
		form.SetStartDate{Value: timeutil.FormatDate(start, layout)},
		form.SetStartTime{Value: start.Format(timeutil.ClockLayout)},
		form.SetField{Field: form.FieldEndDate, Value: timeutil.FormatDate(end, layout)},
		form.SetField{Field: form.FieldEndTime, Value: end.Format(timeutil.ClockLayout)},
	}

	for i, a := range ev.Alarms {
		idx := rows + i
		item := form.NotificationFromMillis(a.UserID, a.Before.Milliseconds())
		if item.UserID == "" {
			item.UserID = form.SentinelUserID
		}
		actions = append(actions,
			form.AddNotification{Index: idx},
			form.EditNotification{Index: idx, Op: form.OpUserID, Value: item.UserID},
			form.EditNotification{Index: idx, Op: form.OpPeriod, Value: item.Period},
			form.EditNotification{Index: idx, Op: form.OpPeriodType, Value: string(item.PeriodType)},
		)
	}
	return actions
}
