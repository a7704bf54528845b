// Package ics converts between event drafts and iCalendar data: it exports a
// draft as a VEVENT with its reminders, imports a VEVENT from a calendar
// attachment and expands recurring events into agenda occurrences.
package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/sosodev/duration"

	appLog "evdialog/internal/log"
	"evdialog/internal/model"
)

// ErrNoEvent is returned when an ICS payload holds no usable VEVENT.
var ErrNoEvent = errors.New("ics: no VEVENT found")

// Alarm is a VALARM reminder relative to the event start.
type Alarm struct {
	// UserID is the reminder's addressee; empty when the alarm carries none.
	UserID string
	Before time.Duration
}

// ParsedEvent is the normalized representation of a VEVENT. Recurrence
// expansion operates on this type.
type ParsedEvent struct {
	UID string
	Seq int

	Summary     string
	Description string
	Location    string

	Start   time.Time
	End     time.Time
	AllDay  bool
	StartTZ string

	Alarms []Alarm

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present) in event's own timezone
	IsOverride bool       // true if this VEVENT is an override for a recurring instance
}

// ParseICS parses an ICS payload into a list of ParsedEvent.
//
//   - It relies on the underlying library's TZID handling to construct
//     time.Time values with Location set.
//   - All-day events are detected from the DTSTART value format; their End is
//     the exclusive DTEND (the day after the last day).
//   - RRULE/EXDATE/RECURRENCE-ID are recorded but not expanded; see Expand.
func ParseICS(body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

// FirstEvent returns the first non-override VEVENT of body.
func FirstEvent(body []byte) (ParsedEvent, error) {
	events, err := ParseICS(body)
	if err != nil {
		return ParsedEvent{}, err
	}
	for _, ev := range events {
		if !ev.IsOverride {
			return ev, nil
		}
	}
	return ParsedEvent{}, ErrNoEvent
}

// FromEvent adapts a stored event so it can be expanded like a parsed one.
// All-day events keep their UTC wall-clock bounds.
func FromEvent(ev model.Event) ParsedEvent {
	return ParsedEvent{
		UID:         ev.ID,
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       ev.StartTime,
		End:         ev.EndTime,
		AllDay:      ev.AllDay,
		RawRRule:    strings.TrimPrefix(ev.Recurrence, "RRULE:"),
	}
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.AllDay = true
	}
	if !strings.Contains(dtStart.Value, "T") {
		out.AllDay = true
	}
	if tzs, ok := dtStart.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		out.StartTZ = tzs[0]
	}

	if out.AllDay {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return out, err
		}
		out.Start = dateAtUTC(start)
		if end, err := ve.GetAllDayEndAt(); err == nil {
			out.End = dateAtUTC(end)
		} else {
			out.End = out.Start.AddDate(0, 0, 1)
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, err
		}
		out.Start = start
		if end, err := ve.GetEndAt(); err == nil {
			out.End = end
		} else {
			out.End = start
		}
	}

	for _, a := range ve.Alarms() {
		if alarm, ok := parseAlarm(a); ok {
			out.Alarms = append(out.Alarms, alarm)
		}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each with a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// parseAlarm reads a VALARM whose TRIGGER is a duration before the start.
// Absolute triggers and triggers after the start are ignored.
func parseAlarm(a *ical.VAlarm) (Alarm, bool) {
	trigger := a.GetProperty(ical.ComponentPropertyTrigger)
	if trigger == nil {
		return Alarm{}, false
	}
	if rel, ok := trigger.ICalParameters["RELATED"]; ok && len(rel) > 0 && strings.EqualFold(rel[0], "END") {
		return Alarm{}, false
	}
	offset, ok := parseTrigger(trigger.Value)
	if !ok || offset > 0 {
		return Alarm{}, false
	}
	out := Alarm{Before: -offset}
	if p := a.GetProperty(userProperty); p != nil {
		out.UserID = strings.TrimSpace(p.Value)
	}
	return out, true
}

// parseTrigger parses a relative TRIGGER such as "-PT15M", "-P1D" or
// "PT0M" into a signed offset from the start. Year and month units have no
// fixed length and are rejected.
func parseTrigger(v string) (time.Duration, bool) {
	v = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(v)), "+")
	if v == "" || strings.ContainsAny(v[len(v)-1:], "0123456789.") {
		return 0, false
	}
	d, err := duration.Parse(v)
	if err != nil || d.Years != 0 || d.Months != 0 {
		return 0, false
	}
	return d.ToTimeDuration(), true
}

// dateAtUTC keeps the calendar date of t at midnight UTC, the way all-day
// events are stored.
func dateAtUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseICSTime parses a basic ICS date/date-time string into time.Time.
// It is used for EXDATE/RECURRENCE-ID values whose parameters are not
// inspected; floating values are read in time.Local.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		const layout = "20060102T150405Z"
		return time.Parse(layout, v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		const layout = "20060102T150405"
		return time.ParseInLocation(layout, v, time.Local)
	}

	// Date-only (all-day), e.g., 20250101
	const layoutDate = "20060102"
	return time.ParseInLocation(layoutDate, v, time.Local)
}
