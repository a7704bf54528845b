package model

import "time"

// Event is a persisted calendar event as returned by the remote service.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Description string `json:"description"`

	AllDay bool `json:"allDay"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	// Recurrence is an optional RRULE body (without the "RRULE:" prefix).
	Recurrence string `json:"recurrence,omitempty"`

	// CalendarName is the provider calendar the event lives in.
	CalendarName string `json:"nylasCalendarName,omitempty"`

	// Conflict is set by the remote service when the event overlaps another.
	Conflict bool `json:"conflict,omitempty"`

	Notifications []EventNotification `json:"notifications"`
	Attachments   []File              `json:"attachments"`
}

// EventNotification is a persisted reminder: notify UserID NotifyBefore
// milliseconds before the event starts.
type EventNotification struct {
	UserID       string `json:"userId"`
	NotifyBefore int64  `json:"notifyBefore"`
}

// File is an attachment on a message or event.
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Tag labels a message; notification defaults are configured per tag.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is the mail item an event may be created from.
type Message struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Preview   string `json:"preview"`
	Info      string `json:"info"`
	IsDone    bool   `json:"isDone"`
	IsDeleted bool   `json:"isDeleted"`
	Tags      []Tag  `json:"tags"`
	Files     []File `json:"files"`
	Event     *Event `json:"event,omitempty"`
}

// Calendar is one of a user's own calendars.
type Calendar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is a mailbox owner or a user sharing calendar access.
type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	EventCalendars []Calendar `json:"eventCalendars,omitempty"`
}

// NotificationSetting is a default reminder configured for a tag.
type NotificationSetting struct {
	NotifyBefore int64 `json:"notifyBefore"`
}

// Occurrence is a single concrete instance of an event in the agenda
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	EventID string `json:"event_id"`

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string `json:"instance_key"`

	Title    string `json:"title"`
	Location string `json:"location"`
	AllDay   bool   `json:"all_day"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
