// Package form is the event-details editor state machine: the editable draft,
// the reducer that keeps its dates, times and reminders consistent, the
// all-day toggle and the normalizer that turns a draft into an update payload.
//
// Nothing in this package performs I/O and no function here returns an error;
// malformed input is ignored and the previous state is kept.
package form

import (
	"strconv"
	"time"
)

// DefaultDateLayout is the month/day/year layout used when a Locale leaves
// DateLayout empty.
const DefaultDateLayout = "1/2/2006"

// Locale fixes how the draft's textual dates are read and written.
type Locale struct {
	DateLayout string
	Location   *time.Location
}

func (l Locale) layout() string {
	if l.DateLayout == "" {
		return DefaultDateLayout
	}
	return l.DateLayout
}

func (l Locale) location() *time.Location {
	if l.Location == nil {
		return time.Local
	}
	return l.Location
}

// EventForm is the editable draft behind the dialog.
type EventForm struct {
	// EventID is set when the draft edits an existing event.
	EventID string `json:"id,omitempty"`

	Title       string `json:"title"`
	Location    string `json:"location"`
	Description string `json:"description"`

	StartDate string `json:"startDate"`
	StartTime string `json:"startTime"`
	EndDate   string `json:"endDate"`
	EndTime   string `json:"endTime"`

	Notifications Notifications `json:"notifications"`
}

// Clone returns a copy that shares no mutable state with f.
func (f EventForm) Clone() EventForm {
	f.Notifications = f.Notifications.clone()
	return f
}

// Field names a plainly assignable draft attribute.
type Field string

const (
	FieldTitle       Field = "title"
	FieldLocation    Field = "location"
	FieldDescription Field = "description"
	FieldStartDate   Field = "startDate"
	FieldStartTime   Field = "startTime"
	FieldEndDate     Field = "endDate"
	FieldEndTime     Field = "endTime"
)

func (f Field) valid() bool {
	switch f {
	case FieldTitle, FieldLocation, FieldDescription,
		FieldStartDate, FieldStartTime, FieldEndDate, FieldEndTime:
		return true
	}
	return false
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
