package dialog

import (
	"evdialog/internal/form"
	"evdialog/internal/model"
)

// View is a read-only snapshot of a dialog for rendering.
type View struct {
	ID      string `json:"id"`
	Mode    string `json:"mode"`
	Heading string `json:"heading"`

	Draft  form.EventForm `json:"draft"`
	AllDay bool           `json:"all_day"`

	Attachments   []model.File      `json:"attachments"`
	SharingUsers  []model.User      `json:"sharing_users"`
	CalendarChips []string          `json:"calendar_chips"`
	PeriodTypes   []form.PeriodType `json:"period_types"`

	// SourceLink points back at the message the event was created from.
	SourceLink string `json:"source_link,omitempty"`

	Loading          bool   `json:"loading"`
	ConfirmingDelete bool   `json:"confirming_delete"`
	HasConflict      bool   `json:"has_conflict"`
	EventConflict    bool   `json:"event_conflict"`
	SubmitError      string `json:"submit_error,omitempty"`
	DeleteError      string `json:"delete_error,omitempty"`
	Saved            bool   `json:"saved"`
	Closed           bool   `json:"closed"`
}

// View returns the current snapshot.
func (d *Dialog) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := View{
		ID:               d.id,
		Mode:             d.mode(),
		Heading:          "Event Details",
		Draft:            d.draft.Clone(),
		AllDay:           d.allDay,
		Attachments:      append([]model.File{}, d.files...),
		SharingUsers:     append([]model.User{}, d.users...),
		CalendarChips:    calendarChips(d.event, d.sharedUsers, d.currentUser),
		PeriodTypes:      form.PeriodTypes,
		Loading:          d.pending,
		ConfirmingDelete: d.confirmDelete,
		HasConflict:      d.hasConflictLocked(),
		EventConflict:    d.event != nil && d.event.Conflict,
		Saved:            d.saved,
		Closed:           d.closed,
	}
	if d.message != nil {
		v.Heading = "Create new event"
		v.SourceLink = SourceLink(d.currentUser.Email, d.message.ID, d.message.IsDone, d.message.IsDeleted)
	}
	if d.lastSubmitErr != nil {
		v.SubmitError = d.lastSubmitErr.Error()
	}
	if d.lastDeleteErr != nil {
		v.DeleteError = d.lastDeleteErr.Error()
	}
	return v
}

// SourceLink builds the in-app path of a message, which depends on the
// folder it currently sits in.
func SourceLink(userEmail, messageID string, isDone, isDeleted bool) string {
	switch {
	case isDone:
		return "/messages/done/" + messageID
	case isDeleted:
		return "/messages/deleted/" + messageID
	default:
		return "/inbox/" + userEmail + "/" + messageID
	}
}

// calendarChips lists the calendars the event can be seen on: the event's own
// calendar first, then every shared calendar, then the user's own calendars.
func calendarChips(ev *model.Event, shared []model.User, me model.User) []string {
	chips := make([]string, 0, len(shared)+len(me.EventCalendars)+1)
	if ev != nil && ev.CalendarName != "" {
		chips = append(chips, ev.CalendarName)
	}
	for _, u := range shared {
		chips = append(chips, u.Name+"'s Calendar")
	}
	for _, c := range me.EventCalendars {
		chips = append(chips, c.Name)
	}
	return chips
}
