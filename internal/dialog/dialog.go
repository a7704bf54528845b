// Package dialog owns one open event-details dialog: it loads the event or the
// source message, keeps the draft through the form reducer and submits it with
// the create, update or delete mutation.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"evdialog/internal/form"
	"evdialog/internal/ics"
	appLog "evdialog/internal/log"
	"evdialog/internal/metrics"
	"evdialog/internal/model"
	"evdialog/internal/remote"
)

var (
	ErrClosed             = errors.New("dialog: closed")
	ErrBusy               = errors.New("dialog: a mutation is already in flight")
	ErrNoEvent            = errors.New("dialog: no event to delete")
	ErrDeleteNotConfirmed = errors.New("dialog: delete was not confirmed")
	ErrDeleteFailed       = errors.New("dialog: delete failed")
	ErrSubmitFailed       = errors.New("dialog: submit failed")
	ErrAttachmentIndex    = errors.New("dialog: attachment index out of range")
)

// Outcome is the result of a Submit.
type Outcome string

const (
	OutcomeNoop     Outcome = "noop"
	OutcomeUpdated  Outcome = "updated"
	OutcomeCreated  Outcome = "created"
	OutcomeConflict Outcome = "conflict"
	OutcomeFailed   Outcome = "failed"
)

// Callbacks are fired by the dialog on completion of its operations. Any of
// them may be nil. They still fire when the dialog was closed while the
// mutation was in flight.
type Callbacks struct {
	// OnEventCreated receives the new event after a successful create.
	OnEventCreated func(eventID string, ev model.Event)
	// OnCreateFromMessage also fires after a successful create, for the
	// message list that spawned it.
	OnCreateFromMessage func(eventID string, ev model.Event)
	// RefreshEvents asks the owner to reload its event list.
	RefreshEvents func()
	// OnClose fires once when the dialog closes.
	OnClose func()
	// OnEventDeleted fires after a successful delete.
	OnEventDeleted func()
}

// Params describe what a dialog is opened on.
type Params struct {
	// EventID opens an existing event for editing.
	EventID string
	// MessageID opens a message as the source of a new event.
	MessageID string

	Locale                 form.Locale
	DefaultReminderMinutes int

	// Now defaults to time.Now.
	Now       func() time.Time
	Callbacks Callbacks
	Metrics   *metrics.Recorder
}

// Dialog is safe for concurrent use. Mutations run without holding the lock;
// the pending flag keeps a second one from starting.
type Dialog struct {
	id     string
	client remote.Client
	params Params

	mu sync.Mutex

	event       *model.Event
	message     *model.Message
	currentUser model.User
	sharedUsers []model.User
	users       []model.User
	tagSettings []model.NotificationSetting

	reducer form.Reducer
	draft   form.EventForm
	allDay  bool
	buffer  form.AllDayBuffer
	files   []model.File

	pending       bool
	confirmDelete bool
	closed        bool
	saved         bool
	lastMutation  *remote.MutationResult
	lastSubmitErr error
	lastDeleteErr error
}

// Open loads everything the dialog shows and derives its initial draft.
// Only failures to load the event or the message are fatal; sharing and
// notification-setting lookups degrade to defaults.
func Open(ctx context.Context, client remote.Client, p Params) (*Dialog, error) {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.DefaultReminderMinutes <= 0 {
		p.DefaultReminderMinutes = 10
	}

	d := &Dialog{
		id:     uuid.NewString(),
		client: client,
		params: p,
		buffer: form.DefaultAllDayBuffer(),
	}
	if err := d.load(ctx); err != nil {
		return nil, err
	}

	p.Metrics.DialogOpened()
	appLog.Info("dialog opened", "dialog_id", d.id, "mode", d.mode(), "event_id", p.EventID, "message_id", p.MessageID)
	return d, nil
}

// ID is the dialog's session identifier.
func (d *Dialog) ID() string { return d.id }

func (d *Dialog) load(ctx context.Context) error {
	var (
		ev  *model.Event
		msg *model.Message
		err error
	)

	if d.params.MessageID != "" {
		msg, err = d.client.Message(ctx, d.params.MessageID)
		if err != nil {
			return fmt.Errorf("dialog: load message: %w", err)
		}
	}

	eventID := d.params.EventID
	if eventID == "" && msg != nil && msg.Event != nil {
		eventID = msg.Event.ID
	}
	if eventID != "" {
		ev, err = d.client.Event(ctx, eventID)
		if err != nil {
			return fmt.Errorf("dialog: load event: %w", err)
		}
	}

	var me model.User
	if u, err := d.client.CurrentUser(ctx); err != nil {
		appLog.Error("dialog: current user lookup failed", err)
	} else {
		me = *u
	}

	shared, err := d.client.SharedAccess(ctx)
	if err != nil {
		appLog.Error("dialog: shared access lookup failed", err)
		shared = nil
	}

	var settings []model.NotificationSetting
	if ev == nil && msg != nil && len(msg.Tags) > 0 {
		settings, err = d.client.NotificationSettingsByTag(ctx, msg.Tags[0].ID)
		if err != nil {
			appLog.Error("dialog: notification settings lookup failed", err, "tag_id", msg.Tags[0].ID)
			settings = nil
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.pending {
		return ErrBusy
	}

	d.event = ev
	d.message = msg
	d.currentUser = me
	d.sharedUsers = shared
	d.tagSettings = settings
	d.users = form.SharingUsers(shared, me)
	d.allDay = ev != nil && ev.AllDay

	switch {
	case ev != nil:
		d.files = append([]model.File(nil), ev.Attachments...)
	case msg != nil:
		d.files = append([]model.File(nil), msg.Files...)
	default:
		d.files = nil
	}

	d.resetLocked()
	return nil
}

// resetLocked rebuilds the initial snapshot from the loaded data and puts the
// draft back to it.
func (d *Dialog) resetLocked() {
	defaults := form.DefaultNotifications(d.event, d.users, d.tagSettings, d.params.DefaultReminderMinutes)
	initial := form.Initial(form.InitialInput{
		Event:         d.event,
		Message:       d.message,
		Notifications: defaults,
		Now:           d.params.Now(),
		Locale:        d.params.Locale,
	})
	d.reducer = form.Reducer{Initial: initial, Locale: d.params.Locale}
	d.draft = d.reducer.Reduce(d.draft, form.Reset{})
}

// Reload fetches the event, message, sharing list and settings again and
// resets the draft to the new initial snapshot. It fails with ErrBusy while
// a mutation is in flight, and the fetched data is dropped if the dialog is
// closed or a mutation starts before the fetches return.
func (d *Dialog) Reload(ctx context.Context) error {
	d.mu.Lock()
	switch {
	case d.closed:
		d.mu.Unlock()
		return ErrClosed
	case d.pending:
		d.mu.Unlock()
		return ErrBusy
	}
	d.mu.Unlock()
	return d.load(ctx)
}

func (d *Dialog) mode() string {
	switch {
	case d.event != nil:
		return "edit"
	case d.message != nil:
		return "create"
	}
	return "blank"
}

// Dispatch applies a to the draft and returns the new draft.
func (d *Dialog) Dispatch(a form.Action) (form.EventForm, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return form.EventForm{}, ErrClosed
	}
	d.draft = d.reducer.Reduce(d.draft, a)
	d.params.Metrics.Action(a.Kind())
	return d.draft.Clone(), nil
}

// ToggleAllDay flips all-day mode and returns the new draft and mode.
func (d *Dialog) ToggleAllDay() (form.EventForm, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return form.EventForm{}, false, ErrClosed
	}
	d.allDay = !d.allDay
	d.draft, d.buffer = form.ToggleAllDay(d.draft, d.allDay, d.buffer, d.params.Locale)
	d.params.Metrics.Action("allDay")
	return d.draft.Clone(), d.allDay, nil
}

// RemoveAttachment detaches the file at index i from the draft.
func (d *Dialog) RemoveAttachment(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if i < 0 || i >= len(d.files) {
		return ErrAttachmentIndex
	}
	files := make([]model.File, 0, len(d.files)-1)
	files = append(files, d.files[:i]...)
	d.files = append(files, d.files[i+1:]...)
	return nil
}

// SetAttachments replaces the attached files.
func (d *Dialog) SetAttachments(files []model.File) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.files = append([]model.File(nil), files...)
	return nil
}

// Import loads an event read from a calendar file into the draft. Fields
// and reminders are applied as reducer actions; all-day mode follows the
// imported event.
func (d *Dialog) Import(ev ics.ParsedEvent) (form.EventForm, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return form.EventForm{}, false, ErrClosed
	}

	if ev.AllDay && !d.allDay {
		// Toggling off later restores the times from before the import.
		_, d.buffer = form.ToggleAllDay(d.draft, true, d.buffer, d.params.Locale)
	}
	for _, a := range ics.DraftActions(ev, d.params.Locale, len(d.draft.Notifications)) {
		d.draft = d.reducer.Reduce(d.draft, a)
	}
	switch {
	case ev.AllDay && !d.allDay:
		// DraftActions already pinned the times to the whole day.
		d.allDay = true
	case !ev.AllDay && d.allDay:
		// The imported times win over the buffered ones.
		d.allDay = false
	}
	d.params.Metrics.Action("import")
	appLog.Info("event imported into draft", "dialog_id", d.id, "uid", ev.UID, "all_day", ev.AllDay)
	return d.draft.Clone(), d.allDay, nil
}

// Attachment returns the attached file with the given id.
func (d *Dialog) Attachment(id string) (model.File, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.files {
		if f.ID == id {
			return f, true
		}
	}
	return model.File{}, false
}

// Payload normalizes the current draft.
func (d *Dialog) Payload() (form.UpdatePayload, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return form.Normalize(d.draft, d.allDay, d.files, d.params.Locale), d.allDay
}

// HasConflict reports whether the most recent create or update was rejected
// by the service as overlapping another event.
func (d *Dialog) HasConflict() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasConflictLocked()
}

func (d *Dialog) hasConflictLocked() bool {
	return d.lastMutation != nil && d.lastMutation.Conflict()
}

// Close disposes the dialog. In-flight mutations still complete and fire
// their callbacks but no longer change the dialog's state.
func (d *Dialog) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	onClose := d.params.Callbacks.OnClose
	d.mu.Unlock()

	d.params.Metrics.DialogClosed()
	appLog.Info("dialog closed", "dialog_id", d.id)
	if onClose != nil {
		onClose()
	}
}

// Closed reports whether the dialog has been disposed.
func (d *Dialog) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
