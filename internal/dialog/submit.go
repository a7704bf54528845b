package dialog

import (
	"context"
	"fmt"

	"evdialog/internal/form"
	appLog "evdialog/internal/log"
	"evdialog/internal/remote"
)

// Submit saves the draft. An existing event is updated; otherwise, when the
// dialog was opened on a message, a new event is created from it; with
// neither, nothing happens.
//
// A conflict reported by the service keeps the dialog open and fires no
// callbacks. Any other success fires the creation callbacks (create only),
// then RefreshEvents, then closes the dialog.
func (d *Dialog) Submit(ctx context.Context) (Outcome, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return OutcomeNoop, ErrClosed
	}
	if d.pending {
		d.mu.Unlock()
		return OutcomeNoop, ErrBusy
	}

	var (
		eventID   string
		messageID string
	)
	switch {
	case d.event != nil:
		eventID = d.event.ID
	case d.message != nil:
		messageID = d.message.ID
	default:
		d.mu.Unlock()
		d.params.Metrics.Submission(string(OutcomeNoop))
		return OutcomeNoop, nil
	}

	payload := form.Normalize(d.draft, d.allDay, d.files, d.params.Locale)
	in := remote.EventInput{UpdatePayload: payload, AllDay: d.allDay}
	d.pending = true
	d.saved = false
	d.mu.Unlock()

	var (
		res remote.MutationResult
		err error
	)
	if eventID != "" {
		res, err = d.client.UpdateEvent(ctx, eventID, in)
	} else {
		res, err = d.client.CreateEvent(ctx, messageID, in)
	}

	outcome, err := d.finishSubmit(eventID != "", res, err)
	d.params.Metrics.Submission(string(outcome))
	return outcome, err
}

func (d *Dialog) finishSubmit(isUpdate bool, res remote.MutationResult, err error) (Outcome, error) {
	op := "create"
	if isUpdate {
		op = "update"
	}

	d.mu.Lock()
	d.pending = false
	disposed := d.closed

	if err != nil {
		appLog.Error("event "+op+" error", err, "dialog_id", d.id)
		if !disposed {
			d.lastMutation = &remote.MutationResult{Errors: remote.Errors{{Message: err.Error()}}}
			d.lastSubmitErr = err
		}
		d.mu.Unlock()
		return OutcomeFailed, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	if !disposed {
		r := res
		d.lastMutation = &r
	}

	if res.Conflict() {
		d.mu.Unlock()
		appLog.Info("event "+op+" rejected with conflict", "dialog_id", d.id)
		return OutcomeConflict, nil
	}
	if res.Failed() {
		if !disposed {
			d.lastSubmitErr = res.Errors
		}
		d.mu.Unlock()
		appLog.Error("event "+op+" error", res.Errors, "dialog_id", d.id)
		return OutcomeFailed, fmt.Errorf("%w: %v", ErrSubmitFailed, res.Errors)
	}

	if !disposed {
		d.lastSubmitErr = nil
		d.saved = true
		if isUpdate && res.Event != nil {
			ev := *res.Event
			d.event = &ev
		}
	}
	cb := d.params.Callbacks
	d.mu.Unlock()

	outcome := OutcomeUpdated
	if !isUpdate {
		outcome = OutcomeCreated
		if ev := res.Event; ev != nil {
			if cb.OnCreateFromMessage != nil {
				cb.OnCreateFromMessage(ev.ID, *ev)
			}
			if cb.OnEventCreated != nil {
				cb.OnEventCreated(ev.ID, *ev)
			}
		}
	}

	appLog.Info("event saved", "dialog_id", d.id, "outcome", string(outcome))

	if cb.RefreshEvents != nil {
		cb.RefreshEvents()
	}
	d.Close()
	return outcome, nil
}

// RequestDelete opens the delete confirmation step.
func (d *Dialog) RequestDelete() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.closed:
		return ErrClosed
	case d.event == nil:
		return ErrNoEvent
	case d.pending:
		return ErrBusy
	}
	d.confirmDelete = true
	return nil
}

// CancelDelete dismisses the confirmation step.
func (d *Dialog) CancelDelete() {
	d.mu.Lock()
	d.confirmDelete = false
	d.mu.Unlock()
}

// ConfirmDelete deletes the event after RequestDelete.
//
// A failed delete leaves the dialog open with the error recorded so the user
// can retry (RequestDelete again); the returned error wraps ErrDeleteFailed.
// A successful delete fires RefreshEvents and OnEventDeleted and closes the
// dialog.
func (d *Dialog) ConfirmDelete(ctx context.Context) error {
	d.mu.Lock()
	switch {
	case d.closed:
		d.mu.Unlock()
		return ErrClosed
	case !d.confirmDelete:
		d.mu.Unlock()
		return ErrDeleteNotConfirmed
	case d.pending:
		d.mu.Unlock()
		return ErrBusy
	case d.event == nil:
		d.mu.Unlock()
		return ErrNoEvent
	}
	eventID := d.draft.EventID
	if eventID == "" {
		eventID = d.event.ID
	}
	d.confirmDelete = false
	d.pending = true
	d.mu.Unlock()

	err := d.client.DeleteEvent(ctx, eventID)

	d.mu.Lock()
	d.pending = false
	disposed := d.closed
	if err != nil {
		if !disposed {
			d.lastDeleteErr = err
		}
		d.mu.Unlock()
		d.params.Metrics.Delete("failed")
		appLog.Error("event delete failed", err, "dialog_id", d.id, "event_id", eventID)
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if !disposed {
		d.lastDeleteErr = nil
		d.event = nil
	}
	cb := d.params.Callbacks
	d.mu.Unlock()

	d.params.Metrics.Delete("ok")
	appLog.Info("event deleted", "dialog_id", d.id, "event_id", eventID)

	if cb.RefreshEvents != nil {
		cb.RefreshEvents()
	}
	if cb.OnEventDeleted != nil {
		cb.OnEventDeleted()
	}
	d.Close()
	return nil
}
