// Package remote talks to the calendar/mail service that owns events,
// messages, sharing and notification settings.
package remote

import (
	"context"
	"strings"
	"time"

	"evdialog/internal/form"
	"evdialog/internal/model"
)

// CodeHasConflict is the error code the service uses when a submitted event
// overlaps another event on the calendar.
const CodeHasConflict = "has_conflict"

// GraphQLError is one entry of a response's error list.
type GraphQLError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e GraphQLError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Errors is the error list returned alongside (or instead of) data.
type Errors []GraphQLError

// HasCode reports whether the first error carries code. Only the first entry
// is inspected; that is where the service reports conflicts.
func (es Errors) HasCode(code string) bool {
	return len(es) > 0 && es[0].Code == code
}

func (es Errors) Error() string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// EventInput is the variable set shared by the create and update mutations.
type EventInput struct {
	form.UpdatePayload
	AllDay bool `json:"allDay"`
}

// MutationResult is what a create or update returns when the request itself
// went through. Event is nil when Errors is non-empty.
type MutationResult struct {
	Event  *model.Event
	Errors Errors
}

// Failed reports whether the service rejected the mutation.
func (r MutationResult) Failed() bool {
	return len(r.Errors) > 0
}

// Conflict reports whether the service rejected the mutation as overlapping.
func (r MutationResult) Conflict() bool {
	return r.Errors.HasCode(CodeHasConflict)
}

// Client is the subset of the remote service the dialog and agenda use.
// Transport failures are returned as errors; service-level errors of the
// mutations are returned inside MutationResult.
type Client interface {
	Event(ctx context.Context, eventID string) (*model.Event, error)
	Message(ctx context.Context, messageID string) (*model.Message, error)
	CurrentUser(ctx context.Context) (*model.User, error)
	SharedAccess(ctx context.Context) ([]model.User, error)
	NotificationSettingsByTag(ctx context.Context, tagID string) ([]model.NotificationSetting, error)
	Events(ctx context.Context, from, to time.Time) ([]model.Event, error)

	CreateEvent(ctx context.Context, messageID string, in EventInput) (MutationResult, error)
	UpdateEvent(ctx context.Context, eventID string, in EventInput) (MutationResult, error)
	DeleteEvent(ctx context.Context, eventID string) error
}
