// Package remotetest provides an in-memory remote.Client for tests.
package remotetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"evdialog/internal/model"
	"evdialog/internal/remote"
)

// Call records one mutation the fake received.
type Call struct {
	Op    string
	ID    string
	Input remote.EventInput
}

// Fake is a scriptable remote.Client. Zero values answer with empty data.
type Fake struct {
	mu sync.Mutex

	EventsByID    map[string]*model.Event
	MessagesByID  map[string]*model.Message
	Me            *model.User
	Shared        []model.User
	SettingsByTag map[string][]model.NotificationSetting
	List          []model.Event

	// CreateResult / UpdateResult are returned by the mutations; when the
	// Event is nil and there are no errors, a copy of the input is echoed.
	CreateResult remote.MutationResult
	UpdateResult remote.MutationResult
	MutationErr  error
	DeleteErr    error
	ListErr      error

	// Gate, when non-nil, blocks mutations until it is closed.
	Gate chan struct{}
	// LoadGate, when non-nil, blocks Event lookups until it is closed.
	LoadGate chan struct{}
	// EventLoads counts Event lookups, including ones held by LoadGate.
	EventLoads int

	Calls []Call
}

var errNotFound = errors.New("remotetest: not found")

func (f *Fake) Event(ctx context.Context, id string) (*model.Event, error) {
	f.mu.Lock()
	f.EventLoads++
	gate := f.LoadGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.EventsByID[id]; ok {
		cp := *ev
		return &cp, nil
	}
	return nil, errNotFound
}

func (f *Fake) Message(_ context.Context, id string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.MessagesByID[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, errNotFound
}

func (f *Fake) CurrentUser(context.Context) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Me == nil {
		return nil, errNotFound
	}
	cp := *f.Me
	return &cp, nil
}

func (f *Fake) SharedAccess(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.User(nil), f.Shared...), nil
}

func (f *Fake) NotificationSettingsByTag(_ context.Context, tagID string) ([]model.NotificationSetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SettingsByTag[tagID], nil
}

func (f *Fake) Events(context.Context, time.Time, time.Time) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]model.Event(nil), f.List...), nil
}

func (f *Fake) CreateEvent(ctx context.Context, messageID string, in remote.EventInput) (remote.MutationResult, error) {
	return f.mutate(ctx, "create", messageID, in, func() remote.MutationResult { return f.CreateResult })
}

func (f *Fake) UpdateEvent(ctx context.Context, eventID string, in remote.EventInput) (remote.MutationResult, error) {
	return f.mutate(ctx, "update", eventID, in, func() remote.MutationResult { return f.UpdateResult })
}

func (f *Fake) DeleteEvent(ctx context.Context, eventID string) error {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Op: "delete", ID: eventID})
	return f.DeleteErr
}

func (f *Fake) mutate(ctx context.Context, op, id string, in remote.EventInput, pick func() remote.MutationResult) (remote.MutationResult, error) {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Op: op, ID: id, Input: in})
	if f.MutationErr != nil {
		return remote.MutationResult{}, f.MutationErr
	}
	res := pick()
	if res.Event == nil && len(res.Errors) == 0 {
		res.Event = &model.Event{
			ID:          "new-" + id,
			Title:       in.Title,
			Location:    in.Location,
			Description: in.Description,
			AllDay:      in.AllDay,
			StartTime:   in.StartTime.Time,
			EndTime:     in.EndTime.Time,
		}
	}
	return res, nil
}

func (f *Fake) wait(ctx context.Context) {
	f.mu.Lock()
	gate := f.Gate
	f.mu.Unlock()
	if gate == nil {
		return
	}
	select {
	case <-gate:
	case <-ctx.Done():
	}
}

// Loads returns the number of Event lookups so far.
func (f *Fake) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.EventLoads
}

// CallsSnapshot returns a copy of the recorded mutation calls.
func (f *Fake) CallsSnapshot() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.Calls...)
}

var _ remote.Client = (*Fake)(nil)
