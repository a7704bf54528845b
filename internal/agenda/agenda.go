// Package agenda keeps the expanded list of upcoming event occurrences that
// dialogs refresh after a save or delete.
package agenda

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"evdialog/internal/ics"
	appLog "evdialog/internal/log"
	"evdialog/internal/metrics"
	"evdialog/internal/model"
	"evdialog/internal/remote"
)

const refreshTimeout = 30 * time.Second

// Options configure an Agenda.
type Options struct {
	Location     *time.Location
	HorizonDays  int
	BackfillDays int
	// MaxOccurrencesPerEvent caps recurrence expansion; zero uses the
	// expander's default.
	MaxOccurrencesPerEvent int

	Now     func() time.Time
	Metrics *metrics.Recorder
}

// Snapshot is the agenda as of its last successful refresh.
type Snapshot struct {
	RangeStart  time.Time          `json:"range_start"`
	RangeEnd    time.Time          `json:"range_end"`
	RefreshedAt time.Time          `json:"refreshed_at"`
	Occurrences []model.Occurrence `json:"occurrences"`
	Truncated   []string           `json:"truncated,omitempty"`
	// LastError is the error of the most recent refresh, if it failed.
	LastError string `json:"last_error,omitempty"`
}

// Agenda is a cached, periodically refreshed occurrence list.
type Agenda struct {
	client remote.Client
	opts   Options

	// refreshMu serializes refreshes.
	refreshMu sync.Mutex

	mu   sync.RWMutex
	snap Snapshot

	cron *cron.Cron

	// lifeMu guards stopped and orders wg.Add before Stop's wg.Wait.
	lifeMu  sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func New(client remote.Client, opts Options) *Agenda {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 14
	}
	if opts.BackfillDays < 0 {
		opts.BackfillDays = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Agenda{client: client, opts: opts}
}

// window returns [start of day - backfill, start of day + horizon) in the
// agenda's location.
func (a *Agenda) window() (time.Time, time.Time) {
	now := a.opts.Now().In(a.opts.Location)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.opts.Location)
	return day.AddDate(0, 0, -a.opts.BackfillDays), day.AddDate(0, 0, a.opts.HorizonDays)
}

// Refresh reloads the events in the window and replaces the snapshot. On
// failure the previous occurrences are kept and the error is recorded.
func (a *Agenda) Refresh(ctx context.Context) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	from, to := a.window()
	events, err := a.client.Events(ctx, from, to)
	if err != nil {
		a.fail(fmt.Errorf("agenda: list events: %w", err))
		return err
	}

	parsed := make([]ics.ParsedEvent, 0, len(events))
	for _, ev := range events {
		parsed = append(parsed, ics.FromEvent(ev))
	}

	res, err := ics.Expand(parsed, ics.ExpandConfig{
		DisplayLocation:        a.opts.Location,
		RangeStart:             from,
		RangeEnd:               to,
		MaxOccurrencesPerEvent: a.opts.MaxOccurrencesPerEvent,
	})
	if err != nil {
		a.fail(err)
		return err
	}

	a.mu.Lock()
	a.snap = Snapshot{
		RangeStart:  from,
		RangeEnd:    to,
		RefreshedAt: a.opts.Now(),
		Occurrences: res.Occurrences,
		Truncated:   res.TruncatedEvents,
	}
	a.mu.Unlock()

	a.opts.Metrics.AgendaRefresh("ok")
	appLog.Info("agenda refreshed", "events", len(events), "occurrences", len(res.Occurrences))
	return nil
}

func (a *Agenda) fail(err error) {
	a.mu.Lock()
	a.snap.LastError = err.Error()
	a.mu.Unlock()
	a.opts.Metrics.AgendaRefresh("failed")
	appLog.Error("agenda refresh failed", err)
}

// RefreshAsync starts a refresh in the background. It is what dialogs call
// once an event was saved or deleted. After Stop it does nothing.
func (a *Agenda) RefreshAsync() {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	if a.stopped {
		appLog.Debug("agenda stopped, refresh skipped")
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		_ = a.Refresh(ctx)
	}()
}

// Snapshot returns a copy of the current agenda.
func (a *Agenda) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.snap
	s.Occurrences = append([]model.Occurrence(nil), a.snap.Occurrences...)
	s.Truncated = append([]string(nil), a.snap.Truncated...)
	return s
}

// Start schedules periodic refreshes with a standard five-field cron spec.
func (a *Agenda) Start(spec string) error {
	c := cron.New(cron.WithLocation(a.opts.Location))
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		_ = a.Refresh(ctx)
	}); err != nil {
		return fmt.Errorf("agenda: schedule %q: %w", spec, err)
	}
	a.cron = c
	c.Start()
	appLog.Info("agenda refresh scheduled", "spec", spec)
	return nil
}

// Stop stops the schedule and waits for running refreshes. Later
// RefreshAsync calls are ignored.
func (a *Agenda) Stop() {
	a.lifeMu.Lock()
	a.stopped = true
	a.lifeMu.Unlock()

	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	a.wg.Wait()
}
