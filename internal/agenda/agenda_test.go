package agenda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evdialog/internal/model"
	"evdialog/internal/remote/remotetest"
)

var fixedNow = time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

func newAgenda(fake *remotetest.Fake) *Agenda {
	return New(fake, Options{
		Location:     time.UTC,
		HorizonDays:  7,
		BackfillDays: 1,
		Now:          func() time.Time { return fixedNow },
	})
}

func TestRefreshExpandsRecurringEvents(t *testing.T) {
	fake := &remotetest.Fake{List: []model.Event{
		{
			ID:         "standup",
			Title:      "Standup",
			StartTime:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			EndTime:    time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC),
			Recurrence: "RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR",
		},
		{
			ID:        "lunch",
			Title:     "Lunch",
			StartTime: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2024, 3, 6, 13, 0, 0, 0, time.UTC),
		},
	}}
	a := newAgenda(fake)

	require.NoError(t, a.Refresh(context.Background()))
	snap := a.Snapshot()

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), snap.RangeStart)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), snap.RangeEnd)
	assert.Equal(t, fixedNow, snap.RefreshedAt)
	assert.Empty(t, snap.LastError)

	var titles []string
	for _, o := range snap.Occurrences {
		titles = append(titles, o.Start.Format("Jan 2 15:04")+" "+o.Title)
	}
	// Mon 4, Wed 6, Fri 8, Mon 11 standups plus the lunch, sorted by start.
	assert.Equal(t, []string{
		"Mar 4 09:00 Standup",
		"Mar 6 09:00 Standup",
		"Mar 6 12:00 Lunch",
		"Mar 8 09:00 Standup",
		"Mar 11 09:00 Standup",
	}, titles)
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	fake := &remotetest.Fake{List: []model.Event{{
		ID:        "lunch",
		Title:     "Lunch",
		StartTime: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 3, 6, 13, 0, 0, 0, time.UTC),
	}}}
	a := newAgenda(fake)
	require.NoError(t, a.Refresh(context.Background()))

	fake.ListErr = errors.New("upstream down")
	require.Error(t, a.Refresh(context.Background()))

	snap := a.Snapshot()
	assert.Len(t, snap.Occurrences, 1)
	assert.Contains(t, snap.LastError, "upstream down")
}

func TestRefreshAsyncAndStop(t *testing.T) {
	fake := &remotetest.Fake{List: []model.Event{{
		ID:        "lunch",
		StartTime: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 3, 6, 13, 0, 0, 0, time.UTC),
	}}}
	a := newAgenda(fake)

	a.RefreshAsync()
	a.Stop()
	assert.Len(t, a.Snapshot().Occurrences, 1)
}

func TestRefreshAsyncAfterStopIsIgnored(t *testing.T) {
	fake := &remotetest.Fake{}
	a := newAgenda(fake)

	var callers sync.WaitGroup
	for i := 0; i < 8; i++ {
		callers.Add(1)
		go func() {
			defer callers.Done()
			a.RefreshAsync()
		}()
	}
	a.Stop()
	callers.Wait()

	fake.List = []model.Event{{
		ID:        "late",
		StartTime: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 3, 6, 13, 0, 0, 0, time.UTC),
	}}
	a.RefreshAsync()
	a.Stop()
	assert.Empty(t, a.Snapshot().Occurrences)
}

func TestStartRejectsBadSpec(t *testing.T) {
	a := newAgenda(&remotetest.Fake{})
	assert.Error(t, a.Start("not a cron spec"))

	require.NoError(t, a.Start("*/15 * * * *"))
	a.Stop()
}
