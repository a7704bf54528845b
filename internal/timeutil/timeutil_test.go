package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"09:00", 540, true},
		{"9:05", 545, true},
		{"23:59", 1439, true},
		{"00:00", 0, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseClock(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestFormatClockWraps(t *testing.T) {
	assert.Equal(t, "15:00", FormatClock(900))
	assert.Equal(t, "00:30", FormatClock(1440+30))
	assert.Equal(t, "23:00", FormatClock(-60))
}

func TestDaysBetweenCalendarAware(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Spans the 2024-03-10 DST switch.
	a := time.Date(2024, 3, 9, 12, 0, 0, 0, loc)
	b := time.Date(2024, 3, 11, 1, 0, 0, 0, loc)
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, -2, DaysBetween(b, a))

	// Leap day and month end.
	assert.Equal(t, 2, DaysBetween(
		time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	))
}

func TestCombine(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	got, ok := Combine("3/10/2024", "09:30", "1/2/2006", loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 10, 9, 30, 0, 0, loc), got)

	_, ok = Combine("13/40/2024", "09:30", "1/2/2006", loc)
	assert.False(t, ok)
	_, ok = Combine("3/10/2024", "9h", "1/2/2006", loc)
	assert.False(t, ok)
}

func TestAsUTCWallClock(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	in := time.Date(2024, 3, 10, 23, 59, 0, 0, loc)
	got := AsUTCWallClock(in)
	assert.Equal(t, "2024-03-10T23:59:00Z", got.Format(time.RFC3339))
}

func TestSplitDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		v    int64
		unit time.Duration
	}{
		{600000, 10, time.Minute},
		{3600000, 1, time.Hour},
		{2 * 86400000, 2, 24 * time.Hour},
		{604800000, 1, Week},
		{90 * 60000, 90, time.Minute},
		{0, 0, time.Minute},
	}
	for _, tt := range tests {
		v, u := SplitDuration(tt.ms)
		assert.Equal(t, tt.v, v, tt.ms)
		assert.Equal(t, tt.unit, u, tt.ms)
	}
}
