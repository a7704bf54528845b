package form

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"evdialog/internal/model"
	"evdialog/internal/timeutil"
)

// Timestamp is an absolute instant that may be invalid when the draft's date
// or time could not be parsed. Invalid timestamps marshal to null.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// MarshalJSON writes an RFC 3339 string, or null when t is invalid.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// UnmarshalJSON reads an RFC 3339 string; null yields an invalid Timestamp.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp{Time: parsed, Valid: true}
	return nil
}

// PayloadNotification is a reminder in submit form.
type PayloadNotification struct {
	UserID       string `json:"userId"`
	NotifyBefore int64  `json:"notifyBefore"`
}

// UpdatePayload is the submit-ready form of a draft, shared by the create and
// update mutations.
type UpdatePayload struct {
	Title         string                `json:"title"`
	StartTime     Timestamp             `json:"startTime"`
	EndTime       Timestamp             `json:"endTime"`
	Location      string                `json:"location"`
	Description   string                `json:"description"`
	Notifications []PayloadNotification `json:"notifications"`
	AttachmentIDs []string              `json:"attachmentIds"`
}

// Normalize converts the draft into an UpdatePayload. It never fails: dates
// or times that do not parse produce invalid timestamps.
//
// All-day timestamps are re-expressed at offset zero with the same wall
// clock, because the calendar sync service renders all-day events in UTC.
func Normalize(f EventForm, allDay bool, files []model.File, locale Locale) UpdatePayload {
	layout, loc := locale.layout(), locale.location()

	start := combine(f.StartDate, f.StartTime, layout, loc, allDay)
	end := combine(f.EndDate, f.EndTime, layout, loc, allDay)

	notifications := make([]PayloadNotification, 0, len(f.Notifications))
	for _, item := range f.Notifications {
		if n, ok := normalizeNotification(item); ok {
			notifications = append(notifications, n)
		}
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, file.ID)
	}

	return UpdatePayload{
		Title:         f.Title,
		StartTime:     start,
		EndTime:       end,
		Location:      f.Location,
		Description:   f.Description,
		Notifications: notifications,
		AttachmentIDs: ids,
	}
}

func combine(date, clock, layout string, loc *time.Location, allDay bool) Timestamp {
	t, ok := timeutil.Combine(date, clock, layout, loc)
	if !ok {
		return Timestamp{}
	}
	if allDay {
		t = timeutil.AsUTCWallClock(t)
	}
	return Timestamp{Time: t, Valid: true}
}

// normalizeNotification drops unset rows and rows without a positive period.
func normalizeNotification(item NotificationItem) (PayloadNotification, bool) {
	if item.UserID == SentinelUserID {
		return PayloadNotification{}, false
	}
	period, err := strconv.ParseFloat(strings.TrimSpace(item.Period), 64)
	if err != nil || period <= 0 || math.IsInf(period, 0) || math.IsNaN(period) {
		return PayloadNotification{}, false
	}
	rate := item.PeriodType.Millis()
	if rate == 0 {
		return PayloadNotification{}, false
	}
	return PayloadNotification{
		UserID:       item.UserID,
		NotifyBefore: int64(math.Round(period * float64(rate))),
	}, true
}
