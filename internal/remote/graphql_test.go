package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evdialog/internal/form"
)

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
	Auth      string         `json:"-"`
}

func newServer(t *testing.T, reply string, status int, seen *capturedRequest) *GraphQLClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
			seen.Auth = r.Header.Get("Authorization")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return NewGraphQLClient(srv.URL, "tok", time.Second)
}

func TestEventQuery(t *testing.T) {
	var seen capturedRequest
	c := newServer(t, `{"data":{"event":{
		"id":"ev1","title":"Dentist","allDay":false,
		"startTime":"2024-03-10T14:00:00Z","endTime":"2024-03-10T15:00:00Z",
		"notifications":[{"userId":"u1","notifyBefore":600000}],
		"attachments":[{"id":"f1","name":"x.pdf"}]
	}}}`, http.StatusOK, &seen)

	ev, err := c.Event(context.Background(), "ev1")
	require.NoError(t, err)
	assert.Equal(t, "Dentist", ev.Title)
	assert.Equal(t, int64(600000), ev.Notifications[0].NotifyBefore)
	assert.Equal(t, "f1", ev.Attachments[0].ID)
	assert.Equal(t, "ev1", seen.Variables["eventId"])
	assert.Equal(t, "Bearer tok", seen.Auth)
	assert.True(t, strings.HasPrefix(seen.Query, "query Event"))
}

func TestCreateEventConflictIsReturnedInResult(t *testing.T) {
	var seen capturedRequest
	c := newServer(t, `{"data":{"createEvent":null},
		"errors":[{"message":"overlaps","extensions":{"code":"has_conflict"}}]}`, http.StatusOK, &seen)

	in := EventInput{
		UpdatePayload: form.UpdatePayload{
			Title:         "Lunch",
			StartTime:     form.Timestamp{Time: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), Valid: true},
			Notifications: []form.PayloadNotification{{UserID: "u1", NotifyBefore: 60000}},
			AttachmentIDs: []string{},
		},
		AllDay: true,
	}
	res, err := c.CreateEvent(context.Background(), "m1", in)
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.True(t, res.Conflict())
	assert.Nil(t, res.Event)

	assert.Equal(t, "m1", seen.Variables["messageId"])
	assert.Equal(t, "Lunch", seen.Variables["title"])
	assert.Equal(t, true, seen.Variables["allDay"])
	assert.Equal(t, "2024-03-10T12:00:00Z", seen.Variables["startTime"])
	assert.Nil(t, seen.Variables["endTime"])
}

func TestMutationErrorsKeepServiceOrder(t *testing.T) {
	c := newServer(t, `{"data":{"updateEvent":null},"errors":[
		{"message":"bad title","extensions":{"code":"validation"}},
		{"message":"overlaps","code":"has_conflict"}]}`, http.StatusOK, nil)

	res, err := c.UpdateEvent(context.Background(), "ev1", EventInput{})
	require.NoError(t, err)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "validation", res.Errors[0].Code)
	assert.Equal(t, CodeHasConflict, res.Errors[1].Code)
	assert.True(t, res.Failed())
	assert.False(t, res.Conflict())
}

func TestUpdateEventSuccess(t *testing.T) {
	c := newServer(t, `{"data":{"updateEvent":{"id":"ev1","title":"New",
		"startTime":"2024-03-10T14:00:00Z","endTime":"2024-03-10T15:00:00Z"}}}`, http.StatusOK, nil)

	res, err := c.UpdateEvent(context.Background(), "ev1", EventInput{})
	require.NoError(t, err)
	assert.False(t, res.Failed())
	require.NotNil(t, res.Event)
	assert.Equal(t, "New", res.Event.Title)
}

func TestTransportFailure(t *testing.T) {
	c := newServer(t, `bad gateway`, http.StatusBadGateway, nil)
	_, err := c.UpdateEvent(context.Background(), "ev1", EventInput{})
	assert.Error(t, err)

	empty := newServer(t, `{"data":null}`, http.StatusServiceUnavailable, nil)
	_, err = empty.Event(context.Background(), "ev1")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Event(ctx, "ev1")
	assert.Error(t, err)

	unconfigured := NewGraphQLClient("", "", 0)
	_, err = unconfigured.Event(context.Background(), "x")
	assert.Error(t, err)
}

func TestQueryErrorsBecomeGoErrors(t *testing.T) {
	c := newServer(t, `{"data":null,"errors":[{"message":"forbidden","code":"forbidden"}]}`, http.StatusOK, nil)
	_, err := c.SharedAccess(context.Background())
	require.Error(t, err)

	var errs Errors
	require.ErrorAs(t, err, &errs)
	assert.True(t, errs.HasCode("forbidden"))
}

func TestDeleteEvent(t *testing.T) {
	ok := newServer(t, `{"data":{"deleteEvent":true}}`, http.StatusOK, nil)
	assert.NoError(t, ok.DeleteEvent(context.Background(), "ev1"))

	notDeleted := newServer(t, `{"data":{"deleteEvent":false}}`, http.StatusOK, nil)
	assert.Error(t, notDeleted.DeleteEvent(context.Background(), "ev1"))
}

func TestSharedAccessAndSettings(t *testing.T) {
	c := newServer(t, `{"data":{"sharedAccess":{"targetUsers":[{"id":"a","name":"Ann"}]}}}`, http.StatusOK, nil)
	users, err := c.SharedAccess(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ann", users[0].Name)

	s := newServer(t, `{"data":{"notificationSettingsByTag":{"items":[{"notifyBefore":3600000}]}}}`, http.StatusOK, nil)
	items, err := s.NotificationSettingsByTag(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(3600000), items[0].NotifyBefore)
}

func TestErrorsHasCodeChecksFirstEntryOnly(t *testing.T) {
	errs := Errors{{Message: "a", Code: "other"}, {Message: "b", Code: CodeHasConflict}}
	assert.False(t, errs.HasCode(CodeHasConflict))
	assert.False(t, Errors(nil).HasCode(CodeHasConflict))
	assert.True(t, Errors{{Code: CodeHasConflict}}.HasCode(CodeHasConflict))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com/...(redacted)", redactURL("https://api.example.com/graphql?key=1"))
	assert.Equal(t, "...(redacted)", redactURL("not a url"))
}
