package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evdialog/internal/agenda"
	"evdialog/internal/config"
	"evdialog/internal/dialog"
	"evdialog/internal/ics"
	"evdialog/internal/metrics"
	"evdialog/internal/model"
	"evdialog/internal/remote"
	"evdialog/internal/remote/remotetest"
)

var fixedNow = time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

func newFake() *remotetest.Fake {
	return &remotetest.Fake{
		EventsByID: map[string]*model.Event{
			"ev1": {
				ID:            "ev1",
				Title:         "Standup",
				StartTime:     time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
				EndTime:       time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
				Notifications: []model.EventNotification{{UserID: "u1", NotifyBefore: 600000}},
				Attachments:   []model.File{{ID: "f1", Name: "agenda.pdf"}},
			},
		},
		MessagesByID: map[string]*model.Message{
			"m1": {ID: "m1", Title: "Lunch"},
		},
		Me: &model.User{ID: "u1", Name: "Ann", Email: "ann@example.com"},
		List: []model.Event{{
			ID:        "ev1",
			Title:     "Standup",
			StartTime: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		}},
	}
}

type harness struct {
	t    *testing.T
	fake *remotetest.Fake
	srv  *Server
	cfg  *config.Config
}

func newHarness(t *testing.T, fake *remotetest.Fake) *harness {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	now := func() time.Time { return fixedNow }
	rec := metrics.New()

	deps := Deps{
		Dialogs: dialog.NewStore(fake),
		Agenda: agenda.New(fake, agenda.Options{
			Location:    time.UTC,
			HorizonDays: 7,
			Now:         now,
			Metrics:     rec,
		}),
		Fetcher: ics.NewFetcher(t.TempDir(), time.Second),
		Metrics: rec,
		Now:     now,
	}
	return &harness{t: t, fake: fake, srv: NewServer(cfg, deps), cfg: cfg}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(h.t, err)
		r = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, req)
	return w
}

func (h *harness) open(body openRequest) dialog.View {
	h.t.Helper()
	w := h.do(http.MethodPost, "/api/dialogs", body)
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeView(h.t, w.Body)
}

func decodeView(t *testing.T, r io.Reader) dialog.View {
	t.Helper()
	var v dialog.View
	require.NoError(t, json.NewDecoder(r).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	h := newHarness(t, newFake())
	w := h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestBasicAuth(t *testing.T) {
	h := newHarness(t, newFake())
	h.cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/agenda", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/agenda", nil)
	req.SetBasicAuth("admin", "s3cret")
	w := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.True(t, secureCompare("abc", "abc"))
	assert.False(t, secureCompare("abc", "abd"))
	assert.False(t, secureCompare("abc", "abcd"))
}

func TestEditAndSubmitFlow(t *testing.T) {
	h := newHarness(t, newFake())
	v := h.open(openRequest{EventID: "ev1"})
	assert.Equal(t, "edit", v.Mode)
	base := "/api/dialogs/" + v.ID

	w := h.do(http.MethodPost, base+"/actions", actionRequest{Field: "startTime", Value: "11:00"})
	require.Equal(t, http.StatusOK, w.Code)
	v = decodeView(t, w.Body)
	assert.Equal(t, "11:00", v.Draft.StartTime)
	assert.Equal(t, "12:00", v.Draft.EndTime)

	w = h.do(http.MethodPost, base+"/actions", actionRequest{Field: "notification:0:period", Value: "3"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", decodeView(t, w.Body).Draft.Notifications[0].Period)

	w = h.do(http.MethodPost, base+"/actions", actionRequest{Field: "colour", Value: "red"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res submitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, dialog.OutcomeUpdated, res.Outcome)
	assert.True(t, res.View.Closed)
	assert.True(t, res.View.Saved)

	calls := h.fake.CallsSnapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "11:00", calls[0].Input.StartTime.Time.Format("15:04"))
	assert.Equal(t, int64(3*60*1000), calls[0].Input.Notifications[0].NotifyBefore)

	// closed dialogs leave the store
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, base, nil).Code)
}

func TestSubmitConflict(t *testing.T) {
	fake := newFake()
	fake.UpdateResult = remote.MutationResult{Errors: remote.Errors{{Message: "overlap", Code: remote.CodeHasConflict}}}
	h := newHarness(t, fake)
	v := h.open(openRequest{EventID: "ev1"})

	w := h.do(http.MethodPost, "/api/dialogs/"+v.ID+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res submitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, dialog.OutcomeConflict, res.Outcome)
	assert.True(t, res.View.HasConflict)
	assert.False(t, res.View.Closed)
}

func TestSubmitTransportFailure(t *testing.T) {
	fake := newFake()
	fake.MutationErr = errors.New("dial tcp: refused")
	h := newHarness(t, fake)
	v := h.open(openRequest{MessageID: "m1"})

	w := h.do(http.MethodPost, "/api/dialogs/"+v.ID+"/submit", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	var res submitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, dialog.OutcomeFailed, res.Outcome)
	assert.NotEmpty(t, res.View.SubmitError)
}

func TestDeleteFlow(t *testing.T) {
	fake := newFake()
	fake.DeleteErr = errors.New("503 from upstream")
	h := newHarness(t, fake)
	v := h.open(openRequest{EventID: "ev1"})
	base := "/api/dialogs/" + v.ID

	w := h.do(http.MethodPost, base+"/delete", deleteRequest{Confirm: true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, base+"/delete", deleteRequest{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeView(t, w.Body).ConfirmingDelete)

	w = h.do(http.MethodPost, base+"/delete", deleteRequest{Confirm: true})
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "503 from upstream", decodeView(t, w.Body).DeleteError)

	fake.DeleteErr = nil
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/delete", deleteRequest{}).Code)
	w = h.do(http.MethodPost, base+"/delete", deleteRequest{Confirm: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeView(t, w.Body).Closed)
}

func TestAllDayExport(t *testing.T) {
	h := newHarness(t, newFake())
	v := h.open(openRequest{EventID: "ev1"})
	base := "/api/dialogs/" + v.ID

	w := h.do(http.MethodPost, base+"/all-day", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeView(t, w.Body).AllDay)

	w = h.do(http.MethodGet, base+"/event.ics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "DTSTART;VALUE=DATE:20240305")
	assert.Contains(t, w.Body.String(), "TRIGGER:-PT10M")
}

func TestExportIncompleteDraft(t *testing.T) {
	h := newHarness(t, newFake())
	v := h.open(openRequest{EventID: "ev1"})
	base := "/api/dialogs/" + v.ID

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/actions", actionRequest{Field: "endDate", Value: "soon"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodGet, base+"/event.ics", nil).Code)
}

const inviteICS = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:inv-1\r\nSUMMARY:Design review\r\nLOCATION:Room 7\r\n" +
	"DTSTART:20240320T150000Z\r\nDTEND:20240320T160000Z\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

func TestImportBody(t *testing.T) {
	h := newHarness(t, newFake())
	v := h.open(openRequest{MessageID: "m1"})

	w := h.do(http.MethodPost, "/api/dialogs/"+v.ID+"/import", inviteICS)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v = decodeView(t, w.Body)
	assert.Equal(t, "Design review", v.Draft.Title)
	assert.Equal(t, "Room 7", v.Draft.Location)
	assert.Equal(t, "3/20/2024", v.Draft.StartDate)
	assert.Equal(t, "15:00", v.Draft.StartTime)
	assert.Equal(t, "16:00", v.Draft.EndTime)

	w = h.do(http.MethodPost, "/api/dialogs/"+v.ID+"/import", "not a calendar")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportAttachment(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(inviteICS))
	}))
	defer files.Close()

	fake := newFake()
	fake.MessagesByID["m1"].Files = []model.File{{ID: "inv", Name: "invite.ics", URL: files.URL + "/inv"}}
	h := newHarness(t, fake)
	v := h.open(openRequest{MessageID: "m1"})

	w := h.do(http.MethodPost, "/api/dialogs/"+v.ID+"/import?attachment=inv", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Design review", decodeView(t, w.Body).Draft.Title)

	w = h.do(http.MethodPost, "/api/dialogs/"+v.ID+"/import?attachment=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttachments(t *testing.T) {
	h := newHarness(t, newFake())
	v := h.open(openRequest{EventID: "ev1"})
	base := "/api/dialogs/" + v.ID

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodDelete, base+"/attachments/x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodDelete, base+"/attachments/4", nil).Code)

	w := h.do(http.MethodPut, base+"/attachments", []model.File{{ID: "a"}, {ID: "b"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeView(t, w.Body).Attachments, 2)

	w = h.do(http.MethodDelete, base+"/attachments/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	v = decodeView(t, w.Body)
	require.Len(t, v.Attachments, 1)
	assert.Equal(t, "b", v.Attachments[0].ID)

	// previews are not configured in this harness
	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodGet, base+"/attachments/b/preview.png", nil).Code)
}

func TestCloseAndUnknownDialog(t *testing.T) {
	h := newHarness(t, newFake())
	v := h.open(openRequest{EventID: "ev1"})

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/dialogs/"+v.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/dialogs/"+v.ID, nil).Code)

	assert.Equal(t, http.StatusBadGateway, h.do(http.MethodPost, "/api/dialogs", openRequest{EventID: "missing"}).Code)
}

func TestAgendaAndMetrics(t *testing.T) {
	h := newHarness(t, newFake())

	w := h.do(http.MethodGet, "/api/agenda?refresh=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap agenda.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	require.Len(t, snap.Occurrences, 1)
	assert.Equal(t, "Standup", snap.Occurrences[0].Title)

	h.open(openRequest{EventID: "ev1"})
	w = h.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "evdialog_open_dialogs 1")
	assert.Contains(t, w.Body.String(), `evdialog_agenda_refresh_total{result="ok"} 1`)
}
