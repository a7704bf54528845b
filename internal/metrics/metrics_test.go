package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Recorder) string {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.Submission("created")
	r.Submission("created")
	r.Submission("conflict")
	r.Delete("failed")
	r.Action("startTime")
	r.AgendaRefresh("ok")
	r.DialogOpened()

	out := scrape(t, r)
	assert.Contains(t, out, `evdialog_submissions_total{outcome="created"} 2`)
	assert.Contains(t, out, `evdialog_submissions_total{outcome="conflict"} 1`)
	assert.Contains(t, out, `evdialog_deletes_total{outcome="failed"} 1`)
	assert.Contains(t, out, `evdialog_form_actions_total{kind="startTime"} 1`)
	assert.Contains(t, out, `evdialog_agenda_refresh_total{result="ok"} 1`)
	assert.Contains(t, out, `evdialog_open_dialogs 1`)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Submission("noop")
		r.Delete("ok")
		r.Action("reset")
		r.AgendaRefresh("failed")
		r.DialogOpened()
		r.DialogClosed()
	})

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
