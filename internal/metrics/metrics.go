// Package metrics exposes dialog and agenda counters in Prometheus format.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "evdialog"

// Recorder owns a private registry so tests can build as many as they like.
type Recorder struct {
	registry *prometheus.Registry

	submissions   *prometheus.CounterVec
	deletes       *prometheus.CounterVec
	actions       *prometheus.CounterVec
	agendaRefresh *prometheus.CounterVec
	openDialogs   prometheus.Gauge
}

// New builds a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Dialog submissions by outcome.",
		}, []string{"outcome"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Event deletions by outcome.",
		}, []string{"outcome"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_actions_total",
			Help:      "Reducer actions applied, by kind.",
		}, []string{"kind"}),
		agendaRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agenda_refresh_total",
			Help:      "Agenda refreshes by result.",
		}, []string{"result"}),
		openDialogs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_dialogs",
			Help:      "Dialogs currently open.",
		}),
	}
	r.registry.MustRegister(r.submissions, r.deletes, r.actions, r.agendaRefresh, r.openDialogs)
	return r
}

func (r *Recorder) Submission(outcome string) {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Delete(outcome string) {
	if r == nil {
		return
	}
	r.deletes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Action(kind string) {
	if r == nil {
		return
	}
	r.actions.WithLabelValues(kind).Inc()
}

func (r *Recorder) AgendaRefresh(result string) {
	if r == nil {
		return
	}
	r.agendaRefresh.WithLabelValues(result).Inc()
}

func (r *Recorder) DialogOpened() {
	if r == nil {
		return
	}
	r.openDialogs.Inc()
}

func (r *Recorder) DialogClosed() {
	if r == nil {
		return
	}
	r.openDialogs.Dec()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
