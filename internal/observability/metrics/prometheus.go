// Package metrics provides Prometheus metrics for the consultation editor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all editor metrics
type Metrics struct {
	AutosavesSent     prometheus.Counter
	AutosaveFailures  prometheus.Counter
	AutosavesSkipped  *prometheus.CounterVec
	DraftEdits        prometheus.Counter
	FinalizeAttempts  prometheus.Counter
	FinalizeCompleted prometheus.Counter
	TemplatesApplied  prometheus.Counter
	TemplatesSaved    prometheus.Counter
}

// New creates metrics registered on the default registerer
func New() *Metrics {
	return NewInto(prometheus.DefaultRegisterer)
}

// NewInto creates metrics registered on the given registerer. Tests pass
// a private registry to avoid duplicate registration across sessions.
func NewInto(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AutosavesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consult_autosaves_sent_total",
			Help: "Total autosave requests sent",
		}),
		AutosaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consult_autosave_failures_total",
			Help: "Total autosave requests that failed (swallowed)",
		}),
		AutosavesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consult_autosaves_skipped_total",
			Help: "Autosave fires skipped before sending",
		}, []string{"reason"}),
		DraftEdits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consult_draft_edits_total",
			Help: "Total draft mutations observed",
		}),
		FinalizeAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consult_finalize_attempts_total",
			Help: "Total finalize flows started",
		}),
		FinalizeCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consult_finalize_completed_total",
			Help: "Total finalize flows completed through document",
		}),
		TemplatesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consult_templates_applied_total",
			Help: "Total prescription templates applied",
		}),
		TemplatesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consult_templates_saved_total",
			Help: "Total prescriptions saved as templates",
		}),
	}

	reg.MustRegister(
		m.AutosavesSent,
		m.AutosaveFailures,
		m.AutosavesSkipped,
		m.DraftEdits,
		m.FinalizeAttempts,
		m.FinalizeCompleted,
		m.TemplatesApplied,
		m.TemplatesSaved,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
