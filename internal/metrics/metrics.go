// Package metrics exports session activity as Prometheus series.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/session"
)

const namespace = "proctor"

// Recorder is a session.Observer that counts what sessions do.
type Recorder struct {
	session.NopObserver

	sessionsStarted   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	answers           *prometheus.CounterVec
	autoSubmits       *prometheus.CounterVec
	available         *prometheus.GaugeVec
	submissions       *prometheus.CounterVec
	duration          *prometheus.HistogramVec
}

// New registers the session collectors on reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions started, by mode.",
		}, []string{"mode"}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Sessions completed, by mode and what ended them.",
		}, []string{"mode", "trigger"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_committed_total",
			Help:      "Committed answers, by kind and trigger.",
		}, []string{"kind", "trigger"}),
		autoSubmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_submits_total",
			Help:      "Answers committed without the candidate asking, by reason.",
		}, []string{"reason"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capability_available",
			Help:      "Whether a capture capability is usable (1) or degraded (0).",
		}, []string{"capability"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Result submissions, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall time from start to completion.",
			Buckets:   []float64{60, 300, 600, 900, 1800, 3600, 7200},
		}, []string{"mode"}),
	}

	for _, c := range []prometheus.Collector{
		r.sessionsStarted,
		r.sessionsCompleted,
		r.answers,
		r.autoSubmits,
		r.available,
		r.submissions,
		r.duration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register session metrics: %w", err)
		}
	}
	return r, nil
}

// Handler serves the gatherer's series.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (r *Recorder) SessionStarted(s session.Snapshot) {
	r.sessionsStarted.WithLabelValues(modeLabel(string(s.Mode))).Inc()
	r.setCapabilities(s.Capabilities)
}

func (r *Recorder) AnswerCommitted(ans answer.Answer, trigger session.Trigger) {
	kind := string(ans.Kind)
	if ans.Empty() {
		kind = "empty"
	}
	r.answers.WithLabelValues(kind, string(trigger)).Inc()
	if trigger != session.TriggerCandidate {
		r.autoSubmits.WithLabelValues(string(trigger)).Inc()
	}
}

func (r *Recorder) CapabilityDegraded(caps capture.Capabilities, _ string) {
	r.setCapabilities(caps)
}

func (r *Recorder) setCapabilities(caps capture.Capabilities) {
	for name, ok := range map[string]bool{
		"camera":      caps.Camera,
		"microphone":  caps.Microphone,
		"recognition": caps.Recognition,
		"synthesis":   caps.Synthesis,
	} {
		v := 0.0
		if ok {
			v = 1
		}
		r.available.WithLabelValues(name).Set(v)
	}
}

func (r *Recorder) SessionCompleted(c session.Completion) {
	mode := modeLabel(string(c.Mode))
	r.sessionsCompleted.WithLabelValues(mode, string(c.Trigger)).Inc()
	r.duration.WithLabelValues(mode).Observe(c.Duration.Seconds())

	outcome := "ok"
	if c.SubmitErr != nil {
		outcome = "error"
	}
	r.submissions.WithLabelValues(outcome).Inc()
}

func modeLabel(mode string) string {
	if mode == "" {
		return "unknown"
	}
	return mode
}
