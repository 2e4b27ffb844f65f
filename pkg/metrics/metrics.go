// Package metrics exposes pipeline counters to Prometheus and queries the
// aggregated series back for the dashboard collaborator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vozlocal/pkg/proto"
)

// Recorder counts pipeline activity. All methods are safe for concurrent
// use and never block a turn.
type Recorder struct {
	eventsTotal         *prometheus.CounterVec
	eventsDropped       *prometheus.CounterVec
	turnsTotal          *prometheus.CounterVec
	outboundTotal       *prometheus.CounterVec
	classifyFallback    prometheus.Counter
	proposalsTotal      *prometheus.CounterVec
	gapRecomputesTotal  prometheus.Counter
	activeSessionsGauge prometheus.Gauge
}

// NewRecorder registers the pipeline metrics with the default registry.
func NewRecorder() *Recorder {
	return &Recorder{
		eventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vozlocal_events_total",
				Help: "Inbound chat events by kind (text or audio)",
			},
			[]string{"kind"},
		),
		eventsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vozlocal_events_dropped_total",
				Help: "Inbound events dropped before a turn ran, by reason",
			},
			[]string{"reason"},
		),
		turnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vozlocal_turns_total",
				Help: "Processed conversation turns by resulting step and status",
			},
			[]string{"to_step", "status"},
		),
		outboundTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vozlocal_outbound_messages_total",
				Help: "Outbound messages by kind (text or audio)",
			},
			[]string{"kind"},
		),
		classifyFallback: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vozlocal_classification_fallbacks_total",
				Help: "Proposals flagged for review: low confidence or degraded classification",
			},
		),
		proposalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vozlocal_proposals_total",
				Help: "Persisted proposals by primary theme",
			},
			[]string{"theme"},
		),
		gapRecomputesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vozlocal_gap_recomputes_total",
				Help: "Completed gap metric cache refreshes",
			},
		),
		activeSessionsGauge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vozlocal_active_sessions",
				Help: "Sessions currently held in memory",
			},
		),
	}
}

// EventReceived counts one inbound event.
func (r *Recorder) EventReceived(hasAudio bool) {
	r.eventsTotal.WithLabelValues(eventKind(hasAudio)).Inc()
}

// EventDropped counts one fail-closed drop.
func (r *Recorder) EventDropped(reason string) {
	r.eventsDropped.WithLabelValues(reason).Inc()
}

// TurnProcessed counts one completed turn.
func (r *Recorder) TurnProcessed(toStep proto.SessionStep, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	r.turnsTotal.WithLabelValues(string(toStep), status).Inc()
}

// OutboundSent counts one outbound message.
func (r *Recorder) OutboundSent(isAudio bool) {
	r.outboundTotal.WithLabelValues(eventKind(isAudio)).Inc()
}

// ClassificationFallback counts one degraded classification.
func (r *Recorder) ClassificationFallback() {
	r.classifyFallback.Inc()
}

// ProposalRecorded counts one persisted proposal.
func (r *Recorder) ProposalRecorded(theme proto.Theme) {
	r.proposalsTotal.WithLabelValues(string(theme)).Inc()
}

// GapRecomputed counts one cache refresh.
func (r *Recorder) GapRecomputed() {
	r.gapRecomputesTotal.Inc()
}

// SetActiveSessions updates the in-memory session gauge.
func (r *Recorder) SetActiveSessions(n int) {
	r.activeSessionsGauge.Set(float64(n))
}

func eventKind(audio bool) string {
	if audio {
		return "audio"
	}
	return "text"
}
