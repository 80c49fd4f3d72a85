// Package metrics holds all Prometheus metrics for the engine. A single
// struct is wired through services so tests can pass nil and skip metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	EvaluationsTotal     *prometheus.CounterVec
	EvaluationDuration   prometheus.Histogram
	LedgerAppendsTotal   prometheus.Counter
	LedgerStaleRejects   prometheus.Counter
	RuleSetPublishes     prometheus.Counter
	ReassessCommitsTotal prometheus.Counter
	ReassessFailures     prometheus.Counter
	ReassessQueueDepth   prometheus.Gauge
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "suvidha_evaluations_total",
			Help: "Evaluations performed, labeled by outcome status",
		}, []string{"status"}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "suvidha_evaluation_duration_seconds",
			Help:    "Latency of a single profile/ruleset evaluation",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		LedgerAppendsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "suvidha_ledger_appends_total",
			Help: "Outcome entries appended to the assessment ledger",
		}),
		LedgerStaleRejects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "suvidha_ledger_stale_rejects_total",
			Help: "Ledger appends rejected by the monotonic version guard",
		}),
		RuleSetPublishes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "suvidha_ruleset_publishes_total",
			Help: "Rule set versions published",
		}),
		ReassessCommitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "suvidha_reassess_commits_total",
			Help: "Reassessment outcomes committed to the ledger",
		}),
		ReassessFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "suvidha_reassess_failures_total",
			Help: "Reassessment pairs that exhausted retries or hit integrity errors",
		}),
		ReassessQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "suvidha_reassess_queue_depth",
			Help: "Tasks waiting in the reassessment queue",
		}),
	}
}

// ObserveEvaluation records one evaluation with its status and latency.
func (m *Metrics) ObserveEvaluation(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(status).Inc()
	m.EvaluationDuration.Observe(d.Seconds())
}

func (m *Metrics) IncLedgerAppend() {
	if m != nil {
		m.LedgerAppendsTotal.Inc()
	}
}

func (m *Metrics) IncLedgerStaleReject() {
	if m != nil {
		m.LedgerStaleRejects.Inc()
	}
}

func (m *Metrics) IncRuleSetPublish() {
	if m != nil {
		m.RuleSetPublishes.Inc()
	}
}

func (m *Metrics) IncReassessCommit() {
	if m != nil {
		m.ReassessCommitsTotal.Inc()
	}
}

func (m *Metrics) IncReassessFailure() {
	if m != nil {
		m.ReassessFailures.Inc()
	}
}

func (m *Metrics) SetReassessQueueDepth(n int) {
	if m != nil {
		m.ReassessQueueDepth.Set(float64(n))
	}
}
