// Package metrics holds the Prometheus collectors for the core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	voteOutcomes  *prometheus.CounterVec
	observed      *prometheus.CounterVec
	lookupFetches *prometheus.CounterVec
	remoteCalls   *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		voteOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cercia",
			Name:      "vote_outcomes_total",
			Help:      "Vote actions by content type and terminal outcome.",
		}, []string{"content_type", "outcome"}),
		observed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cercia",
			Name:      "observed_responses_total",
			Help:      "Host page API responses seen by the interceptor, by classification.",
		}, []string{"kind"}),
		lookupFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cercia",
			Name:      "lookup_fetches_total",
			Help:      "Comment lookup map fetches by result.",
		}, []string{"result"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cercia",
			Name:      "remote_calls_total",
			Help:      "Moltbook API calls by endpoint and success.",
		}, []string{"endpoint", "success"}),
	}
	if reg != nil {
		reg.MustRegister(m.voteOutcomes, m.observed, m.lookupFetches, m.remoteCalls)
	}
	return m
}

func (m *Metrics) VoteOutcome(contentType, outcome string) {
	if m == nil {
		return
	}
	m.voteOutcomes.WithLabelValues(contentType, outcome).Inc()
}

func (m *Metrics) Observed(kind string) {
	if m == nil {
		return
	}
	m.observed.WithLabelValues(kind).Inc()
}

func (m *Metrics) LookupFetch(result string) {
	if m == nil {
		return
	}
	m.lookupFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) RemoteCall(endpoint string, success bool) {
	if m == nil {
		return
	}
	s := "false"
	if success {
		s = "true"
	}
	m.remoteCalls.WithLabelValues(endpoint, s).Inc()
}
