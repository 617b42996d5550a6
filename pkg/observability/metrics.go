// Package observability exposes the process metrics. A dedicated
// registry keeps the metrics surface explicit and testable.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the session gateway's counters.
type Metrics struct {
	registry *prometheus.Registry

	signIns          *prometheus.CounterVec
	profileFetches   *prometheus.CounterVec
	fetchesCoalesced prometheus.Counter
	profileWrites    *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		signIns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifecal",
			Name:      "sign_ins_total",
			Help:      "Sign-in attempts by result.",
		}, []string{"result"}),
		profileFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifecal",
			Name:      "profile_fetches_total",
			Help:      "Profile fetches by result, including discarded stale responses.",
		}, []string{"result"}),
		fetchesCoalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lifecal",
			Name:      "profile_fetches_coalesced_total",
			Help:      "Refresh calls that joined an already in-flight fetch.",
		}),
		profileWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifecal",
			Name:      "profile_writes_total",
			Help:      "Profile and entry writes by operation and result.",
		}, []string{"op", "result"}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifecal",
			Name:      "session_state_transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"state"}),
	}
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SignInResult records one sign-in attempt.
func (m *Metrics) SignInResult(result string) {
	m.signIns.WithLabelValues(result).Inc()
}

// FetchResult records one settled profile fetch.
func (m *Metrics) FetchResult(result string) {
	m.profileFetches.WithLabelValues(result).Inc()
}

// FetchCoalesced records a refresh call that reused an in-flight fetch.
func (m *Metrics) FetchCoalesced() {
	m.fetchesCoalesced.Inc()
}

// WriteResult records one profile or entry write.
func (m *Metrics) WriteResult(op, result string) {
	m.profileWrites.WithLabelValues(op, result).Inc()
}

// StateTransition records one session state change.
func (m *Metrics) StateTransition(state string) {
	m.stateTransitions.WithLabelValues(state).Inc()
}
