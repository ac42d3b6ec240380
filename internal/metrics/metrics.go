package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for dashboard updates and the HTTP surface.
type Metrics struct {
	// Rule evaluations by rule and outcome
	Updates *prometheus.CounterVec

	// Rule evaluation latency by rule
	UpdateLatency *prometheus.HistogramVec

	// HTTP requests by route pattern and status code
	Requests *prometheus.CounterVec
}

// New creates a Metrics instance registered with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Updates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gapdash_updates_total",
			Help: "Total rule evaluations by rule and outcome",
		}, []string{"rule", "outcome"}), // outcome: "ok", "error"

		UpdateLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gapdash_update_duration_seconds",
			Help:    "Duration of rule evaluations",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"rule"}),

		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gapdash_http_requests_total",
			Help: "Total HTTP requests by route and status",
		}, []string{"route", "status"}),
	}
}

// ObserveRule records one rule evaluation.
func (m *Metrics) ObserveRule(rule string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Updates.WithLabelValues(rule, outcome).Inc()
	m.UpdateLatency.WithLabelValues(rule).Observe(d.Seconds())
}

// IncrementRequests counts a served HTTP request.
func (m *Metrics) IncrementRequests(route string, status int) {
	if m != nil {
		m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	}
}
