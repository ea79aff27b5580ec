package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for EstimatesTotal.
const (
	OutcomeOK           = "ok"
	OutcomeInvalidInput = "invalid_input"
)

// Metrics provides observability for the estimator and its transports.
type Metrics struct {
	// Estimates by transport (http, ws, grpc) and outcome.
	EstimatesTotal *prometheus.CounterVec

	// Successful estimates by submitted activity level.
	ActivityTotal *prometheus.CounterVec

	// Distribution of the age delta chosen for successful estimates.
	AgeDelta prometheus.Histogram

	// Currently connected WebSocket clients.
	WSClients prometheus.Gauge

	// Config reload attempts by result (ok, error).
	ConfigReloads *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EstimatesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "metage_estimates_total",
			Help: "Total metabolic age estimates by transport and outcome",
		}, []string{"transport", "outcome"}),

		ActivityTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "metage_estimate_activity_total",
			Help: "Successful estimates by submitted activity level",
		}, []string{"activity"}),

		AgeDelta: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "metage_age_delta_years",
			Help:    "Age delta applied by successful estimates",
			Buckets: []float64{-10, -5, -2, 0, 3, 7},
		}),

		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "metage_ws_clients",
			Help: "Currently connected live estimate clients",
		}),

		ConfigReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "metage_config_reloads_total",
			Help: "Config file reload attempts by result",
		}, []string{"result"}),
	}
}

// ObserveEstimate records one estimate attempt. activity and delta are only
// recorded when outcome is OutcomeOK.
func (m *Metrics) ObserveEstimate(transport, outcome, activity string, delta int) {
	if m == nil {
		return
	}
	m.EstimatesTotal.WithLabelValues(transport, outcome).Inc()
	if outcome != OutcomeOK {
		return
	}
	m.ActivityTotal.WithLabelValues(activity).Inc()
	m.AgeDelta.Observe(float64(delta))
}

// SetWSClients sets the connected client gauge.
func (m *Metrics) SetWSClients(n int) {
	if m != nil {
		m.WSClients.Set(float64(n))
	}
}

// IncConfigReload records a reload attempt; ok selects the result label.
func (m *Metrics) IncConfigReload(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ConfigReloads.WithLabelValues(result).Inc()
}
