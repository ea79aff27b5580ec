package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveEstimate_OK(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveEstimate("http", OutcomeOK, "moderate", -5)
	m.ObserveEstimate("http", OutcomeOK, "moderate", 0)
	m.ObserveEstimate("ws", OutcomeOK, "active", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EstimatesTotal.WithLabelValues("http", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EstimatesTotal.WithLabelValues("ws", OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActivityTotal.WithLabelValues("moderate")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.AgeDelta))
}

func TestObserveEstimate_InvalidSkipsActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveEstimate("grpc", OutcomeInvalidInput, "sedentary", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EstimatesTotal.WithLabelValues("grpc", OutcomeInvalidInput)))
	assert.Equal(t, 0, testutil.CollectAndCount(m.ActivityTotal))
}

func TestGaugesAndReloads(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetWSClients(3)
	m.IncConfigReload(true)
	m.IncConfigReload(false)
	m.IncConfigReload(false)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.WSClients))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigReloads.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConfigReloads.WithLabelValues("error")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEstimate("http", OutcomeOK, "light", -2)
		m.SetWSClients(1)
		m.IncConfigReload(true)
	})
}

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveEstimate("http", OutcomeOK, "light", -2)
	m.SetWSClients(0)
	m.IncConfigReload(true)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"metage_estimates_total",
		"metage_estimate_activity_total",
		"metage_age_delta_years",
		"metage_ws_clients",
		"metage_config_reloads_total",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}
