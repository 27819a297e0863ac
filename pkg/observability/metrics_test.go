package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMetricsDisabledReturnsNil(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestNewMetricsEnabledRecordsWithoutPanicking(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordVerdict("COMPLETED", 0.42)
	m.RecordValidateReject("INVALID")
	m.RecordAnomaly("three consecutive results with overall < 0.5")
	m.RecordSuspension("two consecutive SECURITY hard fails")
	m.RecordRollback("STUCK", true)
	m.SetOutboxDepth(12)
	m.SetBusOverloaded(true)
	m.RecordCollectError()
}

func TestNilMetricsMethodsAreNoops(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordVerdict("COMPLETED", 0.1)
		m.SetOutboxDepth(1)
		m.RecordCollectError()
	})
}

func TestManagerDisabledByDefault(t *testing.T) {
	mgr, err := NewManager(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, mgr.Tracer())
	require.Nil(t, mgr.Metrics())
	require.NoError(t, mgr.Shutdown(context.Background()))
}
