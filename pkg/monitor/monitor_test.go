package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/store"
)

func resultWith(verdict model.Verdict, score float64) model.VerificationResult {
	return model.VerificationResult{
		ID: model.NewVerificationId(), TaskID: model.TaskId("task-1"), AgentID: "agent-1",
		Verdict: verdict, OverallScore: score, RecordedAt: time.Now().UTC(),
	}
}

func TestObserveUpdatesReliabilityMetricAndPersistsIt(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := config.Default()
	m := New(st, cfg)

	st.PutAgent(context.Background(), model.Agent{ID: "agent-1"})

	metric, anomalies, err := m.Observe(context.Background(), "agent-1", resultWith(model.VerdictCompleted, 0.9), 100, false, time.Now().UTC())
	require.NoError(t, err)
	require.Empty(t, anomalies)
	require.Equal(t, 1, metric.WindowSize)
	require.Equal(t, 1.0, metric.SuccessRate)

	persisted, err := m.GetReliability(context.Background(), "agent-1")
	require.NoError(t, err)
	require.Equal(t, metric.SuccessRate, persisted.SuccessRate)
}

func TestObserveThreeConsecutiveLowScoresRaisesAnomaly(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := config.Default()
	m := New(st, cfg)

	var anomalies []Anomaly
	for i := 0; i < 3; i++ {
		_, a, err := m.Observe(context.Background(), "agent-1", resultWith(model.VerdictFailed, 0.2), 100, false, time.Now().UTC())
		require.NoError(t, err)
		anomalies = a
	}

	require.NotEmpty(t, anomalies)
	found := false
	for _, a := range anomalies {
		if a.Reason == "three consecutive results with overall < 0.5" {
			found = true
		}
	}
	require.True(t, found)
}

func TestObserveLowScoreStreakResetsOnGoodResult(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := config.Default()
	m := New(st, cfg)

	_, _, err := m.Observe(context.Background(), "agent-1", resultWith(model.VerdictFailed, 0.2), 100, false, time.Now().UTC())
	require.NoError(t, err)
	_, _, err = m.Observe(context.Background(), "agent-1", resultWith(model.VerdictFailed, 0.2), 100, false, time.Now().UTC())
	require.NoError(t, err)
	_, _, err = m.Observe(context.Background(), "agent-1", resultWith(model.VerdictCompleted, 0.9), 100, false, time.Now().UTC())
	require.NoError(t, err)

	_, anomalies, err := m.Observe(context.Background(), "agent-1", resultWith(model.VerdictFailed, 0.2), 100, false, time.Now().UTC())
	require.NoError(t, err)
	for _, a := range anomalies {
		require.NotEqual(t, "three consecutive results with overall < 0.5", a.Reason)
	}
}

func TestObserveTwoConsecutiveSecurityHardFailsSuspendsAgent(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := config.Default()
	m := New(st, cfg)

	_, first, err := m.Observe(context.Background(), "agent-1", resultWith(model.VerdictFailed, 0.1), 100, true, time.Now().UTC())
	require.NoError(t, err)
	for _, a := range first {
		require.NotEqual(t, AgentSuspended, a.Kind)
	}

	_, second, err := m.Observe(context.Background(), "agent-1", resultWith(model.VerdictFailed, 0.1), 100, true, time.Now().UTC())
	require.NoError(t, err)

	var suspended bool
	for _, a := range second {
		if a.Kind == AgentSuspended {
			suspended = true
		}
	}
	require.True(t, suspended)
}

func TestObserveSecurityFailStreakResetsWithoutHardFail(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := config.Default()
	m := New(st, cfg)

	_, _, err := m.Observe(context.Background(), "agent-1", resultWith(model.VerdictFailed, 0.1), 100, true, time.Now().UTC())
	require.NoError(t, err)
	_, _, err = m.Observe(context.Background(), "agent-1", resultWith(model.VerdictCompleted, 0.9), 100, false, time.Now().UTC())
	require.NoError(t, err)

	_, anomalies, err := m.Observe(context.Background(), "agent-1", resultWith(model.VerdictFailed, 0.1), 100, true, time.Now().UTC())
	require.NoError(t, err)
	for _, a := range anomalies {
		require.NotEqual(t, AgentSuspended, a.Kind)
	}
}

func TestObserveSuccessRateDropTriggersAnomaly(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := config.Default()
	m := New(st, cfg)

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		_, _, err := m.Observe(context.Background(), "agent-1", resultWith(model.VerdictCompleted, 0.9), 100, false, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	var anomalies []Anomaly
	for i := 0; i < 4; i++ {
		_, a, err := m.Observe(context.Background(), "agent-1", resultWith(model.VerdictFailed, 0.1), 100, false, base.Add(time.Duration(4+i)*time.Minute))
		require.NoError(t, err)
		anomalies = append(anomalies, a...)
	}

	found := false
	for _, a := range anomalies {
		if a.Reason == "success_rate dropped more than 20 points" {
			found = true
		}
	}
	require.True(t, found)
}

func TestGetReliabilityForUnknownAgentReturnsZeroValueMetric(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := config.Default()
	m := New(st, cfg)

	metric, err := m.GetReliability(context.Background(), "ghost")
	require.NoError(t, err)
	require.Equal(t, model.AgentId("ghost"), metric.AgentID)
	require.Zero(t, metric.WindowSize)
}

func TestWindowEvictsEntriesOlderThanMaxAge(t *testing.T) {
	w := newWindow(100, 7)
	old := time.Now().UTC().Add(-10 * 24 * time.Hour)
	w.Add(entry{overall: 0.9, completed: true, at: old})
	w.Add(entry{overall: 0.9, completed: true, at: time.Now().UTC()})
	require.Equal(t, 1, w.Len())
}

func TestWindowEvictsEntriesBeyondMaxResults(t *testing.T) {
	w := newWindow(3, 7)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		w.Add(entry{overall: 0.9, completed: true, at: now})
	}
	require.Equal(t, 3, w.Len())
}
