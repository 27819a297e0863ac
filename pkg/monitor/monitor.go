package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/store"
)

// AnomalyKind distinguishes the two Bus event kinds the Monitor can
// raise.
type AnomalyKind string

const (
	AnomalyDetected AnomalyKind = string(model.EventAnomalyDetected)
	AgentSuspended  AnomalyKind = string(model.EventAgentSuspended)
)

// Anomaly is the Monitor's output alongside the updated
// ReliabilityMetric; callers (pkg/ares) are responsible for publishing
// it to the Bus, keeping the Monitor itself bus-agnostic. Its
// dependencies are taken explicitly as constructor arguments rather
// than looked up globally.
type Anomaly struct {
	Kind   AnomalyKind
	Reason string
}

// Monitor is C7, the Behavior Monitor. Only the Monitor writes the
// Ledger; it never mutates Agent state except to signal suspension via
// the returned Anomaly — the caller performs the actual state
// transition on the Agent registry.
type Monitor struct {
	mu sync.Mutex

	ledger store.LedgerStore
	cfg    *config.Config

	windows            map[model.AgentId]*window
	lowScoreStreak     map[model.AgentId]int
	securityFailStreak map[model.AgentId]int
}

func New(ledger store.LedgerStore, cfg *config.Config) *Monitor {
	return &Monitor{
		ledger:             ledger,
		cfg:                cfg,
		windows:            make(map[model.AgentId]*window),
		lowScoreStreak:     make(map[model.AgentId]int),
		securityFailStreak: make(map[model.AgentId]int),
	}
}

// Observe folds one VerificationResult into agentID's rolling window,
// recomputes and persists its ReliabilityMetric, and returns any
// anomalies raised.
func (m *Monitor) Observe(ctx context.Context, agentID model.AgentId, res model.VerificationResult, executionTimeMs float64, securityHardFail bool, now time.Time) (model.ReliabilityMetric, []Anomaly, error) {
	m.mu.Lock()
	w, ok := m.windows[agentID]
	if !ok {
		w = newWindow(m.cfg.BehaviorWindowResults, m.cfg.BehaviorWindowDays)
		m.windows[agentID] = w
	}

	prior, _ := w.splitHalves()
	priorRate := successRateOf(prior)

	w.Add(entry{
		overall:         res.OverallScore,
		completed:       res.Verdict == model.VerdictCompleted,
		executionTimeMs: executionTimeMs,
		at:              now,
	})

	var anomalies []Anomaly

	_, recent := w.splitHalves()
	recentRate := successRateOf(recent)
	if len(prior) > 0 && priorRate-recentRate > 0.20 {
		anomalies = append(anomalies, Anomaly{Kind: AnomalyDetected, Reason: "success_rate dropped more than 20 points"})
	}

	if res.OverallScore < 0.5 {
		m.lowScoreStreak[agentID]++
	} else {
		m.lowScoreStreak[agentID] = 0
	}
	if m.lowScoreStreak[agentID] >= 3 {
		anomalies = append(anomalies, Anomaly{Kind: AnomalyDetected, Reason: "three consecutive results with overall < 0.5"})
	}

	if securityHardFail {
		m.securityFailStreak[agentID]++
		anomalies = append(anomalies, Anomaly{Kind: AnomalyDetected, Reason: "security strategy hard fail"})
		if m.securityFailStreak[agentID] >= 2 {
			anomalies = append(anomalies, Anomaly{Kind: AgentSuspended, Reason: "two consecutive SECURITY hard fails"})
		}
	} else {
		m.securityFailStreak[agentID] = 0
	}

	metric := model.ReliabilityMetric{
		AgentID:      agentID,
		WindowSize:   w.Len(),
		SuccessRate:  w.SuccessRate(),
		AvgQuality:   w.AvgQuality(),
		AvgLatencyMs: w.AvgLatencyMs(),
		AnomalyCount: len(anomalies),
		LastUpdated:  now,
	}
	if existing, err := m.ledger.GetReliability(ctx, agentID); err == nil {
		metric.AnomalyCount += existing.AnomalyCount
	}
	m.mu.Unlock()

	if err := m.ledger.PutReliability(ctx, metric); err != nil {
		return model.ReliabilityMetric{}, nil, err
	}
	return metric, anomalies, nil
}

// GetReliability returns a read-only snapshot; readers never observe a
// metric mid-update.
func (m *Monitor) GetReliability(ctx context.Context, agentID model.AgentId) (model.ReliabilityMetric, error) {
	return m.ledger.GetReliability(ctx, agentID)
}
