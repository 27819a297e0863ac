package model

import "time"

// ReliabilityMetric is derived state owned exclusively by the Behavior
// Monitor (C7); single-writer rule applies, all other readers take a
// snapshot.
type ReliabilityMetric struct {
	AgentID      AgentId
	WindowSize   int
	SuccessRate  float64
	AvgQuality   float64
	AvgLatencyMs float64
	AnomalyCount int
	LastUpdated  time.Time
}
