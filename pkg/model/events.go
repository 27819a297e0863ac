package model

import "time"

// EventKind enumerates the Coordination Bus's exhaustive event kinds.
type EventKind string

const (
	EventToolCallRecorded    EventKind = "TOOL_CALL_RECORDED"
	EventEvidenceCollected   EventKind = "EVIDENCE_COLLECTED"
	EventVerificationStarted EventKind = "VERIFICATION_STARTED"
	EventVerificationDone    EventKind = "VERIFICATION_COMPLETED"
	EventAgentSuspended      EventKind = "AGENT_SUSPENDED"
	EventRollbackStarted     EventKind = "ROLLBACK_STARTED"
	EventRollbackCompleted   EventKind = "ROLLBACK_COMPLETED"
	EventRollbackEscalation  EventKind = "ROLLBACK_ESCALATION"
	EventAnomalyDetected     EventKind = "ANOMALY_DETECTED"
)

// BusEvent is the Bus's envelope: {seq, kind, task_id, agent_id, ts, payload}.
type BusEvent struct {
	Seq     uint64
	Kind    EventKind
	TaskID  TaskId
	AgentID AgentId
	TS      time.Time
	Payload map[string]any
}
