// Package store defines ARES's persistence interfaces — Evidence,
// Verification, Checkpoint, Ledger, and Outbox — plus a multi-dialect
// SQL implementation and an in-memory implementation for tests.
package store

import (
	"context"
	"time"

	"github.com/neikan-bsn/ares/pkg/model"
)

// EvidenceStore is C1's append-only evidence ledger (the "evidence"
// logical table).
type EvidenceStore interface {
	AppendEvidence(ctx context.Context, items []model.EvidenceItem) error
	GetEvidence(ctx context.Context, taskID model.TaskId) ([]model.EvidenceItem, error)
	Summarize(ctx context.Context, taskID model.TaskId) (model.EvidenceSummary, error)
}

// VerificationStore is C1's verification_results table. PutIfAbsent
// implements the terminality invariant: it must not overwrite an
// existing COMPLETED or FAILED row for the same task id.
type VerificationStore interface {
	// PutIfAbsent writes res unless a terminal (COMPLETED|FAILED) result
	// already exists for res.TaskID, in which case it returns the
	// existing result and wrote=false.
	PutIfAbsent(ctx context.Context, res model.VerificationResult) (written model.VerificationResult, wrote bool, err error)
	GetVerification(ctx context.Context, taskID model.TaskId) (*model.VerificationResult, error)
}

// CheckpointStore is C3, keyed by task id (unique while active).
type CheckpointStore interface {
	// GetOrCreate returns the active checkpoint for taskID, creating one
	// if none exists yet.
	GetOrCreate(ctx context.Context, taskID model.TaskId, stateDigest string) (*model.Checkpoint, error)
	Get(ctx context.Context, taskID model.TaskId) (*model.Checkpoint, error)
	// Save persists the checkpoint's current Actions and State.
	Save(ctx context.Context, cp *model.Checkpoint) error
}

// LedgerStore is C2's derived reliability_metrics table. Only the
// Behavior Monitor writes it; all other callers read a snapshot.
type LedgerStore interface {
	GetReliability(ctx context.Context, agentID model.AgentId) (model.ReliabilityMetric, error)
	PutReliability(ctx context.Context, m model.ReliabilityMetric) error
}

// OutboxStore is the Coordination Bus's durable spillover table plus the
// sequence high-water mark gate.
type OutboxStore interface {
	AppendOutbox(ctx context.Context, events []model.BusEvent) error
	// ReadFrom returns outbox events with seq > fromSeq, in seq order,
	// up to limit events.
	ReadFrom(ctx context.Context, fromSeq uint64, limit int) ([]model.BusEvent, error)
	// Depth returns the number of outbox rows not yet acked by every
	// known subscriber (approximated here as total row count, the
	// Bus tracks per-subscriber offsets separately).
	Depth(ctx context.Context) (int64, error)
	// HighWaterMark returns the highest seq recorded by
	// AdvanceHighWaterMark (0 if none), so restarts never reissue a seq
	// already used.
	HighWaterMark(ctx context.Context) (uint64, error)
	AdvanceHighWaterMark(ctx context.Context, seq uint64) error
}

// SchemaStore gates compatibility: readers refuse mismatched majors.
type SchemaStore interface {
	SchemaVersion(ctx context.Context) (int, error)
}

// AgentStore persists the Agent registry backing register_agent and the
// Validator's/Monitor's capability and state lookups.
type AgentStore interface {
	PutAgent(ctx context.Context, a model.Agent) error
	GetAgent(ctx context.Context, id model.AgentId) (*model.Agent, error)
	SetAgentState(ctx context.Context, id model.AgentId, state model.AgentState, at time.Time) error
}

// TaskStore persists Task lifecycle state, gating terminality at the
// task level the way VerificationStore gates it at the result level.
type TaskStore interface {
	PutTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id model.TaskId) (*model.Task, error)
	SetTaskStatus(ctx context.Context, id model.TaskId, status model.TaskStatus) error
}

// Store bundles every persistence interface; both the SQL and in-memory
// implementations satisfy it in full.
type Store interface {
	EvidenceStore
	VerificationStore
	CheckpointStore
	LedgerStore
	OutboxStore
	SchemaStore
	AgentStore
	TaskStore
}

// CurrentSchemaMajor is the major version this build of ARES expects.
const CurrentSchemaMajor = 1
