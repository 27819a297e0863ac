// Package model defines the ARES data model: entities, verdicts, bus
// events, and the core error taxonomy shared by every other package.
package model

import "github.com/google/uuid"

// AgentId, TaskId, ToolCallId, EvidenceId, VerificationId, and
// CheckpointId are opaque string identifiers. They are immutable once
// assigned; none of them encode meaning beyond uniqueness.
type (
	AgentId        string
	TaskId         string
	ToolCallId     string
	EvidenceId     string
	VerificationId string
	CheckpointId   string
)

// NewEvidenceId, NewVerificationId, NewCheckpointId, and NewToolCallId
// each mint a fresh random identifier; agent and task ids have no minter.
// Callers that receive an externally supplied id (e.g. an adapter
// forwarding an agent-declared task_id) should not use these; they are
// only for entities ARES itself originates.
func NewEvidenceId() EvidenceId         { return EvidenceId(uuid.NewString()) }
func NewVerificationId() VerificationId { return VerificationId(uuid.NewString()) }
func NewCheckpointId() CheckpointId     { return CheckpointId(uuid.NewString()) }
func NewToolCallId() ToolCallId         { return ToolCallId(uuid.NewString()) }
