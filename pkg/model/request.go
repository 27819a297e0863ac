package model

import "time"

// AgentRecord is register_agent's wire-facing return shape: the Agent
// plus nothing else, named separately so adapters can evolve the
// registration response independently of the stored Agent entity.
type AgentRecord struct {
	Agent Agent
}

// CompletionRequest is submit_completion's input. All fields are
// required except AdditionalContext.
type CompletionRequest struct {
	TaskID             TaskId
	AgentID            AgentId
	TaskDescription    string
	CompletionEvidence any
	CompletionTS       time.Time
	AdditionalContext  map[string]any
}
