package model

import "time"

// AgentState is the lifecycle state of a registered Agent.
type AgentState string

const (
	AgentActive    AgentState = "ACTIVE"
	AgentInactive  AgentState = "INACTIVE"
	AgentSuspended AgentState = "SUSPENDED"
)

// Agent is a long-lived external worker identified by AgentId. At most
// one record exists per id; it is created on first registration and its
// state transitions only via the Behavior Monitor or an explicit admin
// action — never from inside the Verifier or Collector.
type Agent struct {
	ID           AgentId
	DisplayName  string
	Capabilities []string
	RegisteredAt time.Time
	State        AgentState
	LastHeartbeat time.Time
}

// HasCapability reports whether the agent declared the given capability
// tag, used by the Tool-Call Validator's Authorization dimension.
func (a Agent) HasCapability(tag string) bool {
	for _, c := range a.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}
