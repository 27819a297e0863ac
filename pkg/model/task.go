package model

import "time"

// TaskStatus is the terminal classification of a Task. Status only
// advances; once it reaches COMPLETED or FAILED no further verification
// requests are accepted for that task id.
type TaskStatus string

const (
	TaskOpen      TaskStatus = "OPEN"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskPartial   TaskStatus = "PARTIAL"
	TaskFailed    TaskStatus = "FAILED"
	TaskError     TaskStatus = "ERROR"
)

// IsTerminal reports whether no further verification should be accepted.
// ERROR is deliberately excluded: an ERROR verdict never closes the task,
// the request may be retried.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is a unit of claimed work owned by exactly one Agent. It
// exclusively owns its ToolCalls, EvidenceItems, and Checkpoint.
type Task struct {
	ID                TaskId
	AgentID           AgentId
	Description       string
	RequirementTags   []string
	CreatedAt         time.Time
	DeclaredCompleteAt *time.Time
	Status            TaskStatus
}
