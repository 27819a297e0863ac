package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// CompensatingActionKind names the family of undo operation a descriptor
// performs. params is opaque to the Rollback Manager; executors are
// registered per kind.
type CompensatingActionKind string

const (
	ActionDeleteFile   CompensatingActionKind = "DELETE_FILE"
	ActionRestoreFile  CompensatingActionKind = "RESTORE_FILE"
	ActionRevokeGrant  CompensatingActionKind = "REVOKE_GRANT"
	ActionRevertRecord CompensatingActionKind = "REVERT_RECORD"
	ActionCustom       CompensatingActionKind = "CUSTOM"
)

// CompensatingAction is one descriptor in a Checkpoint's ordered list.
// Descriptors are appended, never mutated; appending is idempotent on
// the (task_id, descriptor_hash) key via Hash().
type CompensatingAction struct {
	Kind   CompensatingActionKind
	Params map[string]any
}

// Hash returns the descriptor_hash used for idempotent appends. It is a
// deterministic digest of kind plus a stable rendering of params.
func (a CompensatingAction) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s", a.Kind)
	for _, k := range sortedKeys(a.Params) {
		fmt.Fprintf(h, "|%s=%v", k, a.Params[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// insertion-order independence matters more than speed here; a small
	// insertion sort avoids pulling in "sort" for a handful of keys.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// CheckpointState is the Checkpoint's lifecycle state.
type CheckpointState string

const (
	CheckpointActive   CheckpointState = "ACTIVE"
	CheckpointReplayed CheckpointState = "REPLAYED"
	CheckpointRetired  CheckpointState = "RETIRED"
	CheckpointStuck    CheckpointState = "STUCK"
)

// Checkpoint is the snapshot of a task's compensating-action list used
// for rollback. At most one active checkpoint exists per task.
type Checkpoint struct {
	ID         CheckpointId
	TaskID     TaskId
	Actions    []CompensatingAction
	seenHashes map[string]bool
	StateDigest string
	State      CheckpointState
	CreatedAt  time.Time
}

// NewCheckpoint creates an ACTIVE checkpoint for a task.
func NewCheckpoint(taskID TaskId, stateDigest string, now time.Time) *Checkpoint {
	return &Checkpoint{
		ID:          NewCheckpointId(),
		TaskID:      taskID,
		Actions:     nil,
		seenHashes:  make(map[string]bool),
		StateDigest: stateDigest,
		State:       CheckpointActive,
		CreatedAt:   now,
	}
}

// Append adds a descriptor if its hash has not already been recorded,
// preserving idempotency across retried calls. Returns true if the
// descriptor was newly appended.
func (c *Checkpoint) Append(a CompensatingAction) bool {
	if c.seenHashes == nil {
		c.seenHashes = make(map[string]bool)
	}
	h := a.Hash()
	if c.seenHashes[h] {
		return false
	}
	c.seenHashes[h] = true
	c.Actions = append(c.Actions, a)
	return true
}

// RebuildSeenHashes repopulates the idempotency set from Actions after a
// Checkpoint has been loaded from storage (the set itself is not
// persisted).
func (c *Checkpoint) RebuildSeenHashes() {
	c.seenHashes = make(map[string]bool, len(c.Actions))
	for _, a := range c.Actions {
		c.seenHashes[a.Hash()] = true
	}
}

// ReverseActions returns the descriptors in strict LIFO order, i.e. the
// reverse of insertion order, for rollback replay.
func (c *Checkpoint) ReverseActions() []CompensatingAction {
	out := make([]CompensatingAction, len(c.Actions))
	for i, a := range c.Actions {
		out[len(c.Actions)-1-i] = a
	}
	return out
}
