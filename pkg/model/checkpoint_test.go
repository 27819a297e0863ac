package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompensatingActionHashStableAcrossParamOrder(t *testing.T) {
	a := CompensatingAction{Kind: ActionDeleteFile, Params: map[string]any{"path": "a.txt", "size": 10}}
	b := CompensatingAction{Kind: ActionDeleteFile, Params: map[string]any{"size": 10, "path": "a.txt"}}
	require.Equal(t, a.Hash(), b.Hash())
}

func TestCompensatingActionHashDiffersOnKind(t *testing.T) {
	a := CompensatingAction{Kind: ActionDeleteFile, Params: map[string]any{"path": "a.txt"}}
	b := CompensatingAction{Kind: ActionRestoreFile, Params: map[string]any{"path": "a.txt"}}
	require.NotEqual(t, a.Hash(), b.Hash())
}

func TestCheckpointAppendIsIdempotent(t *testing.T) {
	cp := NewCheckpoint(TaskId("t1"), "digest", time.Now())
	action := CompensatingAction{Kind: ActionDeleteFile, Params: map[string]any{"path": "a.txt"}}

	require.True(t, cp.Append(action))
	require.False(t, cp.Append(action))
	require.Len(t, cp.Actions, 1)
}

func TestCheckpointReverseActionsIsLIFO(t *testing.T) {
	cp := NewCheckpoint(TaskId("t1"), "digest", time.Now())
	cp.Append(CompensatingAction{Kind: ActionDeleteFile, Params: map[string]any{"path": "1"}})
	cp.Append(CompensatingAction{Kind: ActionDeleteFile, Params: map[string]any{"path": "2"}})
	cp.Append(CompensatingAction{Kind: ActionDeleteFile, Params: map[string]any{"path": "3"}})

	reversed := cp.ReverseActions()
	require.Len(t, reversed, 3)
	require.Equal(t, "3", reversed[0].Params["path"])
	require.Equal(t, "2", reversed[1].Params["path"])
	require.Equal(t, "1", reversed[2].Params["path"])
}

func TestCheckpointRebuildSeenHashesRestoresIdempotency(t *testing.T) {
	cp := NewCheckpoint(TaskId("t1"), "digest", time.Now())
	action := CompensatingAction{Kind: ActionDeleteFile, Params: map[string]any{"path": "a.txt"}}
	cp.Append(action)

	// simulate a fresh load from storage, where seenHashes is not persisted
	loaded := &Checkpoint{ID: cp.ID, TaskID: cp.TaskID, Actions: cp.Actions}
	loaded.RebuildSeenHashes()

	require.False(t, loaded.Append(action))
	require.Len(t, loaded.Actions, 1)
}
