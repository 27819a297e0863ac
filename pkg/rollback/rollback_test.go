package rollback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/store"
)

func fastRetryCfg() *config.Config {
	cfg := config.Default()
	cfg.RollbackRetryMax = 2
	cfg.RollbackBackoffBaseMs = 1
	cfg.RollbackBackoffCapMs = 2
	return cfg
}

func TestTouchCreatesCheckpointOnFirstObservation(t *testing.T) {
	st := store.NewMemoryStore()
	reg := NewRegistry()
	m := New(st, reg, fastRetryCfg(), nil)

	cp, err := m.Touch(context.Background(), "task-1", "digest")
	require.NoError(t, err)
	require.Equal(t, model.CheckpointActive, cp.State)

	again, err := m.Touch(context.Background(), "task-1", "digest-2")
	require.NoError(t, err)
	require.Equal(t, cp.ID, again.ID)
}

func TestRecordActionIsIdempotentOnDescriptorHash(t *testing.T) {
	st := store.NewMemoryStore()
	reg := NewRegistry()
	m := New(st, reg, fastRetryCfg(), nil)

	action := model.CompensatingAction{Kind: model.ActionDeleteFile, Params: map[string]any{"path": "a.txt"}}
	require.NoError(t, m.RecordAction(context.Background(), "task-1", action))
	require.NoError(t, m.RecordAction(context.Background(), "task-1", action))

	cp, err := st.Get(context.Background(), "task-1")
	require.NoError(t, err)
	require.Len(t, cp.Actions, 1)
}

func TestRetireMarksCheckpointRetiredAndNoopsOnMissing(t *testing.T) {
	st := store.NewMemoryStore()
	reg := NewRegistry()
	m := New(st, reg, fastRetryCfg(), nil)

	require.NoError(t, m.Retire(context.Background(), "task-missing"))

	_, err := m.Touch(context.Background(), "task-1", "digest")
	require.NoError(t, err)
	require.NoError(t, m.Retire(context.Background(), "task-1"))

	cp, err := st.Get(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, model.CheckpointRetired, cp.State)
}

func TestRollbackReplaysActionsInLIFOOrder(t *testing.T) {
	st := store.NewMemoryStore()
	reg := NewRegistry()

	var order []string
	reg.Register(model.ActionDeleteFile, ExecutorFunc(func(ctx context.Context, action model.CompensatingAction) error {
		order = append(order, action.Params["path"].(string))
		return nil
	}))

	m := New(st, reg, fastRetryCfg(), nil)
	require.NoError(t, m.RecordAction(context.Background(), "task-1", model.CompensatingAction{Kind: model.ActionDeleteFile, Params: map[string]any{"path": "1"}}))
	require.NoError(t, m.RecordAction(context.Background(), "task-1", model.CompensatingAction{Kind: model.ActionDeleteFile, Params: map[string]any{"path": "2"}}))
	require.NoError(t, m.RecordAction(context.Background(), "task-1", model.CompensatingAction{Kind: model.ActionDeleteFile, Params: map[string]any{"path": "3"}}))

	outcome, err := m.Rollback(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, model.CheckpointReplayed, outcome.State)
	require.False(t, outcome.Escalated)
	require.Equal(t, []string{"3", "2", "1"}, order)
}

func TestRollbackOnMissingCheckpointIsNoopRetired(t *testing.T) {
	st := store.NewMemoryStore()
	reg := NewRegistry()
	m := New(st, reg, fastRetryCfg(), nil)

	outcome, err := m.Rollback(context.Background(), "task-never-touched")
	require.NoError(t, err)
	require.Equal(t, model.CheckpointRetired, outcome.State)
}

func TestRollbackOnAlreadyRetiredCheckpointIsNoop(t *testing.T) {
	st := store.NewMemoryStore()
	reg := NewRegistry()
	m := New(st, reg, fastRetryCfg(), nil)

	_, err := m.Touch(context.Background(), "task-1", "digest")
	require.NoError(t, err)
	require.NoError(t, m.Retire(context.Background(), "task-1"))

	outcome, err := m.Rollback(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, model.CheckpointRetired, outcome.State)
}

func TestRollbackExhaustingRetryBudgetEscalatesAndMarksStuck(t *testing.T) {
	st := store.NewMemoryStore()
	reg := NewRegistry()

	var attempts int32
	reg.Register(model.ActionDeleteFile, ExecutorFunc(func(ctx context.Context, action model.CompensatingAction) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("external system unavailable")
	}))

	cfg := fastRetryCfg()
	cfg.RollbackRetryMax = 2 // 3 total attempts
	m := New(st, reg, cfg, nil)

	require.NoError(t, m.RecordAction(context.Background(), "task-1", model.CompensatingAction{Kind: model.ActionDeleteFile, Params: map[string]any{"path": "a.txt"}}))

	outcome, err := m.Rollback(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, model.CheckpointStuck, outcome.State)
	require.True(t, outcome.Escalated)
	require.EqualValues(t, 3, atomic.LoadInt32(&attempts))

	cp, err := st.Get(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, model.CheckpointStuck, cp.State)
}

func TestRollbackWithUnregisteredExecutorKindFails(t *testing.T) {
	st := store.NewMemoryStore()
	reg := NewRegistry()
	m := New(st, reg, fastRetryCfg(), nil)

	require.NoError(t, m.RecordAction(context.Background(), "task-1", model.CompensatingAction{Kind: model.ActionRestoreFile, Params: map[string]any{"path": "a.txt"}}))

	outcome, err := m.Rollback(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, model.CheckpointStuck, outcome.State)
	require.True(t, outcome.Escalated)
}
