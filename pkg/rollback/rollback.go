package rollback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/store"
)

// Manager is C8, the Rollback Manager.
type Manager struct {
	checkpoints store.CheckpointStore
	registry    *Registry
	cfg         *config.Config
	log         *slog.Logger
}

func New(checkpoints store.CheckpointStore, registry *Registry, cfg *config.Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{checkpoints: checkpoints, registry: registry, cfg: cfg, log: log}
}

// Touch creates the task's checkpoint on first observation (first
// ToolCall or first evidence).
func (m *Manager) Touch(ctx context.Context, taskID model.TaskId, stateDigest string) (*model.Checkpoint, error) {
	return m.checkpoints.GetOrCreate(ctx, taskID, stateDigest)
}

// RecordAction appends a compensating-action descriptor to taskID's
// checkpoint, idempotent on (task_id, descriptor_hash).
func (m *Manager) RecordAction(ctx context.Context, taskID model.TaskId, action model.CompensatingAction) error {
	cp, err := m.checkpoints.GetOrCreate(ctx, taskID, "")
	if err != nil {
		return fmt.Errorf("rollback: get checkpoint for %s: %w", taskID, err)
	}
	if !cp.Append(action) {
		return nil // already recorded, appending is idempotent
	}
	return m.checkpoints.Save(ctx, cp)
}

// Retire marks taskID's checkpoint RETIRED on a COMPLETED verdict;
// descriptors are no longer executable afterward.
func (m *Manager) Retire(ctx context.Context, taskID model.TaskId) error {
	cp, err := m.checkpoints.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if cp == nil {
		return nil
	}
	cp.State = model.CheckpointRetired
	return m.checkpoints.Save(ctx, cp)
}

// Outcome is the Rollback Manager's result for a single replay,
// including the ROLLBACK_ESCALATION signal if the retry budget was
// exhausted.
type Outcome struct {
	State     model.CheckpointState
	Escalated bool
	Reason    string
}

// Rollback executes taskID's checkpoint descriptors in strict LIFO order
// (reverse insertion order) on a {FAILED, ERROR} verdict. Each executor
// is invoked with an at-least-once guarantee bounded by the configured
// retry budget; exhaustion leaves the checkpoint STUCK and reports
// Escalated=true.
func (m *Manager) Rollback(ctx context.Context, taskID model.TaskId) (Outcome, error) {
	cp, err := m.checkpoints.Get(ctx, taskID)
	if err != nil {
		return Outcome{}, err
	}
	if cp == nil {
		return Outcome{State: model.CheckpointRetired}, nil
	}
	if cp.State == model.CheckpointRetired || cp.State == model.CheckpointReplayed {
		return Outcome{State: cp.State}, nil
	}

	for _, action := range cp.ReverseActions() {
		if err := m.executeWithRetry(ctx, action); err != nil {
			cp.State = model.CheckpointStuck
			if saveErr := m.checkpoints.Save(ctx, cp); saveErr != nil {
				m.log.Error("rollback: saving stuck checkpoint failed", "task_id", taskID, "error", saveErr)
			}
			return Outcome{State: model.CheckpointStuck, Escalated: true, Reason: err.Error()}, nil
		}
	}

	cp.State = model.CheckpointReplayed
	if err := m.checkpoints.Save(ctx, cp); err != nil {
		return Outcome{}, err
	}
	return Outcome{State: model.CheckpointReplayed}, nil
}

// executeWithRetry invokes the registered executor for action.Kind with
// the configured exponential-backoff retry budget (default 3 retries,
// i.e. 4 attempts, starting at 1s, capped at 30s). RollbackRetryMax counts retries after
// the first attempt, so total attempts = RollbackRetryMax + 1.
func (m *Manager) executeWithRetry(ctx context.Context, action model.CompensatingAction) error {
	executor, err := m.registry.For(action.Kind)
	if err != nil {
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = time.Duration(m.cfg.RollbackBackoffBaseMs) * time.Millisecond
	eb.MaxInterval = time.Duration(m.cfg.RollbackBackoffCapMs) * time.Millisecond
	eb.Multiplier = 2.0

	operation := func() (struct{}, error) {
		if err := executor.Execute(ctx, action); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(m.cfg.RollbackRetryMax+1)),
	)
	return err
}
