package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/rollback"
)

// defaultRegistry registers the reference compensating-action executors
// named in model.CompensatingActionKind. They are the minimal, obviously
// correct implementations for a single-process deployment: file removal
// for DELETE_FILE, and logged no-ops for the three kinds (RESTORE_FILE,
// REVOKE_GRANT, REVERT_RECORD) that need a backing system (a snapshot
// store, an authz service, a database) ARES itself has no opinion on — a
// real deployment swaps those three in for its own integrations.
func defaultRegistry(log *slog.Logger) *rollback.Registry {
	reg := rollback.NewRegistry()

	reg.Register(model.ActionDeleteFile, rollback.ExecutorFunc(func(ctx context.Context, action model.CompensatingAction) error {
		path, _ := action.Params["path"].(string)
		if path == "" {
			return fmt.Errorf("rollback: delete_file: missing path")
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rollback: delete_file %s: %w", path, err)
		}
		return nil
	}))

	reg.Register(model.ActionRestoreFile, rollback.ExecutorFunc(func(ctx context.Context, action model.CompensatingAction) error {
		path, _ := action.Params["path"].(string)
		log.Warn("rollback: restore_file has no backing snapshot store; recording intent only", "path", path)
		return nil
	}))

	reg.Register(model.ActionRevokeGrant, rollback.ExecutorFunc(func(ctx context.Context, action model.CompensatingAction) error {
		log.Warn("rollback: revoke_grant executor not wired to an authorization service; recording intent only", "params", action.Params)
		return nil
	}))

	reg.Register(model.ActionRevertRecord, rollback.ExecutorFunc(func(ctx context.Context, action model.CompensatingAction) error {
		log.Warn("rollback: revert_record executor not wired to a data store; recording intent only", "params", action.Params)
		return nil
	}))

	return reg
}
