// Package rollback implements the Rollback Manager (C8): checkpoint
// lifecycle management and LIFO replay of compensating actions, retried
// with cenkalti/backoff/v5's exponential backoff.
package rollback

import (
	"context"
	"fmt"

	"github.com/neikan-bsn/ares/pkg/model"
)

// Executor performs one compensating action. Executors must be
// idempotent: C8 invokes them with an at-least-once guarantee.
type Executor interface {
	Execute(ctx context.Context, action model.CompensatingAction) error
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, action model.CompensatingAction) error

func (f ExecutorFunc) Execute(ctx context.Context, action model.CompensatingAction) error { return f(ctx, action) }

// Registry maps a CompensatingActionKind to the Executor responsible
// for it. Executors are registered per kind.
type Registry struct {
	executors map[model.CompensatingActionKind]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[model.CompensatingActionKind]Executor)}
}

func (r *Registry) Register(kind model.CompensatingActionKind, e Executor) {
	r.executors[kind] = e
}

func (r *Registry) For(kind model.CompensatingActionKind) (Executor, error) {
	e, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("rollback: no executor registered for kind %q", kind)
	}
	return e, nil
}
