package verifier

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/neikan-bsn/ares/pkg/model"
)

// DefaultStrategies is the fixed four-strategy pipeline; order here
// also fixes slice position, though aggregation applies its own
// tie-break order independent of this slice.
func DefaultStrategies() []Strategy {
	return []Strategy{
		OutputQualityStrategy{},
		RequirementsMatchStrategy{},
		PerformanceStrategy{},
		SecurityStrategy{},
	}
}

// Pipeline runs a fixed set of Strategies over bounded concurrency. Each
// strategy is pure and non-suspending given its Input, so the worker
// pool exists purely to parallelize CPU-bound scoring across many
// concurrent verify() calls, not to await I/O.
type Pipeline struct {
	strategies []Strategy
	sem        *semaphore.Weighted
}

// NewPipeline builds a Pipeline with the given strategies and a worker
// pool bounded to maxConcurrent simultaneous strategy evaluations
// process-wide.
func NewPipeline(strategies []Strategy, maxConcurrent int64) *Pipeline {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pipeline{strategies: strategies, sem: semaphore.NewWeighted(maxConcurrent)}
}

// Run evaluates every strategy concurrently, respecting ctx's deadline,
// and returns results in strategy-declaration order regardless of
// completion order, so aggregation is deterministic.
func (p *Pipeline) Run(ctx context.Context, in Input) ([]model.StrategyDetail, error) {
	results := make([]model.StrategyDetail, len(p.strategies))
	g, gctx := errgroup.WithContext(ctx)

	for i, strat := range p.strategies {
		i, strat := i, strat
		g.Go(func() error {
			if err := p.sem.Acquire(gctx, 1); err != nil {
				return fmt.Errorf("verifier: acquiring worker slot for %s: %w", strat.Name(), err)
			}
			defer p.sem.Release(1)

			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = strat.Evaluate(gctx, in)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
