package verifier

import (
	"context"

	"github.com/neikan-bsn/ares/pkg/model"
)

// PerformanceStrategy linearly interpolates execution_time_ms,
// memory_usage_mb, and error_rate against configured ceilings; each axis
// contributes 1/3. Hard fail if error_rate exceeds error_rate_ceiling.
type PerformanceStrategy struct{}

func (PerformanceStrategy) Name() string { return "performance" }

func (PerformanceStrategy) Evaluate(ctx context.Context, in Input) model.StrategyDetail {
	perf := itemsOf(in.Evidence, model.SourcePerformance)
	if len(perf) == 0 {
		return model.StrategyDetail{Name: "performance", Score: 0, Pass: false,
			Factors: map[string]any{"reason": "no performance evidence"}}
	}

	p, ok := perf[0].Payload.(*model.PerformancePayload)
	if !ok {
		return model.StrategyDetail{Name: "performance", Score: 0, Pass: false,
			Factors: map[string]any{"reason": "malformed performance payload"}}
	}

	errRate := valueOr(p.ErrorRate, 0)
	if errRate > in.Cfg.ErrorRateCeiling {
		return model.StrategyDetail{
			Name: "performance", Score: 0, Pass: false, Hard: true,
			Factors: map[string]any{"error_rate": errRate, "error_rate_ceiling": in.Cfg.ErrorRateCeiling, "reason": "error_rate exceeds ceiling"},
		}
	}

	timeAxis := axisScore(valueOr(p.ExecutionTimeMs, 0), in.Cfg.PerfTimeCeilingMs)
	memAxis := axisScore(valueOr(p.MemoryUsageMB, 0), in.Cfg.PerfMemCeilingMB)
	errAxis := 1.0
	if in.Cfg.ErrorRateCeiling > 0 {
		errAxis = axisScore(errRate, in.Cfg.ErrorRateCeiling)
	}

	score := (timeAxis + memAxis + errAxis) / 3.0
	return model.StrategyDetail{
		Name: "performance", Score: score, Pass: true,
		Factors: map[string]any{
			"execution_time_ms": valueOr(p.ExecutionTimeMs, 0),
			"memory_usage_mb":   valueOr(p.MemoryUsageMB, 0),
			"error_rate":        errRate,
			"time_axis":         timeAxis,
			"memory_axis":       memAxis,
			"error_axis":        errAxis,
		},
	}
}

// axisScore linearly interpolates value against ceiling: 1.0 at value=0,
// 0.0 at value>=ceiling.
func axisScore(value, ceiling float64) float64 {
	if ceiling <= 0 {
		return 1.0
	}
	score := 1.0 - value/ceiling
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
