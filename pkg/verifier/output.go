package verifier

import (
	"context"

	"github.com/neikan-bsn/ares/pkg/model"
)

// OutputQualityStrategy combines completeness_score, accuracy_score,
// format_compliance, and error_handling_score.
type OutputQualityStrategy struct{}

func (OutputQualityStrategy) Name() string { return "output_quality" }

func (OutputQualityStrategy) Evaluate(ctx context.Context, in Input) model.StrategyDetail {
	outputs := itemsOf(in.Evidence, model.SourceOutput)
	factors := map[string]any{}

	if len(outputs) == 0 {
		return model.StrategyDetail{
			Name: "output_quality", Score: 0, Pass: false,
			Factors: map[string]any{"reason": "no output evidence"},
		}
	}

	p, ok := outputs[0].Payload.(*model.OutputPayload)
	if !ok {
		return model.StrategyDetail{Name: "output_quality", Score: 0, Pass: false,
			Factors: map[string]any{"reason": "malformed output payload"}}
	}

	completeness := valueOr(p.CompletenessScore, 0)
	accuracy := valueOr(p.AccuracyScore, 0)
	errHandling := valueOr(p.ErrorHandlingScore, 0)
	formatCompliance := 0.0
	if p.FormatCompliance != nil && *p.FormatCompliance {
		formatCompliance = 1.0
	}
	factors["completeness_score"] = completeness
	factors["accuracy_score"] = accuracy
	factors["format_compliance"] = formatCompliance
	factors["error_handling_score"] = errHandling

	score := (completeness + accuracy + formatCompliance + errHandling) / 4.0
	pass := score >= in.Cfg.OutputQualityMin

	return model.StrategyDetail{Name: "output_quality", Score: score, Pass: pass, Factors: factors}
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
