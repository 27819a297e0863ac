package verifier

import (
	"context"

	"github.com/neikan-bsn/ares/pkg/model"
)

// SecurityStrategy passes unless any SECURITY evidence item has
// confidence >= security_alarm_min; a single hard fail here fails the
// whole verification regardless of other scores.
type SecurityStrategy struct{}

func (SecurityStrategy) Name() string { return "security" }

func (SecurityStrategy) Evaluate(ctx context.Context, in Input) model.StrategyDetail {
	alarms := itemsOf(in.Evidence, model.SourceSecurity)
	for _, a := range alarms {
		if a.Confidence >= in.Cfg.SecurityAlarmMin {
			p, _ := a.Payload.(*model.SecurityPayload)
			factors := map[string]any{"confidence": a.Confidence}
			if p != nil {
				factors["matched"] = p.Matched
				factors["location"] = p.Location
			}
			return model.StrategyDetail{Name: "security", Score: 0, Pass: false, Hard: true, Factors: factors}
		}
	}
	return model.StrategyDetail{Name: "security", Score: 1, Pass: true, Factors: map[string]any{"alarms": len(alarms)}}
}
