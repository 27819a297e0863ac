// Package verifier implements the Completion Verifier (C6): a pluggable
// pipeline of independent scoring strategies that evaluate a task
// completion along separate dimensions and combine their results into
// an overall verdict.
package verifier

import (
	"context"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
)

// Input is everything a Strategy needs to score a task. Strategy
// evaluation is pure and non-suspending given this input, so Input
// carries no store or bus reference.
type Input struct {
	TaskDescription string
	Evidence        []model.EvidenceItem
	Summary         model.EvidenceSummary
	Cfg             *config.Config
}

// Strategy is a pure function from evidence + config to a dimension
// score and pass/fail flag. Adding a new strategy requires defining its
// dimension, assigning it an aggregation weight in aggregate.go, and
// declaring its hard-fail rule explicitly — no runtime type-sniffing.
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, in Input) model.StrategyDetail
}

func itemsOf(evidence []model.EvidenceItem, source model.EvidenceSource) []model.EvidenceItem {
	var out []model.EvidenceItem
	for _, e := range evidence {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out
}
