package verifier

import (
	"sort"
	"strings"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
)

// weights combine the four dimension scores into an overall score:
// overall = output*0.3 + requirements*0.3 + performance*0.2 + security*0.2.
const (
	weightOutput = 0.3
	weightReq    = 0.3
	weightPerf   = 0.2
	weightSec    = 0.2
)

// aggregate turns the four StrategyDetails plus the evidence summary
// into a DimensionScores vector, the overall score, and a verdict,
// applying the tie-break order deterministically to choose which
// failing dimension the reason names.
func aggregate(details []model.StrategyDetail, summary model.EvidenceSummary, cfg *config.Config) (model.DimensionScores, float64, model.Verdict, string) {
	byName := make(map[string]model.StrategyDetail, len(details))
	for _, d := range details {
		byName[d.Name] = d
	}

	output := byName["output_quality"]
	req := byName["requirements_match"]
	perf := byName["performance"]
	sec := byName["security"]

	dims := model.DimensionScores{
		OutputQuality:      output.Score,
		RequirementsMatch:  req.Score,
		Performance:        perf.Score,
		Security:           sec.Score,
		EvidenceConfidence: summary.MeanConfidence,
		Completeness:       completenessOf(details),
	}

	overall := output.Score*weightOutput + req.Score*weightReq + perf.Score*weightPerf + sec.Score*weightSec

	hardFail := anyHardFail(details)
	allPass := output.Pass && req.Pass && perf.Pass && sec.Pass

	// Apply the tie-break order deterministically even though it does
	// not change *which* verdict is reached here (only the reason
	// attributed when multiple dimensions are equally responsible for a
	// non-pass outcome).
	reason := tieBreakReason(details)

	var verdict model.Verdict
	switch {
	case hardFail:
		verdict = model.VerdictFailed
		if reason == "" {
			reason = "hard fail"
		}
	case allPass && overall >= cfg.CompletionMin:
		verdict = model.VerdictCompleted
	case overall >= cfg.PartialMin:
		verdict = model.VerdictPartial
	default:
		verdict = model.VerdictFailed
		if reason == "" {
			reason = "overall below partial_min"
		}
	}

	return dims, overall, verdict, reason
}

func anyHardFail(details []model.StrategyDetail) bool {
	for _, d := range details {
		if d.Hard && !d.Pass {
			return true
		}
	}
	return false
}

// tieBreakReason names the first failing dimension in tie-break priority
// order (Security > Requirements > Output > Performance), used as the
// VerificationResult's human-readable reason.
func tieBreakReason(details []model.StrategyDetail) string {
	byName := make(map[string]model.StrategyDetail, len(details))
	for _, d := range details {
		byName[d.Name] = d
	}
	for _, name := range tieBreakOrder {
		if d, ok := byName[name]; ok && !d.Pass {
			return strings.ToLower(name) + " dimension failed"
		}
	}
	return ""
}

// completenessOf returns the fraction of strategies that produced a
// non-null score, i.e. ran against evidence that actually existed for
// their dimension. It is a derived verifier dimension, not something
// carried in the evidence itself.
func completenessOf(details []model.StrategyDetail) float64 {
	if len(details) == 0 {
		return 0
	}
	nonNull := 0
	for _, d := range details {
		if !isNullStrategy(d) {
			nonNull++
		}
	}
	return float64(nonNull) / float64(len(details))
}

func isNullStrategy(d model.StrategyDetail) bool {
	reason, ok := d.Factors["reason"].(string)
	if !ok {
		return false
	}
	return strings.Contains(reason, "no ") && strings.Contains(reason, "evidence") ||
		strings.Contains(reason, "malformed")
}

// sortDimensionsByTieBreak is exposed for tests that want to confirm the
// deterministic tie-break ordering independent of aggregate's internals.
func sortDimensionsByTieBreak(names []string) []string {
	index := make(map[string]int, len(tieBreakOrder))
	for i, n := range tieBreakOrder {
		index[n] = i
	}
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool { return index[out[i]] < index[out[j]] })
	return out
}
