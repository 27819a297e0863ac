package verifier

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/store"
)

// tieBreakOrder is the deterministic dimension ordering used to pick
// which failing dimension a verdict's reason names when more than one
// fails: security takes priority over requirements, then output
// quality, then performance.
var tieBreakOrder = []string{"security", "requirements_match", "output_quality", "performance"}

// Verifier is C6, the Completion Verifier.
type Verifier struct {
	evidence store.EvidenceStore
	results  store.VerificationStore
	cfg      *config.Config
	pipeline *Pipeline
	inflight singleflight.Group
	now      func() time.Time
}

// New constructs a Verifier. maxConcurrentStrategies bounds the worker
// pool used for CPU-bound strategy evaluation.
func New(evidence store.EvidenceStore, results store.VerificationStore, cfg *config.Config, maxConcurrentStrategies int64) *Verifier {
	return &Verifier{
		evidence: evidence,
		results:  results,
		cfg:      cfg,
		pipeline: NewPipeline(DefaultStrategies(), maxConcurrentStrategies),
		now:      time.Now,
	}
}

// Verify scores taskID's completion. Duplicate calls for a task already
// in {COMPLETED, FAILED} return the prior result unchanged and run no
// strategy; concurrent duplicate calls collapse onto a single in-flight
// evaluation via singleflight.
func (v *Verifier) Verify(ctx context.Context, taskID model.TaskId, agentID model.AgentId, taskDescription string) (model.VerificationResult, error) {
	if existing, err := v.results.GetVerification(ctx, taskID); err != nil {
		return model.VerificationResult{}, err
	} else if existing != nil && (existing.Verdict == model.VerdictCompleted || existing.Verdict == model.VerdictFailed) {
		return *existing, nil
	}

	deadline := time.Duration(v.cfg.VerificationDeadlineMs) * time.Millisecond
	if v.cfg.VerificationDeadlineMs == 0 {
		return v.errorResult(taskID, agentID, "deadline"), nil
	}

	vctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	resAny, err, _ := v.inflight.Do(string(taskID), func() (any, error) {
		return v.evaluate(vctx, taskID, agentID, taskDescription)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return v.errorResult(taskID, agentID, "deadline"), nil
		}
		return v.errorResult(taskID, agentID, "strategy:"+err.Error()), nil
	}
	return resAny.(model.VerificationResult), nil
}

func (v *Verifier) evaluate(ctx context.Context, taskID model.TaskId, agentID model.AgentId, taskDescription string) (model.VerificationResult, error) {
	evidence, err := v.evidence.GetEvidence(ctx, taskID)
	if err != nil {
		return model.VerificationResult{}, err
	}
	summary, err := v.evidence.Summarize(ctx, taskID)
	if err != nil {
		return model.VerificationResult{}, err
	}

	if len(evidence) == 0 {
		res := v.buildResult(taskID, agentID, model.VerdictFailed, model.DimensionScores{}, 0, nil, nil, "no evidence")
		return v.commit(ctx, res)
	}

	in := Input{TaskDescription: taskDescription, Evidence: evidence, Summary: summary, Cfg: v.cfg}
	details, err := v.pipeline.Run(ctx, in)
	if err != nil {
		return model.VerificationResult{}, err
	}

	dims, overall, verdict, reason := aggregate(details, summary, v.cfg)

	evidenceIDs := make([]model.EvidenceId, 0, len(evidence))
	for _, e := range evidence {
		evidenceIDs = append(evidenceIDs, e.ID)
	}

	res := v.buildResult(taskID, agentID, verdict, dims, overall, details, evidenceIDs, reason)
	return v.commit(ctx, res)
}

func (v *Verifier) commit(ctx context.Context, res model.VerificationResult) (model.VerificationResult, error) {
	written, _, err := v.results.PutIfAbsent(ctx, res)
	if err != nil {
		return model.VerificationResult{}, err
	}
	return written, nil
}

func (v *Verifier) buildResult(taskID model.TaskId, agentID model.AgentId, verdict model.Verdict, dims model.DimensionScores, overall float64, details []model.StrategyDetail, evidenceIDs []model.EvidenceId, reason string) model.VerificationResult {
	return model.VerificationResult{
		ID:           model.NewVerificationId(),
		TaskID:       taskID,
		AgentID:      agentID,
		Verdict:      verdict,
		Dimensions:   dims,
		OverallScore: overall,
		Strategies:   details,
		EvidenceIDs:  evidenceIDs,
		Reason:       reason,
		RecordedAt:   v.now(),
	}
}

func (v *Verifier) errorResult(taskID model.TaskId, agentID model.AgentId, reason string) model.VerificationResult {
	return v.buildResult(taskID, agentID, model.VerdictError, model.DimensionScores{}, 0, nil, nil, reason)
}
