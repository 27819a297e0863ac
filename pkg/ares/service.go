// Package ares wires C1-C9 into the Core API:
// register_agent, submit_tool_call, submit_completion, get_verification,
// get_evidence, get_reliability, subscribe. It is the only package that
// constructs model.CoreError values — every other component records and
// continues rather than raising across package boundaries.
package ares

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/neikan-bsn/ares/pkg/bus"
	"github.com/neikan-bsn/ares/pkg/collector"
	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/monitor"
	"github.com/neikan-bsn/ares/pkg/observability"
	"github.com/neikan-bsn/ares/pkg/rollback"
	"github.com/neikan-bsn/ares/pkg/store"
	"github.com/neikan-bsn/ares/pkg/validator"
	"github.com/neikan-bsn/ares/pkg/verifier"
)

// maxConcurrentStrategies bounds the Verifier's worker pool for the four
// strategy evaluations.
const maxConcurrentStrategies = 4

// Service is the Core API facade. It owns no state of its own beyond its
// component references; every durable fact lives in Store.
type Service struct {
	store store.Store
	cfg   *config.Config
	log   *slog.Logger
	obs   *observability.Manager

	collector *collector.Collector
	validator *validator.Validator
	verifier  *verifier.Verifier
	monitor   *monitor.Monitor
	rollback  *rollback.Manager
	bus       *bus.Bus

	now func() time.Time
}

// New wires every component over st and cfg. registry supplies the
// Rollback Manager's per-kind compensating-action executors; callers
// register executors before passing it in (see cmd/aresd).
func New(ctx context.Context, st store.Store, cfg *config.Config, registry *rollback.Registry, obs *observability.Manager, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	if obs == nil {
		var err error
		obs, err = observability.NewManager(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("ares: observability: %w", err)
		}
	}

	b, err := bus.New(ctx, st, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("ares: bus: %w", err)
	}

	return &Service{
		store:     st,
		cfg:       cfg,
		log:       log,
		obs:       obs,
		collector: collector.New(st, cfg),
		validator: validator.New(cfg),
		verifier:  verifier.New(st, st, cfg, maxConcurrentStrategies),
		monitor:   monitor.New(st, cfg),
		rollback:  rollback.New(st, registry, cfg, log),
		bus:       b,
		now:       time.Now,
	}, nil
}

// RegisterAgent implements register_agent. Re-registering an existing
// agent id updates its display name and capability set but leaves its
// lifecycle state untouched.
func (s *Service) RegisterAgent(ctx context.Context, agentID model.AgentId, displayName string, capabilities []string) (model.AgentRecord, error) {
	existing, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return model.AgentRecord{}, model.NewCoreError(model.ErrKindStorage, "storage", err)
	}

	a := model.Agent{
		ID:           agentID,
		DisplayName:  displayName,
		Capabilities: capabilities,
		RegisteredAt: s.now(),
		State:        model.AgentActive,
	}
	if existing != nil {
		a.RegisteredAt = existing.RegisteredAt
		a.State = existing.State
		a.LastHeartbeat = existing.LastHeartbeat
	}
	if err := s.store.PutAgent(ctx, a); err != nil {
		return model.AgentRecord{}, model.NewCoreError(model.ErrKindStorage, "storage", err)
	}
	return model.AgentRecord{Agent: a}, nil
}

// SubmitToolCall implements submit_tool_call: it validates the call
// against the registered catalog and the agent's declared capabilities,
// records a compensating-action descriptor when the tool is known to
// mutate state, touches the task's checkpoint, and publishes
// TOOL_CALL_RECORDED.
func (s *Service) SubmitToolCall(ctx context.Context, tc model.ToolCall) (model.ToolCallVerdict, error) {
	var span trace.Span
	if tracer := s.obs.Tracer(); tracer != nil {
		ctx, span = tracer.StartValidate(ctx, tc.ToolName)
		defer span.End()
	}

	agent, err := s.store.GetAgent(ctx, tc.AgentID)
	if err != nil {
		return model.ToolCallVerdict{}, model.NewCoreError(model.ErrKindStorage, "storage", err)
	}
	var caps []string
	if agent != nil {
		caps = agent.Capabilities
	}

	verdict := s.validator.Validate(tc, caps)
	if verdict.Status == model.ToolCallInvalid {
		s.obs.Metrics().RecordValidateReject(string(verdict.Status))
	}

	if tc.TaskID != nil {
		if _, err := s.rollback.Touch(ctx, *tc.TaskID, ""); err != nil {
			return verdict, model.NewCoreError(model.ErrKindStorage, "storage", err)
		}
		if action, ok := descriptorForToolCall(tc); ok {
			if err := s.rollback.RecordAction(ctx, *tc.TaskID, action); err != nil {
				return verdict, model.NewCoreError(model.ErrKindStorage, "storage", err)
			}
		}
	}

	taskID := model.TaskId("")
	if tc.TaskID != nil {
		taskID = *tc.TaskID
	}
	if _, err := s.bus.Publish(ctx, bus.NewEvent(model.EventToolCallRecorded, taskID, tc.AgentID, map[string]any{
		"tool_name": tc.ToolName,
		"status":    verdict.Status,
	}, s.now())); err != nil {
		s.log.Error("ares: publishing TOOL_CALL_RECORDED failed", "error", err)
	}

	return verdict, nil
}

// SubmitCompletion implements submit_completion end to end: collect
// evidence, verify, update the Ledger, and roll back on a {FAILED,
// ERROR} verdict.
func (s *Service) SubmitCompletion(ctx context.Context, req model.CompletionRequest) (model.VerificationResult, error) {
	var span trace.Span
	if tracer := s.obs.Tracer(); tracer != nil {
		ctx, span = tracer.StartVerify(ctx, string(req.TaskID), string(req.AgentID))
		defer span.End()
	}

	if s.bus.IsOverloaded() {
		res := s.overloadedResult(req.TaskID, req.AgentID)
		s.obs.Metrics().SetBusOverloaded(true)
		return res, model.NewCoreError(model.ErrKindOverloaded, "overloaded", nil)
	}

	if _, err := s.rollback.Touch(ctx, req.TaskID, ""); err != nil {
		return model.VerificationResult{}, model.NewCoreError(model.ErrKindStorage, "storage", err)
	}

	if err := s.ensureTask(ctx, req); err != nil {
		return model.VerificationResult{}, model.NewCoreError(model.ErrKindStorage, "storage", err)
	}

	items, err := s.collector.Collect(ctx, req.TaskID, req.AgentID, req.CompletionEvidence)
	if err != nil {
		s.obs.Metrics().RecordCollectError()
		res := model.VerificationResult{
			ID:         model.NewVerificationId(),
			TaskID:     req.TaskID,
			AgentID:    req.AgentID,
			Verdict:    model.VerdictError,
			Reason:     "malformed evidence",
			RecordedAt: s.now(),
		}
		written, _, putErr := s.store.PutIfAbsent(ctx, res)
		if putErr != nil {
			return model.VerificationResult{}, model.NewCoreError(model.ErrKindStorage, "storage", putErr)
		}
		return written, model.NewCoreError(model.ErrKindInput, "malformed evidence", err)
	}

	if len(items) > 0 {
		if _, err := s.bus.Publish(ctx, bus.NewEvent(model.EventEvidenceCollected, req.TaskID, req.AgentID, map[string]any{
			"count": len(items),
		}, s.now())); err != nil {
			s.log.Error("ares: publishing EVIDENCE_COLLECTED failed", "error", err)
		}
	}

	if _, err := s.bus.Publish(ctx, bus.NewEvent(model.EventVerificationStarted, req.TaskID, req.AgentID, nil, s.now())); err != nil {
		s.log.Error("ares: publishing VERIFICATION_STARTED failed", "error", err)
	}

	res, err := s.verifier.Verify(ctx, req.TaskID, req.AgentID, req.TaskDescription)
	if err != nil {
		return model.VerificationResult{}, model.NewCoreError(model.ErrKindStrategy, "strategy", err)
	}

	if res.Verdict == model.VerdictCompleted || res.Verdict == model.VerdictPartial {
		if _, err := s.bus.Publish(ctx, bus.NewEvent(model.EventVerificationDone, req.TaskID, req.AgentID, map[string]any{
			"verdict":       res.Verdict,
			"overall_score": res.OverallScore,
		}, s.now())); err != nil {
			s.log.Error("ares: publishing VERIFICATION_COMPLETED failed", "error", err)
		}
	}
	s.obs.Metrics().RecordVerdict(string(res.Verdict), res.OverallScore)

	if err := s.store.SetTaskStatus(ctx, req.TaskID, model.TaskStatus(res.Verdict)); err != nil {
		s.log.Warn("ares: set task status failed", "task_id", req.TaskID, "error", err)
	}

	securityHardFail := hasSecurityHardFail(res.Strategies)
	executionTimeMs := executionTimeMsOf(items)
	metric, anomalies, monErr := s.monitor.Observe(ctx, req.AgentID, res, executionTimeMs, securityHardFail, s.now())
	if monErr != nil {
		s.log.Error("ares: monitor observe failed", "agent_id", req.AgentID, "error", monErr)
	} else {
		s.publishAnomalies(ctx, req.AgentID, req.TaskID, anomalies, metric)
	}

	switch res.Verdict {
	case model.VerdictCompleted:
		if err := s.rollback.Retire(ctx, req.TaskID); err != nil {
			s.log.Error("ares: retiring checkpoint failed", "task_id", req.TaskID, "error", err)
		}
	case model.VerdictFailed, model.VerdictError:
		s.runRollback(ctx, req.TaskID, req.AgentID)
	}

	return res, nil
}

func (s *Service) runRollback(ctx context.Context, taskID model.TaskId, agentID model.AgentId) {
	if _, err := s.bus.Publish(ctx, bus.NewEvent(model.EventRollbackStarted, taskID, agentID, nil, s.now())); err != nil {
		s.log.Error("ares: publishing ROLLBACK_STARTED failed", "error", err)
	}

	outcome, err := s.rollback.Rollback(ctx, taskID)
	if err != nil {
		s.log.Error("ares: rollback failed", "task_id", taskID, "error", err)
		return
	}

	kind := model.EventRollbackCompleted
	payload := map[string]any{"state": outcome.State}
	if outcome.Escalated {
		kind = model.EventRollbackEscalation
		payload["reason"] = outcome.Reason
	}
	s.obs.Metrics().RecordRollback(string(outcome.State), outcome.Escalated)
	if _, err := s.bus.Publish(ctx, bus.NewEvent(kind, taskID, agentID, payload, s.now())); err != nil {
		s.log.Error("ares: publishing rollback outcome failed", "error", err)
	}
}

func (s *Service) publishAnomalies(ctx context.Context, agentID model.AgentId, taskID model.TaskId, anomalies []monitor.Anomaly, metric model.ReliabilityMetric) {
	for _, a := range anomalies {
		s.obs.Metrics().RecordAnomaly(a.Reason)
		if _, err := s.bus.Publish(ctx, bus.NewEvent(model.EventKind(a.Kind), taskID, agentID, map[string]any{
			"reason":       a.Reason,
			"success_rate": metric.SuccessRate,
		}, s.now())); err != nil {
			s.log.Error("ares: publishing anomaly event failed", "kind", a.Kind, "error", err)
		}

		if a.Kind == monitor.AgentSuspended {
			s.obs.Metrics().RecordSuspension(a.Reason)
			if err := s.store.SetAgentState(ctx, agentID, model.AgentSuspended, s.now()); err != nil {
				s.log.Error("ares: suspending agent failed", "agent_id", agentID, "error", err)
			}
		}
	}
}

// ensureTask creates the Task row on first sight of a task id, mirroring
// the Checkpoint Store's own "first observed, create implicitly" rule,
// so SetTaskStatus always has a row to advance.
func (s *Service) ensureTask(ctx context.Context, req model.CompletionRequest) error {
	existing, err := s.store.GetTask(ctx, req.TaskID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return s.store.PutTask(ctx, model.Task{
		ID:          req.TaskID,
		AgentID:     req.AgentID,
		Description: req.TaskDescription,
		CreatedAt:   s.now(),
		Status:      model.TaskOpen,
	})
}

func (s *Service) overloadedResult(taskID model.TaskId, agentID model.AgentId) model.VerificationResult {
	return model.VerificationResult{
		ID:         model.NewVerificationId(),
		TaskID:     taskID,
		AgentID:    agentID,
		Verdict:    model.VerdictError,
		Reason:     "overloaded",
		RecordedAt: s.now(),
	}
}

// GetVerification implements get_verification.
func (s *Service) GetVerification(ctx context.Context, taskID model.TaskId) (*model.VerificationResult, error) {
	res, err := s.store.GetVerification(ctx, taskID)
	if err != nil {
		return nil, model.NewCoreError(model.ErrKindStorage, "storage", err)
	}
	return res, nil
}

// GetEvidence implements get_evidence.
func (s *Service) GetEvidence(ctx context.Context, taskID model.TaskId) ([]model.EvidenceItem, error) {
	items, err := s.store.GetEvidence(ctx, taskID)
	if err != nil {
		return nil, model.NewCoreError(model.ErrKindStorage, "storage", err)
	}
	return items, nil
}

// GetReliability implements get_reliability.
func (s *Service) GetReliability(ctx context.Context, agentID model.AgentId) (model.ReliabilityMetric, error) {
	m, err := s.monitor.GetReliability(ctx, agentID)
	if err != nil {
		return model.ReliabilityMetric{}, model.NewCoreError(model.ErrKindStorage, "storage", err)
	}
	return m, nil
}

// Subscribe implements subscribe, returning a live handle plus the
// backlog from fromOffset so a caller never misses an event published
// between fromOffset and registration. The handle is registered before
// the backlog is read, so an event published in between may appear both
// in the backlog and on the handle.
func (s *Service) Subscribe(ctx context.Context, id string, kinds []model.EventKind, fromOffset uint64) (*bus.Subscription, []model.BusEvent, error) {
	sub := s.bus.Subscribe(id, kinds)
	backlog, err := s.bus.Replay(ctx, fromOffset, 0)
	if err != nil {
		s.bus.Unsubscribe(id)
		return nil, nil, model.NewCoreError(model.ErrKindStorage, "storage", err)
	}
	return sub, backlog, nil
}

// Unsubscribe releases a subscription handle obtained from Subscribe.
func (s *Service) Unsubscribe(id string) {
	s.bus.Unsubscribe(id)
}

func hasSecurityHardFail(details []model.StrategyDetail) bool {
	for _, d := range details {
		if d.Name == "security" && d.Hard && !d.Pass {
			return true
		}
	}
	return false
}

func executionTimeMsOf(items []model.EvidenceItem) float64 {
	for _, it := range items {
		if p, ok := it.Payload.(model.PerformancePayload); ok && p.ExecutionTimeMs != nil {
			return *p.ExecutionTimeMs
		}
	}
	return 0
}
