package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/neikan-bsn/ares/pkg/model"
)

// MemoryStore is an in-process Store implementation used by unit tests
// across pkg/collector, pkg/validator, pkg/verifier, pkg/monitor, and
// pkg/rollback so their logic can be exercised without a real database.
type MemoryStore struct {
	mu sync.Mutex

	evidence      map[model.TaskId][]model.EvidenceItem
	verifications map[model.TaskId]model.VerificationResult
	checkpoints   map[model.TaskId]*model.Checkpoint
	reliability   map[model.AgentId]model.ReliabilityMetric
	outbox        []model.BusEvent
	hwm           uint64
	agents        map[model.AgentId]model.Agent
	tasks         map[model.TaskId]model.Task
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		evidence:      make(map[model.TaskId][]model.EvidenceItem),
		verifications: make(map[model.TaskId]model.VerificationResult),
		checkpoints:   make(map[model.TaskId]*model.Checkpoint),
		reliability:   make(map[model.AgentId]model.ReliabilityMetric),
		agents:        make(map[model.AgentId]model.Agent),
		tasks:         make(map[model.TaskId]model.Task),
	}
}

func (s *MemoryStore) PutAgent(ctx context.Context, a model.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
	return nil
}

func (s *MemoryStore) GetAgent(ctx context.Context, id model.AgentId) (*model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[id]; ok {
		cp := a
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) SetAgentState(ctx context.Context, id model.AgentId, state model.AgentState, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("store: unknown agent %s", id)
	}
	a.State = state
	a.LastHeartbeat = at
	s.agents[id] = a
	return nil
}

func (s *MemoryStore) PutTask(ctx context.Context, t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id model.TaskId) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		cp := t
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) SetTaskStatus(ctx context.Context, id model.TaskId, status model.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("store: unknown task %s", id)
	}
	t.Status = status
	s.tasks[id] = t
	return nil
}

func (s *MemoryStore) SchemaVersion(ctx context.Context) (int, error) {
	return CurrentSchemaMajor, nil
}

func (s *MemoryStore) AppendEvidence(ctx context.Context, items []model.EvidenceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.evidence[it.TaskID] = append(s.evidence[it.TaskID], it)
	}
	return nil
}

func (s *MemoryStore) GetEvidence(ctx context.Context, taskID model.TaskId) ([]model.EvidenceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EvidenceItem, len(s.evidence[taskID]))
	copy(out, s.evidence[taskID])
	return out, nil
}

func (s *MemoryStore) Summarize(ctx context.Context, taskID model.TaskId) (model.EvidenceSummary, error) {
	items, _ := s.GetEvidence(ctx, taskID)
	return summarizeItems(taskID, items), nil
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, res model.VerificationResult) (model.VerificationResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.verifications[res.TaskID]; ok &&
		(existing.Verdict == model.VerdictCompleted || existing.Verdict == model.VerdictFailed) {
		return existing, false, nil
	}
	s.verifications[res.TaskID] = res
	return res, true, nil
}

func (s *MemoryStore) GetVerification(ctx context.Context, taskID model.TaskId) (*model.VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.verifications[taskID]; ok {
		cp := v
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, taskID model.TaskId, stateDigest string) (*model.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp, ok := s.checkpoints[taskID]; ok {
		return cp, nil
	}
	cp := model.NewCheckpoint(taskID, stateDigest, time.Now().UTC())
	s.checkpoints[taskID] = cp
	return cp, nil
}

func (s *MemoryStore) Get(ctx context.Context, taskID model.TaskId) (*model.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[taskID], nil
}

func (s *MemoryStore) Save(ctx context.Context, cp *model.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.TaskID] = cp
	return nil
}

func (s *MemoryStore) GetReliability(ctx context.Context, agentID model.AgentId) (model.ReliabilityMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.reliability[agentID]; ok {
		return m, nil
	}
	return model.ReliabilityMetric{AgentID: agentID}, nil
}

func (s *MemoryStore) PutReliability(ctx context.Context, m model.ReliabilityMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reliability[m.AgentID] = m
	return nil
}

func (s *MemoryStore) AppendOutbox(ctx context.Context, events []model.BusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, events...)
	return nil
}

func (s *MemoryStore) ReadFrom(ctx context.Context, fromSeq uint64, limit int) ([]model.BusEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BusEvent
	for _, ev := range s.outbox {
		if ev.Seq > fromSeq {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Depth(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.outbox)), nil
}

func (s *MemoryStore) HighWaterMark(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hwm, nil
}

func (s *MemoryStore) AdvanceHighWaterMark(ctx context.Context, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.hwm {
		s.hwm = seq
	}
	return nil
}

// SetOutboxDepthForTest seeds the outbox with n synthetic rows so tests
// can exercise backpressure without running the Bus's normal publish
// path.
func (s *MemoryStore) SetOutboxDepthForTest(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = make([]model.BusEvent, n)
	for i := range s.outbox {
		s.outbox[i] = model.BusEvent{Seq: uint64(i + 1), Kind: model.EventToolCallRecorded}
	}
}
