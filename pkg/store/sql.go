package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neikan-bsn/ares/pkg/model"
)

// SQLStore is a multi-dialect (postgres, mysql, sqlite) implementation
// of Store: dialect normalization, per-statement schema init for sqlite
// compatibility, dialect-branched UPSERT, and JSON payload columns.
type SQLStore struct {
	db      *sql.DB
	dialect string // "postgres", "mysql", or "sqlite"
	log     *slog.Logger
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an already-open *sql.DB. dialect is normalized to
// its canonical form ("sqlite3" -> "sqlite").
func NewSQLStore(db *sql.DB, dialect string, log *slog.Logger) (*SQLStore, error) {
	if log == nil {
		log = slog.Default()
	}
	d := strings.ToLower(dialect)
	if d == "sqlite3" {
		d = "sqlite"
	}
	switch d {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("store: unsupported dialect %q", dialect)
	}
	s := &SQLStore{db: db, dialect: d, log: log}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	var autoincrement string
	switch s.dialect {
	case "postgres":
		autoincrement = "BIGSERIAL"
	case "mysql":
		autoincrement = "BIGINT AUTO_INCREMENT"
	case "sqlite":
		autoincrement = "INTEGER"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			major INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS evidence (
			evidence_id VARCHAR(64) PRIMARY KEY,
			task_id VARCHAR(64) NOT NULL,
			source VARCHAR(32) NOT NULL,
			payload TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			collected_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS verification_results (
			id ` + autoincrement + ` PRIMARY KEY,
			task_id VARCHAR(64) NOT NULL UNIQUE,
			verification_id VARCHAR(64) NOT NULL,
			agent_id VARCHAR(64) NOT NULL,
			verdict VARCHAR(16) NOT NULL,
			dimensions TEXT NOT NULL,
			overall_score DOUBLE PRECISION NOT NULL,
			strategies TEXT NOT NULL,
			evidence_ids TEXT NOT NULL,
			reason TEXT,
			recorded_at TIMESTAMP NOT NULL,
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			task_id VARCHAR(64) PRIMARY KEY,
			checkpoint_id VARCHAR(64) NOT NULL,
			actions TEXT NOT NULL,
			state_digest TEXT,
			state VARCHAR(16) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS reliability_metrics (
			agent_id VARCHAR(64) PRIMARY KEY,
			window_size INTEGER NOT NULL,
			success_rate DOUBLE PRECISION NOT NULL,
			avg_quality DOUBLE PRECISION NOT NULL,
			avg_latency_ms DOUBLE PRECISION NOT NULL,
			anomaly_count INTEGER NOT NULL,
			last_updated TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bus_outbox (
			seq BIGINT PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			task_id VARCHAR(64) NOT NULL,
			agent_id VARCHAR(64) NOT NULL,
			ts TIMESTAMP NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox_hwm (
			id INTEGER PRIMARY KEY,
			seq BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id VARCHAR(64) PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL,
			capabilities TEXT NOT NULL,
			registered_at TIMESTAMP NOT NULL,
			state VARCHAR(16) NOT NULL,
			last_heartbeat TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id VARCHAR(64) PRIMARY KEY,
			agent_id VARCHAR(64) NOT NULL,
			description TEXT,
			requirement_tags TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			declared_complete_at TIMESTAMP,
			status VARCHAR(16) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_agent ON tasks(agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_task ON evidence(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_verification_agent_ts ON verification_results(agent_id, recorded_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := s.exec(ctx, `INSERT INTO schema_version (major) VALUES (?)`, CurrentSchemaMajor); err != nil {
			return err
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// rewrite rewrites "?" placeholders into the dialect's native form
// ($1, $2, ... for postgres); mysql and sqlite both accept "?".
func (s *SQLStore) rewrite(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rewrite(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rewrite(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rewrite(query), args...)
}

func (s *SQLStore) SchemaVersion(ctx context.Context) (int, error) {
	var major int
	err := s.queryRow(ctx, `SELECT major FROM schema_version LIMIT 1`).Scan(&major)
	return major, err
}

// ---- Evidence ----

func (s *SQLStore) AppendEvidence(ctx context.Context, items []model.EvidenceItem) error {
	for _, it := range items {
		payload, err := json.Marshal(it.Payload)
		if err != nil {
			return fmt.Errorf("store: marshal evidence payload: %w", err)
		}
		_, err = s.exec(ctx, `INSERT INTO evidence (evidence_id, task_id, source, payload, confidence, collected_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(it.ID), string(it.TaskID), string(it.Source), string(payload), it.Confidence, it.CollectedAt.UTC())
		if err != nil {
			return fmt.Errorf("store: append evidence %s: %w", it.ID, err)
		}
	}
	return nil
}

func (s *SQLStore) GetEvidence(ctx context.Context, taskID model.TaskId) ([]model.EvidenceItem, error) {
	rows, err := s.query(ctx, `SELECT evidence_id, task_id, source, payload, confidence, collected_at
		FROM evidence WHERE task_id = ? ORDER BY collected_at ASC`, string(taskID))
	if err != nil {
		return nil, fmt.Errorf("store: get evidence: %w", err)
	}
	defer rows.Close()

	var out []model.EvidenceItem
	for rows.Next() {
		var (
			id, tid, src, payload string
			conf                  float64
			collectedAt           time.Time
		)
		if err := rows.Scan(&id, &tid, &src, &payload, &conf, &collectedAt); err != nil {
			return nil, err
		}
		item := model.EvidenceItem{
			ID:          model.EvidenceId(id),
			TaskID:      model.TaskId(tid),
			Source:      model.EvidenceSource(src),
			Confidence:  conf,
			CollectedAt: collectedAt,
		}
		item.Payload, err = decodeEvidencePayload(item.Source, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func decodeEvidencePayload(source model.EvidenceSource, raw string) (any, error) {
	var target any
	switch source {
	case model.SourceOutput:
		target = &model.OutputPayload{}
	case model.SourceToolUsage:
		target = &model.ToolUsagePayload{}
	case model.SourcePerformance:
		target = &model.PerformancePayload{}
	case model.SourceCodeArtifact:
		target = &model.CodeArtifactPayload{}
	case model.SourceSecurity:
		target = &model.SecurityPayload{}
	default:
		return nil, fmt.Errorf("store: unknown evidence source %q", source)
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return nil, fmt.Errorf("store: unmarshal %s payload: %w", source, err)
	}
	return target, nil
}

func (s *SQLStore) Summarize(ctx context.Context, taskID model.TaskId) (model.EvidenceSummary, error) {
	items, err := s.GetEvidence(ctx, taskID)
	if err != nil {
		return model.EvidenceSummary{}, err
	}
	return summarizeItems(taskID, items), nil
}

func summarizeItems(taskID model.TaskId, items []model.EvidenceItem) model.EvidenceSummary {
	sum := model.EvidenceSummary{
		TaskID:        taskID,
		CountBySource: make(map[model.EvidenceSource]int),
	}
	if len(items) == 0 {
		return sum
	}
	total := 0.0
	sum.MinConfidence = items[0].Confidence
	sum.MaxConfidence = items[0].Confidence
	for _, it := range items {
		sum.CountBySource[it.Source]++
		sum.Total++
		total += it.Confidence
		if it.Confidence < sum.MinConfidence {
			sum.MinConfidence = it.Confidence
		}
		if it.Confidence > sum.MaxConfidence {
			sum.MaxConfidence = it.Confidence
		}
	}
	sum.MeanConfidence = total / float64(sum.Total)
	return sum
}

// ---- Verification ----

func (s *SQLStore) PutIfAbsent(ctx context.Context, res model.VerificationResult) (model.VerificationResult, bool, error) {
	existing, err := s.GetVerification(ctx, res.TaskID)
	if err != nil {
		return model.VerificationResult{}, false, err
	}
	if existing != nil && (existing.Verdict == model.VerdictCompleted || existing.Verdict == model.VerdictFailed) {
		return *existing, false, nil
	}

	dims, err := json.Marshal(res.Dimensions)
	if err != nil {
		return model.VerificationResult{}, false, err
	}
	strategies, err := json.Marshal(res.Strategies)
	if err != nil {
		return model.VerificationResult{}, false, err
	}
	evidenceIDs, err := json.Marshal(res.EvidenceIDs)
	if err != nil {
		return model.VerificationResult{}, false, err
	}

	switch s.dialect {
	case "mysql":
		_, err = s.exec(ctx, `INSERT INTO verification_results
			(task_id, verification_id, agent_id, verdict, dimensions, overall_score, strategies, evidence_ids, reason, recorded_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON DUPLICATE KEY UPDATE
			verification_id=VALUES(verification_id), agent_id=VALUES(agent_id), verdict=VALUES(verdict),
			dimensions=VALUES(dimensions), overall_score=VALUES(overall_score), strategies=VALUES(strategies),
			evidence_ids=VALUES(evidence_ids), reason=VALUES(reason), recorded_at=VALUES(recorded_at), version=version+1`,
			string(res.TaskID), string(res.ID), string(res.AgentID), string(res.Verdict),
			string(dims), res.OverallScore, string(strategies), string(evidenceIDs), res.Reason, res.RecordedAt.UTC())
	case "postgres", "sqlite":
		_, err = s.exec(ctx, `INSERT INTO verification_results
			(task_id, verification_id, agent_id, verdict, dimensions, overall_score, strategies, evidence_ids, reason, recorded_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT (task_id) DO UPDATE SET
			verification_id=excluded.verification_id, agent_id=excluded.agent_id, verdict=excluded.verdict,
			dimensions=excluded.dimensions, overall_score=excluded.overall_score, strategies=excluded.strategies,
			evidence_ids=excluded.evidence_ids, reason=excluded.reason, recorded_at=excluded.recorded_at,
			version=verification_results.version+1`,
			string(res.TaskID), string(res.ID), string(res.AgentID), string(res.Verdict),
			string(dims), res.OverallScore, string(strategies), string(evidenceIDs), res.Reason, res.RecordedAt.UTC())
	}
	if err != nil {
		return model.VerificationResult{}, false, fmt.Errorf("store: put verification: %w", err)
	}
	return res, true, nil
}

func (s *SQLStore) GetVerification(ctx context.Context, taskID model.TaskId) (*model.VerificationResult, error) {
	row := s.queryRow(ctx, `SELECT verification_id, agent_id, verdict, dimensions, overall_score, strategies, evidence_ids, reason, recorded_at
		FROM verification_results WHERE task_id = ?`, string(taskID))

	var (
		vid, agentID, verdict, dims, strategies, evidenceIDs string
		overall                                              float64
		reason                                                sql.NullString
		recordedAt                                            time.Time
	)
	err := row.Scan(&vid, &agentID, &verdict, &dims, &overall, &strategies, &evidenceIDs, &reason, &recordedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get verification: %w", err)
	}

	res := &model.VerificationResult{
		ID:           model.VerificationId(vid),
		TaskID:       taskID,
		AgentID:      model.AgentId(agentID),
		Verdict:      model.Verdict(verdict),
		OverallScore: overall,
		Reason:       reason.String,
		RecordedAt:   recordedAt,
	}
	if err := json.Unmarshal([]byte(dims), &res.Dimensions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(strategies), &res.Strategies); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(evidenceIDs), &res.EvidenceIDs); err != nil {
		return nil, err
	}
	return res, nil
}

// ---- Checkpoint ----

func (s *SQLStore) GetOrCreate(ctx context.Context, taskID model.TaskId, stateDigest string) (*model.Checkpoint, error) {
	cp, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if cp != nil {
		return cp, nil
	}
	cp = model.NewCheckpoint(taskID, stateDigest, time.Now().UTC())
	if err := s.insertCheckpoint(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

func (s *SQLStore) insertCheckpoint(ctx context.Context, cp *model.Checkpoint) error {
	actions, err := json.Marshal(cp.Actions)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO checkpoints (task_id, checkpoint_id, actions, state_digest, state, created_at, version)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		string(cp.TaskID), string(cp.ID), string(actions), cp.StateDigest, string(cp.State), cp.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: insert checkpoint: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, taskID model.TaskId) (*model.Checkpoint, error) {
	row := s.queryRow(ctx, `SELECT checkpoint_id, actions, state_digest, state, created_at
		FROM checkpoints WHERE task_id = ?`, string(taskID))

	var (
		cpID, actions, state string
		digest               sql.NullString
		createdAt            time.Time
	)
	err := row.Scan(&cpID, &actions, &digest, &state, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get checkpoint: %w", err)
	}

	cp := &model.Checkpoint{
		ID:          model.CheckpointId(cpID),
		TaskID:      taskID,
		StateDigest: digest.String,
		State:       model.CheckpointState(state),
		CreatedAt:   createdAt,
	}
	if err := json.Unmarshal([]byte(actions), &cp.Actions); err != nil {
		return nil, err
	}
	cp.RebuildSeenHashes()
	return cp, nil
}

func (s *SQLStore) Save(ctx context.Context, cp *model.Checkpoint) error {
	actions, err := json.Marshal(cp.Actions)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `UPDATE checkpoints SET actions = ?, state = ?, version = version + 1 WHERE task_id = ?`,
		string(actions), string(cp.State), string(cp.TaskID))
	if err != nil {
		return fmt.Errorf("store: save checkpoint: %w", err)
	}
	return nil
}

// ---- Ledger ----

func (s *SQLStore) GetReliability(ctx context.Context, agentID model.AgentId) (model.ReliabilityMetric, error) {
	row := s.queryRow(ctx, `SELECT window_size, success_rate, avg_quality, avg_latency_ms, anomaly_count, last_updated
		FROM reliability_metrics WHERE agent_id = ?`, string(agentID))

	var m model.ReliabilityMetric
	m.AgentID = agentID
	err := row.Scan(&m.WindowSize, &m.SuccessRate, &m.AvgQuality, &m.AvgLatencyMs, &m.AnomalyCount, &m.LastUpdated)
	if err == sql.ErrNoRows {
		return model.ReliabilityMetric{AgentID: agentID}, nil
	}
	if err != nil {
		return model.ReliabilityMetric{}, fmt.Errorf("store: get reliability: %w", err)
	}
	return m, nil
}

func (s *SQLStore) PutReliability(ctx context.Context, m model.ReliabilityMetric) error {
	var err error
	switch s.dialect {
	case "mysql":
		_, err = s.exec(ctx, `INSERT INTO reliability_metrics
			(agent_id, window_size, success_rate, avg_quality, avg_latency_ms, anomaly_count, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE window_size=VALUES(window_size), success_rate=VALUES(success_rate),
			avg_quality=VALUES(avg_quality), avg_latency_ms=VALUES(avg_latency_ms),
			anomaly_count=VALUES(anomaly_count), last_updated=VALUES(last_updated)`,
			string(m.AgentID), m.WindowSize, m.SuccessRate, m.AvgQuality, m.AvgLatencyMs, m.AnomalyCount, m.LastUpdated.UTC())
	default:
		_, err = s.exec(ctx, `INSERT INTO reliability_metrics
			(agent_id, window_size, success_rate, avg_quality, avg_latency_ms, anomaly_count, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (agent_id) DO UPDATE SET window_size=excluded.window_size, success_rate=excluded.success_rate,
			avg_quality=excluded.avg_quality, avg_latency_ms=excluded.avg_latency_ms,
			anomaly_count=excluded.anomaly_count, last_updated=excluded.last_updated`,
			string(m.AgentID), m.WindowSize, m.SuccessRate, m.AvgQuality, m.AvgLatencyMs, m.AnomalyCount, m.LastUpdated.UTC())
	}
	if err != nil {
		return fmt.Errorf("store: put reliability: %w", err)
	}
	return nil
}

// ---- Outbox ----

func (s *SQLStore) AppendOutbox(ctx context.Context, events []model.BusEvent) error {
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return err
		}
		_, err = s.exec(ctx, `INSERT INTO bus_outbox (seq, kind, task_id, agent_id, ts, payload)
			VALUES (?, ?, ?, ?, ?, ?)`,
			int64(ev.Seq), string(ev.Kind), string(ev.TaskID), string(ev.AgentID), ev.TS.UTC(), string(payload))
		if err != nil {
			return fmt.Errorf("store: append outbox event seq=%d: %w", ev.Seq, err)
		}
	}
	return nil
}

func (s *SQLStore) ReadFrom(ctx context.Context, fromSeq uint64, limit int) ([]model.BusEvent, error) {
	q := `SELECT seq, kind, task_id, agent_id, ts, payload FROM bus_outbox
		WHERE seq > ? ORDER BY seq ASC`
	args := []any{int64(fromSeq)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BusEvent
	for rows.Next() {
		var (
			seq                     int64
			kind, taskID, agentID   string
			ts                      time.Time
			payload                 string
		)
		if err := rows.Scan(&seq, &kind, &taskID, &agentID, &ts, &payload); err != nil {
			return nil, err
		}
		ev := model.BusEvent{
			Seq:     uint64(seq),
			Kind:    model.EventKind(kind),
			TaskID:  model.TaskId(taskID),
			AgentID: model.AgentId(agentID),
			TS:      ts,
		}
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLStore) Depth(ctx context.Context) (int64, error) {
	var n int64
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM bus_outbox`).Scan(&n)
	return n, err
}

func (s *SQLStore) HighWaterMark(ctx context.Context) (uint64, error) {
	var seq int64
	err := s.queryRow(ctx, `SELECT seq FROM outbox_hwm WHERE id = 1`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(seq), nil
}

func (s *SQLStore) AdvanceHighWaterMark(ctx context.Context, seq uint64) error {
	var err error
	switch s.dialect {
	case "mysql":
		_, err = s.exec(ctx, `INSERT INTO outbox_hwm (id, seq) VALUES (1, ?)
			ON DUPLICATE KEY UPDATE seq = GREATEST(seq, VALUES(seq))`, int64(seq))
	case "postgres":
		_, err = s.exec(ctx, `INSERT INTO outbox_hwm (id, seq) VALUES (1, ?)
			ON CONFLICT (id) DO UPDATE SET seq = GREATEST(outbox_hwm.seq, excluded.seq)`, int64(seq))
	default:
		_, err = s.exec(ctx, `INSERT INTO outbox_hwm (id, seq) VALUES (1, ?)
			ON CONFLICT (id) DO UPDATE SET seq = MAX(outbox_hwm.seq, excluded.seq)`, int64(seq))
	}
	if err != nil {
		return fmt.Errorf("store: advance high-water mark: %w", err)
	}
	return nil
}

// ---- Agents ----

func (s *SQLStore) PutAgent(ctx context.Context, a model.Agent) error {
	caps, err := json.Marshal(a.Capabilities)
	if err != nil {
		return err
	}
	switch s.dialect {
	case "mysql":
		_, err = s.exec(ctx, `INSERT INTO agents (agent_id, display_name, capabilities, registered_at, state, last_heartbeat)
			VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE display_name=VALUES(display_name), capabilities=VALUES(capabilities),
			state=VALUES(state), last_heartbeat=VALUES(last_heartbeat)`,
			string(a.ID), a.DisplayName, string(caps), a.RegisteredAt.UTC(), string(a.State), nullableTime(a.LastHeartbeat))
	default:
		_, err = s.exec(ctx, `INSERT INTO agents (agent_id, display_name, capabilities, registered_at, state, last_heartbeat)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (agent_id) DO UPDATE SET display_name=excluded.display_name, capabilities=excluded.capabilities,
			state=excluded.state, last_heartbeat=excluded.last_heartbeat`,
			string(a.ID), a.DisplayName, string(caps), a.RegisteredAt.UTC(), string(a.State), nullableTime(a.LastHeartbeat))
	}
	if err != nil {
		return fmt.Errorf("store: put agent %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLStore) GetAgent(ctx context.Context, id model.AgentId) (*model.Agent, error) {
	row := s.queryRow(ctx, `SELECT display_name, capabilities, registered_at, state, last_heartbeat
		FROM agents WHERE agent_id = ?`, string(id))

	var (
		displayName, caps, state string
		registeredAt             time.Time
		lastHeartbeat            sql.NullTime
	)
	err := row.Scan(&displayName, &caps, &registeredAt, &state, &lastHeartbeat)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get agent: %w", err)
	}

	a := &model.Agent{
		ID:           id,
		DisplayName:  displayName,
		RegisteredAt: registeredAt,
		State:        model.AgentState(state),
	}
	if lastHeartbeat.Valid {
		a.LastHeartbeat = lastHeartbeat.Time
	}
	if err := json.Unmarshal([]byte(caps), &a.Capabilities); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *SQLStore) SetAgentState(ctx context.Context, id model.AgentId, state model.AgentState, at time.Time) error {
	res, err := s.exec(ctx, `UPDATE agents SET state = ?, last_heartbeat = ? WHERE agent_id = ?`,
		string(state), at.UTC(), string(id))
	if err != nil {
		return fmt.Errorf("store: set agent state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("store: unknown agent %s", id)
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// ---- Tasks ----

func (s *SQLStore) PutTask(ctx context.Context, t model.Task) error {
	tags, err := json.Marshal(t.RequirementTags)
	if err != nil {
		return err
	}
	var declaredCompleteAt any
	if t.DeclaredCompleteAt != nil {
		declaredCompleteAt = t.DeclaredCompleteAt.UTC()
	}
	switch s.dialect {
	case "mysql":
		_, err = s.exec(ctx, `INSERT INTO tasks (task_id, agent_id, description, requirement_tags, created_at, declared_complete_at, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE agent_id=VALUES(agent_id), description=VALUES(description),
			requirement_tags=VALUES(requirement_tags), declared_complete_at=VALUES(declared_complete_at), status=VALUES(status)`,
			string(t.ID), string(t.AgentID), t.Description, string(tags), t.CreatedAt.UTC(), declaredCompleteAt, string(t.Status))
	default:
		_, err = s.exec(ctx, `INSERT INTO tasks (task_id, agent_id, description, requirement_tags, created_at, declared_complete_at, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (task_id) DO UPDATE SET agent_id=excluded.agent_id, description=excluded.description,
			requirement_tags=excluded.requirement_tags, declared_complete_at=excluded.declared_complete_at, status=excluded.status`,
			string(t.ID), string(t.AgentID), t.Description, string(tags), t.CreatedAt.UTC(), declaredCompleteAt, string(t.Status))
	}
	if err != nil {
		return fmt.Errorf("store: put task %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLStore) GetTask(ctx context.Context, id model.TaskId) (*model.Task, error) {
	row := s.queryRow(ctx, `SELECT agent_id, description, requirement_tags, created_at, declared_complete_at, status
		FROM tasks WHERE task_id = ?`, string(id))

	var (
		agentID, description, tags, status string
		createdAt                          time.Time
		declaredCompleteAt                 sql.NullTime
	)
	err := row.Scan(&agentID, &description, &tags, &createdAt, &declaredCompleteAt, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get task: %w", err)
	}

	t := &model.Task{
		ID:          id,
		AgentID:     model.AgentId(agentID),
		Description: description,
		CreatedAt:   createdAt,
		Status:      model.TaskStatus(status),
	}
	if declaredCompleteAt.Valid {
		ts := declaredCompleteAt.Time
		t.DeclaredCompleteAt = &ts
	}
	if err := json.Unmarshal([]byte(tags), &t.RequirementTags); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLStore) SetTaskStatus(ctx context.Context, id model.TaskId, status model.TaskStatus) error {
	res, err := s.exec(ctx, `UPDATE tasks SET status = ? WHERE task_id = ?`, string(status), string(id))
	if err != nil {
		return fmt.Errorf("store: set task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("store: unknown task %s", id)
	}
	return nil
}
