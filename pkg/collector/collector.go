package collector

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/store"
)

// Collector is C4, the Proof-of-Work Collector.
type Collector struct {
	store    store.EvidenceStore
	cfg      *config.Config
	patterns []*regexp.Regexp
	now      func() time.Time
}

// New constructs a Collector. now defaults to time.Now; tests may
// override it for deterministic collected_at timestamps.
func New(st store.EvidenceStore, cfg *config.Config) *Collector {
	patterns := make([]*regexp.Regexp, 0, len(cfg.SecretPatterns))
	for _, p := range cfg.SecretPatterns {
		if re, err := regexp.Compile(p); err == nil {
			patterns = append(patterns, re)
		}
	}
	return &Collector{store: st, cfg: cfg, patterns: patterns, now: time.Now}
}

// ErrMalformed is returned when raw_evidence cannot be decoded at all:
// callers should write an ERROR result immediately and store no evidence.
type ErrMalformed struct{ Cause error }

func (e *ErrMalformed) Error() string { return fmt.Sprintf("collector: malformed evidence: %v", e.Cause) }
func (e *ErrMalformed) Unwrap() error { return e.Cause }

// Collect turns rawCompletionEvidence (an arbitrary JSON-shaped value,
// e.g. map[string]any as decoded from a wire request) into typed
// EvidenceItems, persists them, and returns them in declaration order.
func (c *Collector) Collect(ctx context.Context, taskID model.TaskId, agentID model.AgentId, rawCompletionEvidence any) ([]model.EvidenceItem, error) {
	var raw rawEvidence
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &raw,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return nil, &ErrMalformed{Cause: err}
	}
	if err := dec.Decode(rawCompletionEvidence); err != nil {
		return nil, &ErrMalformed{Cause: err}
	}

	now := c.now()
	var items []model.EvidenceItem

	if raw.Outputs != nil {
		items = append(items, c.outputItem(taskID, raw.Outputs, now))
		for _, f := range raw.Outputs.FilesCreated {
			items = append(items, c.codeArtifactItem(taskID, f, now))
		}
	}
	for _, tc := range raw.ToolCalls {
		items = append(items, c.toolUsageItem(taskID, tc, now))
	}
	if raw.PerformanceMetrics != nil {
		items = append(items, c.performanceItem(taskID, raw.PerformanceMetrics, now))
	}
	items = append(items, c.securityItems(taskID, raw, now)...)

	if len(items) > 0 {
		if err := c.store.AppendEvidence(ctx, items); err != nil {
			return nil, fmt.Errorf("collector: persisting evidence: %w", err)
		}
	}
	return items, nil
}

func (c *Collector) newItem(taskID model.TaskId, source model.EvidenceSource, payload any, confidence float64, now time.Time) model.EvidenceItem {
	return model.EvidenceItem{
		ID:          model.NewEvidenceId(),
		TaskID:      taskID,
		Source:      source,
		Payload:     payload,
		Confidence:  confidence,
		CollectedAt: now,
	}
}

func (c *Collector) outputItem(taskID model.TaskId, o *rawOutputs, now time.Time) model.EvidenceItem {
	missing := 0
	if o.CompletenessScore == nil {
		missing++
	}
	if o.AccuracyScore == nil {
		missing++
	}
	if o.ErrorHandlingScore == nil {
		missing++
	}
	missingBool := 0
	if o.FormatCompliance == nil {
		missingBool++
	}

	files := make([]string, 0, len(o.FilesCreated))
	for _, f := range o.FilesCreated {
		files = append(files, f.Path)
	}
	payload := &model.OutputPayload{
		FilesCreated:       files,
		CompletenessScore:  o.CompletenessScore,
		AccuracyScore:      o.AccuracyScore,
		FormatCompliance:   o.FormatCompliance,
		ErrorHandlingScore: o.ErrorHandlingScore,
	}
	conf := c.confidence(missing, missingBool)
	return c.newItem(taskID, model.SourceOutput, payload, conf, now)
}

func (c *Collector) codeArtifactItem(taskID model.TaskId, f rawFileCreated, now time.Time) model.EvidenceItem {
	missing := 0
	if f.Size == nil {
		missing++
	}
	if f.Lines == nil {
		missing++
	}
	if f.Complexity == nil {
		missing++
	}
	missingBool := 0
	if f.HasDocs == nil {
		missingBool++
	}
	if f.HasTests == nil {
		missingBool++
	}
	if f.FollowsStyle == nil {
		missingBool++
	}
	payload := &model.CodeArtifactPayload{
		Path:         f.Path,
		SizeBytes:    f.Size,
		Lines:        f.Lines,
		Complexity:   f.Complexity,
		HasDocs:      f.HasDocs,
		HasTests:     f.HasTests,
		FollowsStyle: f.FollowsStyle,
	}
	conf := c.confidence(missing, missingBool)
	return c.newItem(taskID, model.SourceCodeArtifact, payload, conf, now)
}

func (c *Collector) toolUsageItem(taskID model.TaskId, tc rawToolCall, now time.Time) model.EvidenceItem {
	missing := 0
	if tc.DurationMs == nil {
		missing++
	}
	missingBool := 0
	if tc.Success == nil {
		missingBool++
	}
	if tc.Appropriate == nil {
		missingBool++
	}
	if tc.Efficient == nil {
		missingBool++
	}
	payload := &model.ToolUsagePayload{
		ToolName:    tc.ToolName,
		Parameters:  tc.Parameters,
		DurationMs:  tc.DurationMs,
		Success:     tc.Success,
		Appropriate: tc.Appropriate,
		Efficient:   tc.Efficient,
	}
	conf := c.confidence(missing, missingBool)
	return c.newItem(taskID, model.SourceToolUsage, payload, conf, now)
}

func (c *Collector) performanceItem(taskID model.TaskId, p *rawPerformanceMetrics, now time.Time) model.EvidenceItem {
	missing := 0
	if p.ExecutionTimeMs == nil {
		missing++
	}
	if p.MemoryUsageMB == nil {
		missing++
	}
	if p.CPUUsagePercent == nil {
		missing++
	}
	if p.ErrorRate == nil {
		missing++
	}
	payload := &model.PerformancePayload{
		ExecutionTimeMs: p.ExecutionTimeMs,
		MemoryUsageMB:   p.MemoryUsageMB,
		CPUUsagePercent: p.CPUUsagePercent,
		ErrorRate:       p.ErrorRate,
	}
	conf := c.confidence(missing, 0)
	return c.newItem(taskID, model.SourcePerformance, payload, conf, now)
}

// confidence starts at 1.0, deducted by a fixed amount per missing
// recognized field, floored.
func (c *Collector) confidence(missingNumeric, missingBool int) float64 {
	d := c.cfg.ConfidenceDeductions
	conf := 1.0 - float64(missingNumeric)*d.PerMissingNumericField - float64(missingBool)*d.PerMissingBoolField
	if conf < d.Floor {
		conf = d.Floor
	}
	return conf
}

// Summarize returns counts per source and the min/mean/max confidence.
func (c *Collector) Summarize(ctx context.Context, taskID model.TaskId) (model.EvidenceSummary, error) {
	return c.store.Summarize(ctx, taskID)
}
