package model

import "time"

// EvidenceSource is the tagged-variant discriminator for EvidenceItem.
// The source spec's dynamic, arbitrarily-shaped evidence dictionaries are
// turned into exactly these five fixed variants at ingestion time;
// anything unrecognized is dropped at ingestion, never carried forward
// for the verifier to re-interpret.
type EvidenceSource string

const (
	SourceOutput       EvidenceSource = "OUTPUT"
	SourceToolUsage    EvidenceSource = "TOOL_USAGE"
	SourcePerformance  EvidenceSource = "PERFORMANCE"
	SourceSecurity     EvidenceSource = "SECURITY"
	SourceCodeArtifact EvidenceSource = "CODE_ARTIFACT"
)

// OutputPayload is the OUTPUT evidence variant.
type OutputPayload struct {
	FilesCreated      []string
	CompletenessScore *float64
	AccuracyScore     *float64
	FormatCompliance  *bool
	ErrorHandlingScore *float64
}

// ToolUsagePayload is the TOOL_USAGE evidence variant, one per declared
// tool_calls[] entry.
type ToolUsagePayload struct {
	ToolName   string
	Parameters map[string]any
	DurationMs *int64
	Success    *bool
	Appropriate *bool
	Efficient   *bool
}

// PerformancePayload is the PERFORMANCE evidence variant.
type PerformancePayload struct {
	ExecutionTimeMs *float64
	MemoryUsageMB   *float64
	CPUUsagePercent *float64
	ErrorRate       *float64
}

// CodeArtifactPayload is the CODE_ARTIFACT evidence variant, one per
// files_created[] entry that carries artifact-shaped fields.
type CodeArtifactPayload struct {
	Path         string
	SizeBytes    *int64
	Lines        *int64
	Complexity   *float64
	HasDocs      *bool
	HasTests     *bool
	FollowsStyle *bool
}

// SecurityPayload is the SECURITY evidence variant, synthesized by the
// Collector by scanning outputs and tool parameters rather than read
// directly off the input.
type SecurityPayload struct {
	Matched   string // the secret pattern or unsafe-parameter rule that fired
	Location  string // where it was found, e.g. "tool_calls[2].parameters.body"
	Severity  float64
}

// EvidenceItem is a typed, append-only record justifying some facet of a
// Task. Evidence ids never repeat and no update of an evidence row ever
// occurs (spec I3).
type EvidenceItem struct {
	ID          EvidenceId
	TaskID      TaskId
	Source      EvidenceSource
	Payload     any // one of the *Payload types above, matching Source
	Confidence  float64
	CollectedAt time.Time
}

// EvidenceSummary is the Collector's aggregate view of a task's evidence:
// counts per source and the min/mean/max confidence across all items.
type EvidenceSummary struct {
	TaskID        TaskId
	CountBySource map[EvidenceSource]int
	MinConfidence float64
	MeanConfidence float64
	MaxConfidence float64
	Total         int
}
