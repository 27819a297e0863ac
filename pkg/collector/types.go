// Package collector implements the Proof-of-Work Collector (C4): it
// normalizes a raw completion_evidence blob into typed EvidenceItems
// with independently computed confidence scores, using a lenient
// mapstructure-based decode.
package collector

// rawEvidence mirrors the recognized top-level keys of completion_evidence.
// Unknown fields are ignored by mapstructure's default behavior (no
// ErrorUnused), so callers can send additional fields without the
// decode failing.
type rawEvidence struct {
	Outputs            *rawOutputs             `mapstructure:"outputs"`
	ToolCalls          []rawToolCall           `mapstructure:"tool_calls"`
	PerformanceMetrics *rawPerformanceMetrics  `mapstructure:"performance_metrics"`
}

type rawOutputs struct {
	FilesCreated       []rawFileCreated `mapstructure:"files_created"`
	CompletenessScore  *float64         `mapstructure:"completeness_score"`
	AccuracyScore      *float64         `mapstructure:"accuracy_score"`
	FormatCompliance   *bool            `mapstructure:"format_compliance"`
	ErrorHandlingScore *float64         `mapstructure:"error_handling_score"`
}

type rawFileCreated struct {
	Path         string   `mapstructure:"path"`
	Size         *int64   `mapstructure:"size"`
	Lines        *int64   `mapstructure:"lines"`
	Complexity   *float64 `mapstructure:"complexity"`
	HasDocs      *bool    `mapstructure:"has_docs"`
	HasTests     *bool    `mapstructure:"has_tests"`
	FollowsStyle *bool    `mapstructure:"follows_style"`
}

type rawToolCall struct {
	ToolName    string         `mapstructure:"tool_name"`
	Parameters  map[string]any `mapstructure:"parameters"`
	DurationMs  *int64         `mapstructure:"duration_ms"`
	Success     *bool          `mapstructure:"success"`
	Appropriate *bool          `mapstructure:"appropriate"`
	Efficient   *bool          `mapstructure:"efficient"`
}

type rawPerformanceMetrics struct {
	ExecutionTimeMs *float64 `mapstructure:"execution_time_ms"`
	MemoryUsageMB   *float64 `mapstructure:"memory_usage_mb"`
	CPUUsagePercent *float64 `mapstructure:"cpu_usage_percent"`
	ErrorRate       *float64 `mapstructure:"error_rate"`
}
