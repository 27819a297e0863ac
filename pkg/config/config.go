// Package config defines ARES's configuration snapshot and the YAML +
// environment-variable loader that produces it.
package config

import (
	"fmt"

	"github.com/neikan-bsn/ares/pkg/observability"
)

// Config is the configuration snapshot loaded once at process start;
// process-wide state is limited to this snapshot, and it is reloaded
// only at process restart.
type Config struct {
	OutputQualityMin float64 `yaml:"output_quality_min"`
	CompletionMin    float64 `yaml:"completion_min"`
	PartialMin       float64 `yaml:"partial_min"`
	SecurityAlarmMin float64 `yaml:"security_alarm_min"`

	ErrorRateCeiling  float64 `yaml:"error_rate_ceiling"`
	PerfTimeCeilingMs float64 `yaml:"perf_time_ceiling_ms"`
	PerfMemCeilingMB  float64 `yaml:"perf_mem_ceiling_mb"`

	VerificationDeadlineMs int64 `yaml:"verification_deadline_ms"`

	BehaviorWindowResults int `yaml:"behavior_window_results"`
	BehaviorWindowDays    int `yaml:"behavior_window_days"`

	RollbackRetryMax      int   `yaml:"rollback_retry_max"`
	RollbackBackoffBaseMs int64 `yaml:"rollback_backoff_base_ms"`
	RollbackBackoffCapMs  int64 `yaml:"rollback_backoff_cap_ms"`

	OutboxHighWater int64 `yaml:"outbox_high_water"`
	OutboxLowWater  int64 `yaml:"outbox_low_water"`

	// RequirementsVocabulary is the ordered list of recognized
	// requirement tags; the Requirements-Match strategy returns the tags
	// it extracts in this order.
	RequirementsVocabulary []string `yaml:"requirements_vocabulary"`

	// SecretPatterns is the regex set used by both the Validator's
	// Sensitive-data dimension and the Collector's SECURITY synthesis.
	SecretPatterns []string `yaml:"secret_patterns"`

	// ToolCatalog is populated from RawToolCatalog via BuildToolCatalog
	// once param schemas have been generated; it is not itself YAML.
	ToolCatalog    map[string]ToolCatalogEntry    `yaml:"-"`
	RawToolCatalog map[string]RawToolCatalogEntry `yaml:"tool_catalog"`

	// ConfidenceDeductions is the Collector's configurable deduction
	// table: per missing recognized field, how much confidence to
	// subtract, and the floor below which confidence never drops.
	ConfidenceDeductions ConfidenceDeductionTable `yaml:"confidence_deductions"`

	// DeniedHosts backs the Parameter-safety dimension's "no URLs to
	// denied hosts" rule.
	DeniedHosts []string `yaml:"denied_hosts"`

	// Observability configures tracing and metrics for the whole process.
	Observability observability.Config `yaml:"observability"`

	// DatabaseDialect/DSN select the SQL store's dialect ("postgres",
	// "mysql", "sqlite") and connection string.
	DatabaseDialect string `yaml:"database_dialect"`
	DatabaseDSN     string `yaml:"database_dsn"`

	// ListenAddr is the internal/httpapi edge adapter's bind address.
	ListenAddr string `yaml:"listen_addr"`

	// JWTPublicKeyPath, when set, enables bearer-token authentication on
	// the HTTP edge adapter.
	JWTPublicKeyPath string `yaml:"jwt_public_key_path"`
}

// ConfidenceDeductionTable is the Collector's confidence-scoring
// configuration: the exact deduction table is a configuration input
// rather than a hardcoded constant.
type ConfidenceDeductionTable struct {
	PerMissingNumericField float64 `yaml:"per_missing_numeric_field"`
	PerMissingBoolField    float64 `yaml:"per_missing_bool_field"`
	Floor                  float64 `yaml:"floor"`
}

// RawToolCatalogEntry is the YAML-facing shape of a tool_catalog entry,
// before its JSON Schema has been generated from the declared params.
type RawToolCatalogEntry struct {
	CapabilityTag     string            `yaml:"capability_tag"`
	DurationCeilingMs int64             `yaml:"duration_ceiling_ms"`
	MemoryCeilingMB   float64           `yaml:"memory_ceiling_mb"`
	RequiredParams    map[string]string `yaml:"required_params"` // name -> kind (string|number|bool|object|array)
	OptionalParams    map[string]string `yaml:"optional_params"`
}

// Default returns the configuration snapshot with every default value
// populated, applying SetDefaults eagerly rather than mutating a
// caller-supplied struct.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills zero-valued fields with their documented defaults.
func (c *Config) SetDefaults() {
	if c.OutputQualityMin == 0 {
		c.OutputQualityMin = 0.8
	}
	if c.CompletionMin == 0 {
		c.CompletionMin = 0.8
	}
	if c.PartialMin == 0 {
		c.PartialMin = 0.6
	}
	if c.SecurityAlarmMin == 0 {
		c.SecurityAlarmMin = 0.85
	}
	if c.ErrorRateCeiling == 0 {
		c.ErrorRateCeiling = 0.05
	}
	if c.PerfTimeCeilingMs == 0 {
		c.PerfTimeCeilingMs = 1000
	}
	if c.PerfMemCeilingMB == 0 {
		c.PerfMemCeilingMB = 500
	}
	if c.VerificationDeadlineMs == 0 {
		c.VerificationDeadlineMs = 30000
	}
	if c.BehaviorWindowResults == 0 {
		c.BehaviorWindowResults = 100
	}
	if c.BehaviorWindowDays == 0 {
		c.BehaviorWindowDays = 7
	}
	if c.RollbackRetryMax == 0 {
		c.RollbackRetryMax = 3
	}
	if c.RollbackBackoffBaseMs == 0 {
		c.RollbackBackoffBaseMs = 1000
	}
	if c.RollbackBackoffCapMs == 0 {
		c.RollbackBackoffCapMs = 30000
	}
	if c.OutboxHighWater == 0 {
		c.OutboxHighWater = 1_000_000
	}
	if c.OutboxLowWater == 0 {
		c.OutboxLowWater = 750_000
	}
	if c.DatabaseDialect == "" {
		c.DatabaseDialect = "sqlite"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8443"
	}
	c.Observability.SetDefaults()
	if c.ConfidenceDeductions.PerMissingNumericField == 0 {
		c.ConfidenceDeductions.PerMissingNumericField = 0.1
	}
	if c.ConfidenceDeductions.PerMissingBoolField == 0 {
		c.ConfidenceDeductions.PerMissingBoolField = 0.1
	}
	if c.ConfidenceDeductions.Floor == 0 {
		c.ConfidenceDeductions.Floor = 0.3
	}
	if len(c.SecretPatterns) == 0 {
		c.SecretPatterns = []string{
			`-----BEGIN [A-Z ]*PRIVATE KEY-----`,
			`(?i)api[_-]?key\s*[:=]\s*['"][A-Za-z0-9_\-]{16,}['"]`,
			`(?i)aws_secret_access_key\s*[:=]`,
			`sk-[A-Za-z0-9]{20,}`,
		}
	}
}

// Validate checks the snapshot for internal consistency; it does not
// mutate the config. Call SetDefaults first for a config assembled by
// hand rather than loaded from YAML.
func (c *Config) Validate() error {
	if c.PartialMin > c.CompletionMin {
		return fmt.Errorf("config: partial_min (%v) must be <= completion_min (%v)", c.PartialMin, c.CompletionMin)
	}
	if c.OutboxLowWater > c.OutboxHighWater {
		return fmt.Errorf("config: outbox_low_water (%v) must be <= outbox_high_water (%v)", c.OutboxLowWater, c.OutboxHighWater)
	}
	if c.RollbackRetryMax < 1 {
		return fmt.Errorf("config: rollback_retry_max must be >= 1, got %d", c.RollbackRetryMax)
	}
	if c.ConfidenceDeductions.Floor < 0 || c.ConfidenceDeductions.Floor > 1 {
		return fmt.Errorf("config: confidence_deductions.floor must be in [0,1], got %v", c.ConfidenceDeductions.Floor)
	}
	for name, e := range c.RawToolCatalog {
		if e.DurationCeilingMs <= 0 {
			return fmt.Errorf("config: tool_catalog[%s].duration_ceiling_ms must be > 0", name)
		}
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
