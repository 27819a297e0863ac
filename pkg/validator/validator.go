// Package validator implements the Tool-Call Validator (C5): a stateless
// pre-flight/post-flight compliance check for a single ToolCall.
package validator

import (
	"time"

	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
)

// Validator is C5. It is stateless with respect to prior calls; it
// depends only on the call itself, the caller-supplied agent
// capabilities, and the registered tool catalog.
type Validator struct {
	cfg *config.Config
	now func() time.Time
}

func New(cfg *config.Config) *Validator {
	return &Validator{cfg: cfg, now: time.Now}
}

// Validate renders a ToolCallVerdict for tc. agentCapabilities is the
// capability-tag set declared by the owning Agent at the time of the
// call (the Authorization dimension's input); callers (pkg/ares) look
// this up from the Agent registry so the validator itself never reaches
// outside its arguments.
func (v *Validator) Validate(tc model.ToolCall, agentCapabilities []string) model.ToolCallVerdict {
	protocol := v.checkProtocol(tc)
	authz := v.checkAuthorization(tc, agentCapabilities, protocol)
	paramSafe := v.checkParamSafety(tc)
	resourceOK := v.checkResourceBudget(tc, protocol)
	noSecrets := v.checkSensitiveData(tc)

	verdict := model.ToolCallVerdict{
		Protocol:   protocol,
		Authz:      authz,
		ParamSafe:  paramSafe,
		ResourceOK: resourceOK,
		NoSecrets:  noSecrets,
		RecordedAt: v.now(),
	}
	verdict.Status = aggregate(protocol, authz, paramSafe, resourceOK, noSecrets)
	return verdict
}

// aggregate combines the dimension scores into a verdict: VALID iff all
// dimensions pass; INVALID if Protocol or Authorization fails;
// otherwise WARN.
func aggregate(protocol, authz, paramSafe, resourceOK, noSecrets model.DimensionScore) model.ToolCallStatus {
	if !protocol.Pass || !authz.Pass {
		return model.ToolCallInvalid
	}
	if paramSafe.Pass && resourceOK.Pass && noSecrets.Pass {
		return model.ToolCallValid
	}
	return model.ToolCallWarn
}

func (v *Validator) checkProtocol(tc model.ToolCall) model.DimensionScore {
	entry, ok := v.cfg.ToolCatalog[tc.ToolName]
	if !ok {
		return model.DimensionScore{Score: 0, Pass: false, Notes: "unknown tool name"}
	}
	missing, wrongType := schemaMissingOrMistyped(entry.Schema, tc.Parameters)
	if len(missing) > 0 {
		return model.DimensionScore{Score: 0, Pass: false, Notes: "missing required parameter: " + missing[0]}
	}
	if len(wrongType) > 0 {
		return model.DimensionScore{Score: 0, Pass: false, Notes: "wrong parameter type: " + wrongType[0]}
	}
	return model.DimensionScore{Score: 1, Pass: true}
}

func (v *Validator) checkAuthorization(tc model.ToolCall, capabilities []string, protocol model.DimensionScore) model.DimensionScore {
	if !protocol.Pass {
		// unknown tool: no capability tag to check against.
		return model.DimensionScore{Score: 0, Pass: false, Notes: "capability tag cannot be resolved for unknown tool"}
	}
	entry := v.cfg.ToolCatalog[tc.ToolName]
	for _, c := range capabilities {
		if c == entry.CapabilityTag {
			return model.DimensionScore{Score: 1, Pass: true}
		}
	}
	return model.DimensionScore{Score: 0, Pass: false, Notes: "capability tag absent: " + entry.CapabilityTag}
}

func (v *Validator) checkResourceBudget(tc model.ToolCall, protocol model.DimensionScore) model.DimensionScore {
	if !protocol.Pass {
		return model.DimensionScore{Score: 0, Pass: true, Notes: "skipped: unknown tool"}
	}
	entry := v.cfg.ToolCatalog[tc.ToolName]
	score := 1.0
	over := false
	var notes string

	if entry.DurationCeilingMs > 0 {
		ratio := float64(tc.DurationMs) / float64(entry.DurationCeilingMs)
		if ratio > 1.2 {
			over = true
			notes = "duration over ceiling by >20%"
		}
		if ratio > 1 {
			score = 0.5
		}
	}
	if entry.MemoryCeilingMB > 0 && tc.MemoryMB > 0 {
		ratio := tc.MemoryMB / entry.MemoryCeilingMB
		if ratio > 1.2 {
			over = true
			notes = "memory over ceiling by >20%"
		}
	}
	return model.DimensionScore{Score: score, Pass: !over, Notes: notes}
}

func (v *Validator) checkSensitiveData(tc model.ToolCall) model.DimensionScore {
	if loc := findSecret(tc.Parameters, v.cfg.SecretPatterns); loc != "" {
		return model.DimensionScore{Score: 0, Pass: false, Notes: "secret pattern matched at " + loc}
	}
	return model.DimensionScore{Score: 1, Pass: true}
}
