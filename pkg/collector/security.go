package collector

import (
	"fmt"
	"time"

	"github.com/neikan-bsn/ares/pkg/model"
)

// securityItems synthesizes SECURITY evidence by scanning output file
// paths, tool-call parameters, and their string values for the
// configured secret patterns — this evidence source is never read
// directly off the input, it is derived by scanning outputs for
// sensitive-data patterns and unsafe tool parameter shapes.
func (c *Collector) securityItems(taskID model.TaskId, raw rawEvidence, now time.Time) []model.EvidenceItem {
	var out []model.EvidenceItem

	if raw.Outputs != nil {
		for _, f := range raw.Outputs.FilesCreated {
			if m, re := c.firstMatch(f.Path); m {
				out = append(out, c.securityItem(taskID, re, fmt.Sprintf("outputs.files_created[%s]", f.Path), now))
			}
		}
	}

	for i, tc := range raw.ToolCalls {
		for key, v := range tc.Parameters {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if m, re := c.firstMatch(s); m {
				out = append(out, c.securityItem(taskID, re, fmt.Sprintf("tool_calls[%d].parameters.%s", i, key), now))
			}
		}
	}
	return out
}

func (c *Collector) firstMatch(s string) (bool, string) {
	for _, re := range c.patterns {
		if re.MatchString(s) {
			return true, re.String()
		}
	}
	return false, ""
}

func (c *Collector) securityItem(taskID model.TaskId, matched, location string, now time.Time) model.EvidenceItem {
	payload := &model.SecurityPayload{
		Matched:  matched,
		Location: location,
		Severity: 1.0, // a matched secret pattern is always treated as a hard signal
	}
	// SECURITY evidence confidence is not subject to the missing-field
	// deduction table: it either fired (confidence 1.0, a hard signal
	// for the Security strategy's hard-fail rule) or it doesn't exist.
	return c.newItem(taskID, model.SourceSecurity, payload, 1.0, now)
}
