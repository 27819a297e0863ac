package validator

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/neikan-bsn/ares/pkg/model"
)

var (
	pathTraversalPattern = regexp.MustCompile(`(^|/)\.\.(/|$)`)
	sqlMetaPattern       = regexp.MustCompile(`(?i)(;\s*drop\s+table|--\s|/\*|\bunion\s+select\b|'\s*or\s+'1'\s*=\s*'1)`)
	urlPattern           = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
)

// checkParamSafety implements the Parameter-safety dimension: no
// path-traversal segments, no SQL injection patterns (matched anywhere
// in the string, quoted or not), no URLs to denied hosts.
func (v *Validator) checkParamSafety(tc model.ToolCall) model.DimensionScore {
	for key, val := range tc.Parameters {
		s, ok := val.(string)
		if !ok {
			continue
		}
		if pathTraversalPattern.MatchString(s) {
			return model.DimensionScore{Score: 0, Pass: false, Notes: fmt.Sprintf("path traversal in %s", key)}
		}
		if sqlMetaPattern.MatchString(s) {
			return model.DimensionScore{Score: 0, Pass: false, Notes: fmt.Sprintf("sql meta-characters in %s", key)}
		}
		if urlPattern.MatchString(s) {
			if host := deniedHost(s, v.cfg.DeniedHosts); host != "" {
				return model.DimensionScore{Score: 0, Pass: false, Notes: fmt.Sprintf("denied host %s in %s", host, key)}
			}
		}
	}
	return model.DimensionScore{Score: 1, Pass: true}
}

func deniedHost(raw string, denied []string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	for _, d := range denied {
		if strings.EqualFold(u.Hostname(), d) {
			return u.Hostname()
		}
	}
	return ""
}

// findSecret scans every string-valued parameter against the configured
// secret-pattern set, returning the first matching location or "" if
// clean.
func findSecret(params map[string]any, patterns []string) string {
	for key, val := range params {
		s, ok := val.(string)
		if !ok {
			continue
		}
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				continue
			}
			if re.MatchString(s) {
				return key
			}
		}
	}
	return ""
}

func matchesKind(v any, kind string) bool {
	switch kind {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "bool", "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
