package ares

import "github.com/neikan-bsn/ares/pkg/model"

// descriptorForToolCall derives a compensating-action descriptor from a
// ToolCall's name and parameters, appended as ToolCalls are observed.
// The tool-name-to-kind mapping is heuristic; read-only tools (no
// recognized mutating verb) get no descriptor at all, since there is
// nothing to undo.
func descriptorForToolCall(tc model.ToolCall) (model.CompensatingAction, bool) {
	switch {
	case hasAnyPrefix(tc.ToolName, "write_", "create_", "save_"):
		path, _ := tc.Parameters["path"].(string)
		if path == "" {
			return model.CompensatingAction{}, false
		}
		return model.CompensatingAction{
			Kind:   model.ActionDeleteFile,
			Params: map[string]any{"path": path},
		}, true

	case hasAnyPrefix(tc.ToolName, "delete_", "remove_"):
		path, _ := tc.Parameters["path"].(string)
		if path == "" {
			return model.CompensatingAction{}, false
		}
		return model.CompensatingAction{
			Kind:   model.ActionRestoreFile,
			Params: map[string]any{"path": path},
		}, true

	case hasAnyPrefix(tc.ToolName, "grant_", "authorize_"):
		return model.CompensatingAction{
			Kind:   model.ActionRevokeGrant,
			Params: copyParams(tc.Parameters),
		}, true

	case hasAnyPrefix(tc.ToolName, "update_", "set_", "patch_"):
		return model.CompensatingAction{
			Kind:   model.ActionRevertRecord,
			Params: copyParams(tc.Parameters),
		}, true

	default:
		return model.CompensatingAction{}, false
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
