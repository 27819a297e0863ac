package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neikan-bsn/ares/pkg/ares"
	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/model"
	"github.com/neikan-bsn/ares/pkg/rollback"
	"github.com/neikan-bsn/ares/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.ToolCatalog = map[string]config.ToolCatalogEntry{
		"write_file": {CapabilityTag: "fs", DurationCeilingMs: 10000},
	}
	st := store.NewMemoryStore()
	reg := rollback.NewRegistry()
	svc, err := ares.New(context.Background(), st, cfg, reg, nil, nil)
	require.NoError(t, err)
	srv, err := New(svc, "", nil)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegisterAgentEndpointReturnsAgentRecord(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/agents", map[string]any{
		"agent_id":     "a1",
		"display_name": "Agent One",
		"capabilities": []string{"fs"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var rec2 model.AgentRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rec2))
	require.Equal(t, model.AgentId("a1"), rec2.Agent.ID)
	require.Equal(t, model.AgentActive, rec2.Agent.State)
}

func TestRegisterAgentEndpointRejectsMissingAgentID(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/agents", map[string]any{"display_name": "no id"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitToolCallEndpointReturnsVerdict(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv.Router(), http.MethodPost, "/v1/agents", map[string]any{"agent_id": "a1", "capabilities": []string{"fs"}})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/tool-calls", map[string]any{
		"agent_id":    "a1",
		"tool_name":   "write_file",
		"parameters":  map[string]any{"path": "a.txt"},
		"duration_ms": 100,
		"success":     true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var verdict model.ToolCallVerdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdict))
	require.Equal(t, model.ToolCallValid, verdict.Status)
}

func TestSubmitCompletionEndpointHappyPath(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv.Router(), http.MethodPost, "/v1/agents", map[string]any{"agent_id": "a1", "capabilities": []string{"fs"}})

	evidence := map[string]any{
		"outputs": map[string]any{
			"files_created":       []any{map[string]any{"path": "auth.py", "has_tests": true}},
			"completeness_score":  0.95,
			"accuracy_score":      0.88,
			"format_compliance":   true,
			"error_handling_score": 0.85,
		},
		"performance_metrics": map[string]any{
			"execution_time_ms": 500.0,
			"memory_usage_mb":   45.0,
			"error_rate":        0.0,
		},
	}

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/completions", map[string]any{
		"task_id":             "task-1",
		"agent_id":            "a1",
		"task_description":    "Create user authentication API",
		"completion_evidence": evidence,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res model.VerificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, model.VerdictCompleted, res.Verdict)

	rec = doJSON(t, srv.Router(), http.MethodGet, "/v1/tasks/task-1/verification", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv.Router(), http.MethodGet, "/v1/tasks/task-1/evidence", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []model.EvidenceItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.NotEmpty(t, items)

	rec = doJSON(t, srv.Router(), http.MethodGet, "/v1/agents/a1/reliability", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetVerificationEndpointReturnsNotFoundWhenAbsent(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/v1/tasks/never-seen/verification", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitCompletionEndpointRejectsMissingFields(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/completions", map[string]any{"task_description": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscribeBacklogEndpointReturnsEvents(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv.Router(), http.MethodPost, "/v1/agents", map[string]any{"agent_id": "a1", "capabilities": []string{"fs"}})
	doJSON(t, srv.Router(), http.MethodPost, "/v1/tool-calls", map[string]any{
		"agent_id": "a1", "tool_name": "write_file", "parameters": map[string]any{"path": "a.txt"},
	})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/v1/events?from=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []model.BusEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.NotEmpty(t, events)
}
