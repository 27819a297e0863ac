package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neikan-bsn/ares/pkg/model"
)

func statusForCoreError(err error) int {
	var ce *model.CoreError
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError
	}
	switch ce.Kind {
	case model.ErrKindInput:
		return http.StatusBadRequest
	case model.ErrKindOverloaded:
		return http.StatusServiceUnavailable
	case model.ErrKindStrategy, model.ErrKindRollback, model.ErrKindStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeCoreError(w http.ResponseWriter, err error) {
	writeError(w, statusForCoreError(err), err.Error())
}

type registerAgentRequest struct {
	AgentID      string   `json:"agent_id"`
	DisplayName  string   `json:"display_name"`
	Capabilities []string `json:"capabilities"`
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	rec, err := s.svc.RegisterAgent(r.Context(), model.AgentId(req.AgentID), req.DisplayName, req.Capabilities)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type submitToolCallRequest struct {
	TaskID     *string        `json:"task_id,omitempty"`
	AgentID    string         `json:"agent_id"`
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
	DurationMs int64          `json:"duration_ms"`
	MemoryMB   float64        `json:"memory_mb"`
	Success    bool           `json:"success"`
}

func (s *Server) handleSubmitToolCall(w http.ResponseWriter, r *http.Request) {
	var req submitToolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}

	tc := model.ToolCall{
		ID:         model.NewToolCallId(),
		AgentID:    model.AgentId(req.AgentID),
		ToolName:   req.ToolName,
		Parameters: req.Parameters,
		DurationMs: req.DurationMs,
		MemoryMB:   req.MemoryMB,
		Success:    req.Success,
		RecordedAt: time.Now().UTC(),
	}
	if req.TaskID != nil {
		taskID := model.TaskId(*req.TaskID)
		tc.TaskID = &taskID
	}

	verdict, err := s.svc.SubmitToolCall(r.Context(), tc)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

type submitCompletionRequest struct {
	TaskID             string         `json:"task_id"`
	AgentID            string         `json:"agent_id"`
	TaskDescription    string         `json:"task_description"`
	CompletionEvidence any            `json:"completion_evidence"`
	AdditionalContext  map[string]any `json:"additional_context,omitempty"`
}

func (s *Server) handleSubmitCompletion(w http.ResponseWriter, r *http.Request) {
	var req submitCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	if req.TaskID == "" || req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "task_id and agent_id are required")
		return
	}

	res, err := s.svc.SubmitCompletion(r.Context(), model.CompletionRequest{
		TaskID:             model.TaskId(req.TaskID),
		AgentID:            model.AgentId(req.AgentID),
		TaskDescription:    req.TaskDescription,
		CompletionEvidence: req.CompletionEvidence,
		CompletionTS:       time.Now().UTC(),
		AdditionalContext:  req.AdditionalContext,
	})
	if err != nil {
		status := statusForCoreError(err)
		writeJSON(w, status, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetVerification(w http.ResponseWriter, r *http.Request) {
	taskID := model.TaskId(chi.URLParam(r, "taskID"))
	res, err := s.svc.GetVerification(r.Context(), taskID)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "no verification result for task")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	taskID := model.TaskId(chi.URLParam(r, "taskID"))
	items, err := s.svc.GetEvidence(r.Context(), taskID)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetReliability(w http.ResponseWriter, r *http.Request) {
	agentID := model.AgentId(chi.URLParam(r, "agentID"))
	m, err := s.svc.GetReliability(r.Context(), agentID)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleSubscribeBacklog returns the Bus backlog from ?from=<offset>,
// optionally filtered by ?kind=<EVENT_KIND> (repeatable). It does not
// hold the connection open for live events: there is no push-streaming
// transport (SSE/WebSocket) here, so this is a one-shot replay suitable
// for polling clients.
func (s *Server) handleSubscribeBacklog(w http.ResponseWriter, r *http.Request) {
	var fromOffset uint64
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from offset")
			return
		}
		fromOffset = parsed
	}

	var kinds []model.EventKind
	for _, k := range r.URL.Query()["kind"] {
		kinds = append(kinds, model.EventKind(k))
	}

	subID := "httpapi-" + r.RemoteAddr
	_, backlog, err := s.svc.Subscribe(r.Context(), subID, kinds, fromOffset)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	// This adapter only serves the backlog snapshot and never keeps the
	// connection open for live events, so the subscription handle is
	// released immediately rather than left registered on the Bus.
	s.svc.Unsubscribe(subID)

	writeJSON(w, http.StatusOK, backlog)
}
