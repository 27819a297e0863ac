// Package httpapi is a thin chi-routed edge adapter over pkg/ares.Service.
// It maps the seven Core API operations onto HTTP, with optional JWT
// bearer authentication. It is deliberately minimal: no dashboard, no
// push-streaming transport for subscribe.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/neikan-bsn/ares/pkg/ares"
)

// Server wires pkg/ares.Service into an http.Handler.
type Server struct {
	svc  *ares.Service
	log  *slog.Logger
	auth *jwtAuthenticator
}

// New builds a Server. jwtPublicKeyPath enables bearer-token
// authentication on every route when non-empty, matching
// config.Config.JWTPublicKeyPath's "set to enable" convention.
func New(svc *ares.Service, jwtPublicKeyPath string, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{svc: svc, log: log}
	if jwtPublicKeyPath != "" {
		a, err := newJWTAuthenticator(jwtPublicKeyPath)
		if err != nil {
			return nil, err
		}
		s.auth = a
	}
	return s, nil
}

// Router builds the chi router exposing register_agent, submit_tool_call,
// submit_completion, get_verification, get_evidence, get_reliability,
// and a backlog-only subscribe endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	if s.auth != nil {
		r.Use(s.auth.middleware)
	}

	r.Post("/v1/agents", s.handleRegisterAgent)
	r.Post("/v1/tool-calls", s.handleSubmitToolCall)
	r.Post("/v1/completions", s.handleSubmitCompletion)
	r.Get("/v1/tasks/{taskID}/verification", s.handleGetVerification)
	r.Get("/v1/tasks/{taskID}/evidence", s.handleGetEvidence)
	r.Get("/v1/agents/{agentID}/reliability", s.handleGetReliability)
	r.Get("/v1/events", s.handleSubscribeBacklog)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("httpapi: request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
