// Package web exposes the engine over a JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/atelierhq/atelier/internal/action"
	"github.com/atelierhq/atelier/internal/engine"
	"github.com/atelierhq/atelier/internal/normalize"
	"github.com/atelierhq/atelier/internal/provider"
	"github.com/atelierhq/atelier/internal/workspace"
)

// ActionExecutor applies a parsed action batch. The local executor satisfies
// it; remote sandboxes can too.
type ActionExecutor interface {
	Execute(ctx context.Context, batch []action.Action) []action.Result
}

// Server provides the HTTP API handlers and state.
type Server struct {
	engine *engine.Engine
	store  *workspace.Store
	exec   ActionExecutor
}

// NewServer creates the API server. exec may be nil, in which case the
// execute endpoint reports the capability as unavailable.
func NewServer(eng *engine.Engine, store *workspace.Store, exec ActionExecutor) *Server {
	return &Server{engine: eng, store: store, exec: exec}
}

// Routes returns the router for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/agent/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/agent/execute", s.handleExecute)
	mux.HandleFunc("GET /api/workspaces/{id}", s.handleWorkspace)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type generateRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Message     string `json:"message"`
}

type generateResponse struct {
	Intent            string                 `json:"intent"`
	Mode              string                 `json:"mode"`
	ShouldModifyFiles bool                   `json:"shouldModifyFiles"`
	Reply             string                 `json:"reply,omitempty"`
	Actions           []action.Action        `json:"actions,omitempty"`
	Events            []action.Event         `json:"events,omitempty"`
	Files             []workspace.FileRecord `json:"files,omitempty"`
	PlanStatus        string                 `json:"planStatus"`
	Failover          bool                   `json:"failover,omitempty"`
	Cost              int                    `json:"cost"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WorkspaceID == "" || req.Message == "" {
		httpError(w, http.StatusBadRequest, "workspaceId and message are required")
		return
	}

	resp, err := s.engine.Generate(r.Context(), engine.Request{
		WorkspaceID: req.WorkspaceID,
		Message:     req.Message,
	})
	if err != nil {
		writeGenerateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Intent:            string(resp.Intent),
		Mode:              string(resp.Mode.Type),
		ShouldModifyFiles: resp.ShouldModifyFiles,
		Reply:             resp.Reply,
		Actions:           resp.Actions,
		Events:            resp.Events,
		Files:             resp.Files,
		PlanStatus:        string(resp.State.PlanStatus),
		Failover:          resp.FailedOver,
		Cost:              resp.Cost,
	})
}

// writeGenerateError maps the engine's error taxonomy to status codes. The
// user-visible message is always a single human-readable line; diagnostic
// detail stays in the logs.
func writeGenerateError(w http.ResponseWriter, err error) {
	var invErr *provider.InvocationError
	var valErr *normalize.ValidationError

	switch {
	case errors.Is(err, workspace.ErrInsufficientCredits):
		httpError(w, http.StatusPaymentRequired, "not enough credits for this generation")
	case errors.As(err, &invErr):
		log.Error().Err(err).Msg("model invocation failed")
		httpError(w, http.StatusBadGateway, "the model could not be reached, please try again")
	case errors.As(err, &valErr):
		log.Error().Err(err).Msg("model output failed validation")
		httpError(w, http.StatusBadGateway, "the model returned an unusable response, please try again")
	default:
		log.Error().Err(err).Msg("generate turn failed")
		httpError(w, http.StatusInternalServerError, "something went wrong handling this message")
	}
}

type executeRequest struct {
	Actions []action.Action `json:"actions"`
}

type executeResponse struct {
	Results []action.Result `json:"results"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if s.exec == nil {
		httpError(w, http.StatusNotImplemented, "action execution is not configured")
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Actions) == 0 {
		httpError(w, http.StatusBadRequest, "actions are required")
		return
	}

	results := s.exec.Execute(r.Context(), req.Actions)
	writeJSON(w, http.StatusOK, executeResponse{Results: results})
}

type workspaceResponse struct {
	ID         string                 `json:"id"`
	Credits    int                    `json:"credits"`
	PlanStatus string                 `json:"planStatus"`
	Plan       *workspace.Plan        `json:"plan,omitempty"`
	Files      []workspace.FileRecord `json:"files"`
	Turns      []turnSummary          `json:"turns"`
}

type turnSummary struct {
	Intent    string `json:"intent"`
	Mode      string `json:"mode"`
	Message   string `json:"message"`
	Reply     string `json:"reply,omitempty"`
	FileCount int    `json:"fileCount"`
	Cost      int    `json:"cost"`
}

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			httpError(w, http.StatusNotFound, "workspace not found")
			return
		}
		log.Error().Err(err).Str("workspace", id).Msg("load workspace failed")
		httpError(w, http.StatusInternalServerError, "could not load workspace")
		return
	}

	turns, err := s.store.Turns(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("workspace", id).Msg("load turns failed")
		httpError(w, http.StatusInternalServerError, "could not load workspace history")
		return
	}

	resp := workspaceResponse{
		ID:         id,
		Credits:    rec.Credits,
		PlanStatus: string(rec.State.PlanStatus),
		Plan:       rec.State.CurrentPlan,
		Files:      rec.Files,
		Turns:      make([]turnSummary, 0, len(turns)),
	}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, turnSummary{
			Intent:    t.Intent,
			Mode:      t.Mode,
			Message:   t.Message,
			Reply:     t.Reply,
			FileCount: t.FileCount,
			Cost:      t.Cost,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response failed")
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
