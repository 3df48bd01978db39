package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/engines"
	"github.com/sqlfabric/fabric/pkg/llm"
	"github.com/sqlfabric/fabric/pkg/models"
	"github.com/sqlfabric/fabric/pkg/router"
	"github.com/sqlfabric/fabric/pkg/schema"
)

// StatementRouter executes a statement for a project. Satisfied by
// router.Router.
type StatementRouter interface {
	Execute(ctx context.Context, project *models.Project, req router.Request) (*engines.Result, error)
}

// PatternLogger records execution patterns off the hot path. Satisfied by
// analytics.Store.
type PatternLogger interface {
	LogQueryPattern(ctx context.Context, projectID, query string, executionTime time.Duration, success bool, errorMessage string)
}

// QueryRequest is the execute endpoint's body.
type QueryRequest struct {
	SQL          string         `json:"sql"`
	UserQuestion string         `json:"userQuestion,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
	Catalog      string         `json:"catalog,omitempty"`
	Schema       string         `json:"schema,omitempty"`
}

// AskRequest is the natural-language endpoint's body.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
	Catalog   string `json:"catalog,omitempty"`
	Schema    string `json:"schema,omitempty"`
}

// QueryHandler drives the rewrite/route/record pipeline for caller SQL and
// for generated SQL.
type QueryHandler struct {
	store     *contextstore.Store
	router    StatementRouter
	discovery *schema.Service
	generator llm.SQLGenerator // nil when no AI provider is configured
	patterns  PatternLogger    // nil when analytics is disabled
	logger    *zap.Logger
}

// NewQueryHandler creates a new query handler. generator and patterns may be
// nil; the matching endpoints degrade.
func NewQueryHandler(store *contextstore.Store, statementRouter StatementRouter, discovery *schema.Service, generator llm.SQLGenerator, patterns PatternLogger, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		store:     store,
		router:    statementRouter,
		discovery: discovery,
		generator: generator,
		patterns:  patterns,
		logger:    logger,
	}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects/{pid}/query", h.Execute)
	mux.HandleFunc("POST /api/projects/{pid}/ask", h.Ask)
}

// Execute handles POST /api/projects/{pid}/query.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, apperrors.Validation("invalid request body: %v", err))
		return
	}

	project, err := h.store.GetProjectMetadata(r.Context(), r.PathValue("pid"))
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	result, err := h.run(r.Context(), project, router.Request{
		SQL:          req.SQL,
		UserQuestion: req.UserQuestion,
		Params:       req.Params,
		Catalog:      req.Catalog,
		Schema:       req.Schema,
	})
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Ask handles POST /api/projects/{pid}/ask: generate SQL from a question,
// execute it, and keep the conversation in the project's AI session.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		respondError(h.logger, w, apperrors.Validation("no AI provider configured"))
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, apperrors.Validation("invalid request body: %v", err))
		return
	}
	if req.Question == "" || req.SessionID == "" {
		respondError(h.logger, w, apperrors.Validation("question and sessionId are required"))
		return
	}

	projectID := r.PathValue("pid")
	project, err := h.store.GetProjectMetadata(r.Context(), projectID)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	var snapshot *models.SchemaSnapshot
	if h.discovery != nil {
		snapshot, _, err = h.discovery.CachedOrDiscover(r.Context(), project)
		if err != nil {
			// Generation can proceed without a schema; the model just gets
			// less context.
			h.logger.Warn("schema unavailable for generation",
				zap.String("project_id", projectID),
				zap.Error(err))
			snapshot = nil
		}
	}

	var history []models.SessionMessage
	if session, err := h.store.GetAISession(r.Context(), projectID, req.SessionID); err == nil {
		history = session.Messages
	} else if !errors.Is(err, apperrors.ErrNotFound) && !errors.Is(err, apperrors.ErrStoreUnavailable) {
		respondError(h.logger, w, err)
		return
	}

	generated, err := h.generator.GenerateSQL(r.Context(), req.Question, snapshot, history)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	h.appendTurn(r.Context(), projectID, req.SessionID, "user", req.Question)

	result, execErr := h.run(r.Context(), project, router.Request{
		SQL:          generated,
		UserQuestion: req.Question,
		Catalog:      req.Catalog,
		Schema:       req.Schema,
	})

	h.appendTurn(r.Context(), projectID, req.SessionID, "assistant", generated)

	if execErr != nil {
		respondError(h.logger, w, execErr)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"sql":    generated,
		"result": result,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// run executes through the router and feeds the pattern log.
func (h *QueryHandler) run(ctx context.Context, project *models.Project, req router.Request) (*engines.Result, error) {
	start := time.Now()
	result, err := h.router.Execute(ctx, project, req)
	if h.patterns != nil {
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		h.patterns.LogQueryPattern(ctx, project.ID, req.SQL, time.Since(start), err == nil, errMsg)
	}
	return result, err
}

// appendTurn records one conversation turn; a degraded store loses history,
// not the request.
func (h *QueryHandler) appendTurn(ctx context.Context, projectID, sessionID, role, content string) {
	err := h.store.SaveAIMessage(ctx, projectID, sessionID, map[string]any{
		"role":    role,
		"content": content,
	})
	if err != nil {
		h.logger.Warn("conversation turn not saved",
			zap.String("project_id", projectID),
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
