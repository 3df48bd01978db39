package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/models"
)

// IntentsHandler handles query-intent history endpoints.
type IntentsHandler struct {
	store  *contextstore.Store
	logger *zap.Logger
}

// NewIntentsHandler creates a new intents handler.
func NewIntentsHandler(store *contextstore.Store, logger *zap.Logger) *IntentsHandler {
	return &IntentsHandler{store: store, logger: logger}
}

// RegisterRoutes registers the intents handler's routes on the given mux.
func (h *IntentsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{pid}/intents", h.List)
	mux.HandleFunc("POST /api/projects/{pid}/intents", h.Create)
	mux.HandleFunc("DELETE /api/projects/{pid}/intents", h.Clear)
}

// Create handles POST /api/projects/{pid}/intents. Intents are normally
// written by the execution pipeline; this accepts externally produced ones.
// Result-row fields in the payload are stripped on decode, so the history
// never stores data.
func (h *IntentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var intent models.QueryIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		respondError(h.logger, w, apperrors.Validation("invalid request body: %v", err))
		return
	}
	if intent.SQL == "" {
		respondError(h.logger, w, apperrors.Validation("sql is required"))
		return
	}

	if err := h.store.SaveQueryIntent(r.Context(), r.PathValue("pid"), &intent); err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, intent); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/projects/{pid}/intents?limit=N, most recent first.
func (h *IntentsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	intents, err := h.store.GetQueryIntents(r.Context(), r.PathValue("pid"), limit)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"intents": intents}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Clear handles DELETE /api/projects/{pid}/intents.
func (h *IntentsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearQueryIntents(r.Context(), r.PathValue("pid")); err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
