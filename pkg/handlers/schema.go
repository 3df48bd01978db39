package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/models"
	"github.com/sqlfabric/fabric/pkg/schema"
)

// SchemaHandler handles the schema cache endpoints.
type SchemaHandler struct {
	store     *contextstore.Store
	discovery *schema.Service
	logger    *zap.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(store *contextstore.Store, discovery *schema.Service, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{store: store, discovery: discovery, logger: logger}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{pid}/schema", h.Get)
	mux.HandleFunc("PUT /api/projects/{pid}/schema", h.Put)
	mux.HandleFunc("DELETE /api/projects/{pid}/schema", h.Invalidate)
}

// Get handles GET /api/projects/{pid}/schema. Serves the cached snapshot,
// discovering on a miss; ?refresh=true forces a rediscovery.
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.store.GetProjectMetadata(r.Context(), r.PathValue("pid"))
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	var snapshot *models.SchemaSnapshot
	fromCache := false
	if r.URL.Query().Get("refresh") == "true" {
		snapshot, err = h.discovery.Discover(r.Context(), project, 0)
	} else {
		snapshot, fromCache, err = h.discovery.CachedOrDiscover(r.Context(), project)
	}
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"schema": snapshot,
		"cached": fromCache,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Put handles PUT /api/projects/{pid}/schema. Explicit cache write with an
// optional ?ttl= override in seconds.
func (h *SchemaHandler) Put(w http.ResponseWriter, r *http.Request) {
	var snapshot models.SchemaSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		respondError(h.logger, w, apperrors.Validation("invalid request body: %v", err))
		return
	}

	var ttl time.Duration
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			respondError(h.logger, w, apperrors.Validation("ttl must be a positive integer of seconds"))
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	if err := h.store.SaveSchema(r.Context(), r.PathValue("pid"), &snapshot, ttl); err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Invalidate handles DELETE /api/projects/{pid}/schema.
func (h *SchemaHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.store.InvalidateSchema(r.Context(), r.PathValue("pid")); err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "invalidated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
