package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/contextstore"
)

// SessionsHandler handles AI conversation session endpoints.
type SessionsHandler struct {
	store  *contextstore.Store
	logger *zap.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(store *contextstore.Store, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{store: store, logger: logger}
}

// RegisterRoutes registers the sessions handler's routes on the given mux.
func (h *SessionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects/{pid}/sessions/{sid}/messages", h.Append)
	mux.HandleFunc("GET /api/projects/{pid}/sessions/{sid}", h.Get)
	mux.HandleFunc("GET /api/projects/{pid}/sessions", h.List)
	mux.HandleFunc("DELETE /api/projects/{pid}/sessions/{sid}", h.Delete)
}

// Append handles POST /api/projects/{pid}/sessions/{sid}/messages. The
// message body is an opaque structured payload.
func (h *SessionsHandler) Append(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(h.logger, w, apperrors.Validation("invalid request body: %v", err))
		return
	}

	if err := h.store.SaveAIMessage(r.Context(), r.PathValue("pid"), r.PathValue("sid"), payload); err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/projects/{pid}/sessions/{sid}.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.GetAISession(r.Context(), r.PathValue("pid"), r.PathValue("sid"))
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, session); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/projects/{pid}/sessions. Summaries only, most
// recent first.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListAISessions(r.Context(), r.PathValue("pid"))
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/projects/{pid}/sessions/{sid}.
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.DeleteAISession(r.Context(), r.PathValue("pid"), r.PathValue("sid"))
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	if !removed {
		respondError(h.logger, w, apperrors.ErrNotFound)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
