package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/models"
)

// ProjectsHandler handles project metadata endpoints.
type ProjectsHandler struct {
	store  *contextstore.Store
	logger *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(store *contextstore.Store, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{store: store, logger: logger}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects", h.Create)
	mux.HandleFunc("GET /api/projects", h.List)
	mux.HandleFunc("GET /api/projects/{pid}", h.Get)
	mux.HandleFunc("PATCH /api/projects/{pid}", h.Update)
	mux.HandleFunc("DELETE /api/projects/{pid}", h.Delete)
	mux.HandleFunc("GET /api/projects/{pid}/stats", h.Stats)
}

// Create handles POST /api/projects. Registration is explicit; operations on
// unknown project IDs fail rather than implicitly creating one.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var project models.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		respondError(h.logger, w, apperrors.Validation("invalid request body: %v", err))
		return
	}

	if err := h.store.SaveProjectMetadata(r.Context(), &project); err != nil {
		respondError(h.logger, w, err)
		return
	}

	h.logger.Info("project registered",
		zap.String("project_id", project.ID),
		zap.String("dialect", string(project.Dialect)))
	if err := WriteJSON(w, http.StatusCreated, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/projects. Full pattern scan, O(project count).
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListAllProjects(r.Context())
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"projects": projects}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/projects/{pid}.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.store.GetProjectMetadata(r.Context(), r.PathValue("pid"))
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/projects/{pid}. Partial merge: supplied fields
// overwrite, the rest stay.
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		respondError(h.logger, w, apperrors.Validation("invalid request body: %v", err))
		return
	}

	project, err := h.store.UpdateProjectMetadata(r.Context(), r.PathValue("pid"), updates)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/projects/{pid}. Removes the metadata key and
// every derived key under the project's namespace.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.DeleteProject(r.Context(), r.PathValue("pid"))
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	h.logger.Info("project deleted",
		zap.String("project_id", r.PathValue("pid")),
		zap.Int64("keys_removed", deleted))
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "deleted",
		"keys_removed": deleted,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stats handles GET /api/projects/{pid}/stats. Never fails; a degraded
// store shows up in the payload's error field.
func (h *ProjectsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.store.GetProjectStats(r.Context(), r.PathValue("pid"))
	if err := WriteJSON(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
