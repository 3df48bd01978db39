package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/analytics"
)

// AnalyticsHandler exposes the query-pattern side store.
type AnalyticsHandler struct {
	store  *analytics.Store
	logger *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(store *analytics.Store, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{store: store, logger: logger}
}

// RegisterRoutes registers the analytics handler's routes on the given mux.
func (h *AnalyticsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/analytics/query-types", h.QueryTypes)
	mux.HandleFunc("GET /api/analytics/tables", h.Tables)
	mux.HandleFunc("GET /api/analytics/complexity", h.Complexity)
	mux.HandleFunc("GET /api/analytics/performance", h.Performance)
}

// window reads ?hours= with a 24h default.
func window(r *http.Request) time.Duration {
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if hours, err := strconv.Atoi(raw); err == nil && hours > 0 {
			return time.Duration(hours) * time.Hour
		}
	}
	return 24 * time.Hour
}

// QueryTypes handles GET /api/analytics/query-types?projectId=&hours=.
func (h *AnalyticsHandler) QueryTypes(w http.ResponseWriter, r *http.Request) {
	dist, err := h.store.QueryTypeDistribution(r.Context(), r.URL.Query().Get("projectId"), window(r))
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"distribution": dist}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Tables handles GET /api/analytics/tables?projectId=&limit=.
func (h *AnalyticsHandler) Tables(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	tables, err := h.store.MostAccessedTables(r.Context(), r.URL.Query().Get("projectId"), limit)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"tables": tables}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Complexity handles GET /api/analytics/complexity?projectId=&hours=.
func (h *AnalyticsHandler) Complexity(w http.ResponseWriter, r *http.Request) {
	dist, err := h.store.ComplexityDistribution(r.Context(), r.URL.Query().Get("projectId"), window(r))
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"distribution": dist}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Performance handles GET /api/analytics/performance?projectId=&hours=.
func (h *AnalyticsHandler) Performance(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetPerformanceStats(r.Context(), r.URL.Query().Get("projectId"), window(r))
	if err != nil {
		respondError(h.logger, w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
