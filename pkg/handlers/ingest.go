package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/contextstore"
	"github.com/sqlfabric/fabric/pkg/models"
	"github.com/sqlfabric/fabric/pkg/router"
)

// insertBatchRows is how many rows go into one INSERT statement.
const insertBatchRows = 500

// maxIngestMemoryBytes bounds the multipart form's in-memory buffer; larger
// uploads spill to disk.
const maxIngestMemoryBytes = 32 << 20

// IngestRouter is the slice of router.Router that ingestion needs.
type IngestRouter interface {
	StatementRouter
	RouteIngest(payloadBytes int64) router.IngestRoute
}

// IngestHandler handles CSV bulk loads. The table name comes from the
// sanitized filename; the payload size picks the row-store or batch path.
type IngestHandler struct {
	store  *contextstore.Store
	router IngestRouter
	logger *zap.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(store *contextstore.Store, ingestRouter IngestRouter, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{store: store, router: ingestRouter, logger: logger}
}

// RegisterRoutes registers the ingest handler's routes on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects/{pid}/ingest", h.Upload)
}

// Upload handles POST /api/projects/{pid}/ingest with a multipart "file"
// field holding a CSV. The first row is the header.
func (h *IngestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	project, err := h.store.GetProjectMetadata(r.Context(), r.PathValue("pid"))
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	if err := r.ParseMultipartForm(maxIngestMemoryBytes); err != nil {
		respondError(h.logger, w, apperrors.Validation("invalid multipart form: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(h.logger, w, apperrors.Validation("file field is required"))
		return
	}
	defer file.Close()

	tableName, err := tableNameFromFilename(header.Filename)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	route := h.router.RouteIngest(header.Size)
	rows, err := h.load(r.Context(), project, tableName, file, route)
	if err != nil {
		respondError(h.logger, w, err)
		return
	}

	h.recordUpload(r.Context(), project, header.Filename, tableName, header.Size, rows, route)

	h.logger.Info("csv ingested",
		zap.String("project_id", project.ID),
		zap.String("table", tableName),
		zap.Int64("bytes", header.Size),
		zap.Int("rows", rows),
		zap.String("route", string(route)))
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"table": tableName,
		"rows":  rows,
		"route": route,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// load creates the table and streams the CSV into it in batched inserts.
// Statements go through the router, so the table lands under the project's
// namespace prefix.
func (h *IngestHandler) load(ctx context.Context, project *models.Project, tableName string, file io.Reader, route router.IngestRoute) (int, error) {
	reader := csv.NewReader(file)

	headerRow, err := reader.Read()
	if err != nil {
		return 0, apperrors.Validation("csv has no header row: %v", err)
	}
	columns := make([]string, len(headerRow))
	for i, raw := range headerRow {
		col, err := sanitizeIdentifier(raw)
		if err != nil {
			return 0, apperrors.Validation("column %d: unusable name %q", i+1, raw)
		}
		columns[i] = col
	}

	batch := route == router.IngestRouteBatch
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s TEXT)",
		tableName, strings.Join(columns, " TEXT, "))
	if _, err := h.router.Execute(ctx, project, router.Request{SQL: create, Batch: batch}); err != nil {
		return 0, err
	}

	total := 0
	values := make([]string, 0, insertBatchRows)
	flush := func() error {
		if len(values) == 0 {
			return nil
		}
		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			tableName, strings.Join(columns, ", "), strings.Join(values, ", "))
		if _, err := h.router.Execute(ctx, project, router.Request{SQL: insert, Batch: batch}); err != nil {
			return err
		}
		total += len(values)
		values = values[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, apperrors.Validation("csv row %d: %v", total+len(values)+2, err)
		}
		if len(record) != len(columns) {
			return total, apperrors.Validation("csv row %d: %d fields, header has %d",
				total+len(values)+2, len(record), len(columns))
		}

		quoted := make([]string, len(record))
		for i, field := range record {
			quoted[i] = "'" + strings.ReplaceAll(field, "'", "''") + "'"
		}
		values = append(values, "("+strings.Join(quoted, ", ")+")")

		if len(values) >= insertBatchRows {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// recordUpload appends the upload to the project's metadata history.
// Best-effort: a degraded store loses provenance, not the data.
func (h *IngestHandler) recordUpload(ctx context.Context, project *models.Project, filename, tableName string, size int64, rows int, route router.IngestRoute) {
	metadata := map[string]any{}
	for k, v := range project.Metadata {
		metadata[k] = v
	}
	uploads, _ := metadata["csv_uploads"].([]any)
	uploads = append(uploads, map[string]any{
		"filename":    filename,
		"table":       tableName,
		"bytes":       size,
		"rows":        rows,
		"route":       string(route),
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
	})
	metadata["csv_uploads"] = uploads

	if _, err := h.store.UpdateProjectMetadata(ctx, project.ID, map[string]any{"metadata": metadata}); err != nil {
		h.logger.Warn("upload history not recorded",
			zap.String("project_id", project.ID),
			zap.Error(err))
	}
}

var identifierCleaner = regexp.MustCompile(`[^a-z0-9_]+`)

// tableNameFromFilename derives the table name from an uploaded filename:
// extension dropped, lowercased, runs of unusable characters collapsed to
// underscores.
func tableNameFromFilename(filename string) (string, error) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return sanitizeIdentifier(base)
}

func sanitizeIdentifier(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = identifierCleaner.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "", apperrors.Validation("name %q reduces to nothing usable", raw)
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name, nil
}
