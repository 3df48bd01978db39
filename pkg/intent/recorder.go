// Package intent records the outcome of every executed statement as
// metadata-only history and drives schema-cache invalidation after DDL.
package intent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/logging"
	"github.com/sqlfabric/fabric/pkg/models"
	"github.com/sqlfabric/fabric/pkg/namespace"
)

// ContextSink is the slice of the context store the recorder needs.
type ContextSink interface {
	SaveQueryIntent(ctx context.Context, projectID string, intent *models.QueryIntent) error
	InvalidateSchema(ctx context.Context, projectID string) error
}

// Recorder builds intent records from execution outcomes. Recording is
// never allowed to fail the caller's statement execution.
type Recorder struct {
	sink      ContextSink
	extractor namespace.TableExtractor
	logger    *zap.Logger
}

// NewRecorder creates a Recorder over the given sink.
func NewRecorder(sink ContextSink, extractor namespace.TableExtractor, logger *zap.Logger) *Recorder {
	return &Recorder{
		sink:      sink,
		extractor: extractor,
		logger:    logger.Named("intent-recorder"),
	}
}

// Outcome describes one executed statement.
type Outcome struct {
	SQL          string
	UserQuestion string
	Duration     time.Duration
	Success      bool
	ErrorMessage string
}

// RecordOutcome persists the intent and, when a schema-mutating statement
// succeeded, invalidates the project's schema cache. Invalidating on a
// statement that changed nothing only costs a rediscovery; serving a stale
// table list is not acceptable.
func (r *Recorder) RecordOutcome(ctx context.Context, projectID string, outcome Outcome) *models.QueryIntent {
	record := &models.QueryIntent{
		ID:           uuid.NewString(),
		SQL:          outcome.SQL,
		UserQuestion: outcome.UserQuestion,
		ExecutedAt:   time.Now().UTC(),
		Success:      outcome.Success,
		Tables:       r.extractor.ExtractTableNames(outcome.SQL),
		DurationMs:   outcome.Duration.Milliseconds(),
	}
	if !outcome.Success {
		record.ErrorMessage = outcome.ErrorMessage
	}

	if err := r.sink.SaveQueryIntent(ctx, projectID, record); err != nil {
		r.logger.Warn("failed to record query intent",
			zap.String("project_id", projectID),
			zap.String("sql", logging.SanitizeStatement(outcome.SQL)),
			zap.Error(err))
	}

	if outcome.Success && namespace.IsDDL(outcome.SQL) {
		if err := r.sink.InvalidateSchema(ctx, projectID); err != nil {
			r.logger.Warn("failed to invalidate schema cache after ddl",
				zap.String("project_id", projectID),
				zap.Error(err))
		}
	}

	return record
}
