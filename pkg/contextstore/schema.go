package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/models"
)

// SaveSchema caches a schema snapshot with the given TTL (SchemaTTL when
// ttl <= 0), stamping the sync time. Overwrites unconditionally.
func (s *Store) SaveSchema(ctx context.Context, projectID string, schema *models.SchemaSnapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = SchemaTTL
	}
	schema.LastSynced = time.Now().UTC()

	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema for %s: %w", projectID, err)
	}

	if err := s.kv.SetEx(ctx, schemaKey(projectID), ttl, string(data)); err != nil {
		return s.degrade("save_schema", err)
	}

	s.logger.Info("saved schema cache",
		zap.String("project_id", projectID),
		zap.Duration("ttl", ttl))
	return nil
}

// GetSchema returns the cached snapshot. Absence (never discovered, or
// expired) is ErrNotFound, a normal state rather than a failure.
func (s *Store) GetSchema(ctx context.Context, projectID string) (*models.SchemaSnapshot, error) {
	data, found, err := s.kv.Get(ctx, schemaKey(projectID))
	if err != nil {
		return nil, s.degrade("get_schema", err)
	}
	if !found {
		return nil, apperrors.ErrNotFound
	}

	var schema models.SchemaSnapshot
	if err := json.Unmarshal([]byte(data), &schema); err != nil {
		return nil, s.degrade("get_schema", fmt.Errorf("corrupt schema cache: %w", err))
	}
	return &schema, nil
}

// InvalidateSchema tears the cache down early, used after DDL or bulk load.
func (s *Store) InvalidateSchema(ctx context.Context, projectID string) error {
	if _, err := s.kv.Delete(ctx, schemaKey(projectID)); err != nil {
		return s.degrade("invalidate_schema", err)
	}
	s.logger.Info("invalidated schema cache", zap.String("project_id", projectID))
	return nil
}
