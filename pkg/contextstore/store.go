// Package contextstore is the tiered, TTL-governed cache of per-project
// context: metadata (durable), schema snapshots (short TTL), AI sessions
// (long TTL, size-bounded) and query-intent history (long TTL, size-bounded,
// metadata only).
//
// Every method is fail-soft at this boundary: backend outages surface as
// apperrors.ErrStoreUnavailable with the documented safe default, never as a
// transport error several layers up. Absence (ErrNotFound) is always
// distinguishable from degradation.
package contextstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/kvstore"
	"github.com/sqlfabric/fabric/pkg/models"
	"github.com/sqlfabric/fabric/pkg/namespace"
)

// TTL policy per data kind.
const (
	// SchemaTTL bounds how long a discovered schema is served without
	// rediscovery.
	SchemaTTL = time.Hour
	// AIContextTTL keeps conversations for a week, refreshed on every
	// append.
	AIContextTTL = 7 * 24 * time.Hour
	// QueryIntentsTTL is set once on the first intent write; the whole
	// history ages out together.
	QueryIntentsTTL = 30 * 24 * time.Hour
)

// Size caps per data kind.
const (
	// MaxQueryIntents is the intent list cap; oldest entries are evicted.
	MaxQueryIntents = 50
	// MaxAIMessages is the per-session sliding window.
	MaxAIMessages = 100
	// MaxAISessions bounds how many sessions a listing returns.
	MaxAISessions = 10
)

// Store enforces the per-kind TTL and size policies on top of the raw
// adapter.
type Store struct {
	kv     kvstore.Store
	logger *zap.Logger
}

// NewStore creates a context store over the shared adapter.
func NewStore(kv kvstore.Store, logger *zap.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logger.Named("context-store"),
	}
}

// Key layout: all state for a project lives under project:{id}:*, so
// deleting a project is a prefix scan plus bulk delete.
func metadataKey(projectID string) string {
	return fmt.Sprintf("project:%s:metadata", projectID)
}

func schemaKey(projectID string) string {
	return fmt.Sprintf("project:%s:schema", projectID)
}

func sessionKey(projectID, sessionID string) string {
	return fmt.Sprintf("project:%s:ai:session:%s", projectID, sessionID)
}

func sessionPattern(projectID string) string {
	return fmt.Sprintf("project:%s:ai:session:*", projectID)
}

func intentsKey(projectID string) string {
	return fmt.Sprintf("project:%s:intents", projectID)
}

func projectPattern(projectID string) string {
	return fmt.Sprintf("project:%s:*", projectID)
}

const allMetadataPattern = "project:*:metadata"

// degrade maps an adapter failure to the store's fail-soft contract.
func (s *Store) degrade(op string, err error) error {
	if errors.Is(err, kvstore.ErrUnavailable) {
		s.logger.Warn("context store degraded, returning default",
			zap.String("op", op))
	} else {
		s.logger.Warn("context store operation failed, returning default",
			zap.String("op", op),
			zap.Error(err))
	}
	return apperrors.ErrStoreUnavailable
}

// SaveProjectMetadata persists project metadata durably (no TTL). The
// project must carry its required fields; creation timestamps are stamped
// here.
func (s *Store) SaveProjectMetadata(ctx context.Context, project *models.Project) error {
	if err := project.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	data, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("marshal project %s: %w", project.ID, err)
	}

	if err := s.kv.Set(ctx, metadataKey(project.ID), string(data)); err != nil {
		return s.degrade("save_project_metadata", err)
	}

	s.logger.Info("saved project metadata", zap.String("project_id", project.ID))
	return nil
}

// GetProjectMetadata returns the project, applying the lazy one-time dialect
// migration at the read boundary. Persisting the migration is best-effort:
// failure to write back never fails the read.
func (s *Store) GetProjectMetadata(ctx context.Context, projectID string) (*models.Project, error) {
	data, found, err := s.kv.Get(ctx, metadataKey(projectID))
	if err != nil {
		return nil, s.degrade("get_project_metadata", err)
	}
	if !found {
		return nil, apperrors.ErrNotFound
	}

	var project models.Project
	if err := json.Unmarshal([]byte(data), &project); err != nil {
		return nil, s.degrade("get_project_metadata", fmt.Errorf("corrupt metadata: %w", err))
	}

	if namespace.NormalizeDialect(&project) {
		if migrated, err := json.Marshal(&project); err == nil {
			if err := s.kv.Set(ctx, metadataKey(projectID), string(migrated)); err != nil {
				s.logger.Warn("failed to persist dialect migration",
					zap.String("project_id", projectID),
					zap.Error(err))
			} else {
				s.logger.Info("migrated legacy dialect",
					zap.String("project_id", projectID),
					zap.String("dialect", string(project.Dialect)))
			}
		}
	}

	return &project, nil
}

// UpdateProjectMetadata merges partial fields into the stored project: new
// fields overwrite, others are preserved, and the update timestamp is
// refreshed. Fails with ErrNotFound when the project is absent; there is no
// implicit creation.
func (s *Store) UpdateProjectMetadata(ctx context.Context, projectID string, updates map[string]any) (*models.Project, error) {
	if len(updates) == 0 {
		return nil, apperrors.Validation("no fields to update")
	}

	project, err := s.GetProjectMetadata(ctx, projectID)
	if err != nil {
		return nil, err
	}

	merged, err := mergeProject(project, updates)
	if err != nil {
		return nil, err
	}
	merged.ID = projectID // identity is immutable
	merged.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal project %s: %w", projectID, err)
	}
	if err := s.kv.Set(ctx, metadataKey(projectID), string(data)); err != nil {
		return nil, s.degrade("update_project_metadata", err)
	}

	return merged, nil
}

// mergeProject applies top-level field updates over the stored project via
// its JSON representation, so free-form metadata keys merge naturally.
func mergeProject(project *models.Project, updates map[string]any) (*models.Project, error) {
	raw, err := json.Marshal(project)
	if err != nil {
		return nil, err
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, err
	}

	for k, v := range updates {
		asMap[k] = v
	}

	mergedRaw, err := json.Marshal(asMap)
	if err != nil {
		return nil, err
	}
	var merged models.Project
	if err := json.Unmarshal(mergedRaw, &merged); err != nil {
		return nil, fmt.Errorf("%w: updates do not fit the project shape: %v", apperrors.ErrValidation, err)
	}
	return &merged, nil
}

// DeleteProject removes the metadata key and every derived key under the
// project's namespace. Returns how many keys were removed.
func (s *Store) DeleteProject(ctx context.Context, projectID string) (int64, error) {
	keys, err := s.kv.Keys(ctx, projectPattern(projectID))
	if err != nil {
		return 0, s.degrade("delete_project", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := s.kv.Delete(ctx, keys...)
	if err != nil {
		return 0, s.degrade("delete_project", err)
	}

	s.logger.Info("deleted project keys",
		zap.String("project_id", projectID),
		zap.Int64("count", n))
	return n, nil
}

// ListAllProjects returns every registered project. Full scan by pattern:
// O(project count), acceptable at target scale.
func (s *Store) ListAllProjects(ctx context.Context) ([]*models.Project, error) {
	keys, err := s.kv.Keys(ctx, allMetadataPattern)
	if err != nil {
		return nil, s.degrade("list_all_projects", err)
	}

	projects := make([]*models.Project, 0, len(keys))
	for _, key := range keys {
		data, found, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, s.degrade("list_all_projects", err)
		}
		if !found {
			continue // expired between scan and read
		}
		var project models.Project
		if err := json.Unmarshal([]byte(data), &project); err != nil {
			s.logger.Warn("skipping corrupt project metadata", zap.String("key", key))
			continue
		}
		projects = append(projects, &project)
	}
	return projects, nil
}
