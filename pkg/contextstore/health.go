package contextstore

import (
	"context"
	"errors"
	"time"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/models"
)

// GetProjectStats composes a presence/count report for a project. It never
// fails: while the store is degraded it returns an error-tagged payload
// instead.
func (s *Store) GetProjectStats(ctx context.Context, projectID string) *models.ProjectStats {
	stats := &models.ProjectStats{
		ProjectID: projectID,
		Timestamp: time.Now().UTC(),
	}

	if !s.kv.Available() {
		stats.Error = "context store unavailable"
		return stats
	}

	if _, err := s.GetProjectMetadata(ctx, projectID); err == nil {
		stats.HasMetadata = true
	} else if errors.Is(err, apperrors.ErrStoreUnavailable) {
		stats.Error = "context store unavailable"
		return stats
	}

	if _, err := s.GetSchema(ctx, projectID); err == nil {
		stats.HasSchema = true
	}

	if sessions, err := s.ListAISessions(ctx, projectID); err == nil {
		stats.AISessionCount = len(sessions)
	}

	if intents, err := s.GetQueryIntents(ctx, projectID, MaxQueryIntents); err == nil {
		stats.QueryIntentCount = len(intents)
	}

	return stats
}

// HealthCheck reports backend availability plus best-effort server
// introspection fields.
func (s *Store) HealthCheck(ctx context.Context) *models.StoreHealth {
	info, err := s.kv.Info(ctx)
	if err != nil {
		return &models.StoreHealth{
			Status:  models.StoreStatusUnavailable,
			Message: "context store connection failed",
		}
	}

	return &models.StoreHealth{
		Status:           models.StoreStatusHealthy,
		RedisVersion:     info["redis_version"],
		UsedMemoryHuman:  info["used_memory_human"],
		ConnectedClients: info["connected_clients"],
		UptimeInSeconds:  info["uptime_in_seconds"],
	}
}
