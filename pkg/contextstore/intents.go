package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/models"
)

// SaveQueryIntent pushes an intent to the front of the project's history,
// trims to MaxQueryIntents, and establishes the list TTL only when none is
// set. The first write starts the clock for the whole history and later
// writes never reset it.
func (s *Store) SaveQueryIntent(ctx context.Context, projectID string, intent *models.QueryIntent) error {
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	if intent.ExecutedAt.IsZero() {
		intent.ExecutedAt = time.Now().UTC()
	}

	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal intent for %s: %w", projectID, err)
	}

	if err := s.kv.LPushCapped(ctx, intentsKey(projectID), MaxQueryIntents, QueryIntentsTTL, string(data)); err != nil {
		return s.degrade("save_query_intent", err)
	}

	s.logger.Info("saved query intent",
		zap.String("project_id", projectID),
		zap.Bool("success", intent.Success))
	return nil
}

// GetQueryIntents returns the most recent intents, newest first. limit is
// clamped to [1, MaxQueryIntents].
func (s *Store) GetQueryIntents(ctx context.Context, projectID string, limit int) ([]models.QueryIntent, error) {
	if limit <= 0 || limit > MaxQueryIntents {
		limit = MaxQueryIntents
	}

	entries, err := s.kv.LRange(ctx, intentsKey(projectID), 0, int64(limit-1))
	if err != nil {
		return nil, s.degrade("get_query_intents", err)
	}

	intents := make([]models.QueryIntent, 0, len(entries))
	for _, entry := range entries {
		var intent models.QueryIntent
		if err := json.Unmarshal([]byte(entry), &intent); err != nil {
			s.logger.Warn("skipping corrupt query intent", zap.String("project_id", projectID))
			continue
		}
		intents = append(intents, intent)
	}
	return intents, nil
}

// ClearQueryIntents drops the whole history for a project.
func (s *Store) ClearQueryIntents(ctx context.Context, projectID string) error {
	if _, err := s.kv.Delete(ctx, intentsKey(projectID)); err != nil {
		return s.degrade("clear_query_intents", err)
	}
	s.logger.Info("cleared query intents", zap.String("project_id", projectID))
	return nil
}
