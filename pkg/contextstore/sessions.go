package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/models"
)

// SaveAIMessage appends a message to a session, creating it on first write.
// The message list is a sliding window of MaxAIMessages (oldest dropped
// first) and the session TTL is refreshed on every append. The
// load-append-trim-persist sequence runs inside the adapter's optimistic
// transaction so concurrent writers to the same session cannot lose updates.
func (s *Store) SaveAIMessage(ctx context.Context, projectID, sessionID string, payload map[string]any) error {
	if sessionID == "" {
		return apperrors.Validation("session id required")
	}

	err := s.kv.Update(ctx, sessionKey(projectID, sessionID), func(current string, found bool) (string, time.Duration, error) {
		now := time.Now().UTC()

		var session models.AISession
		if found {
			if err := json.Unmarshal([]byte(current), &session); err != nil {
				// Corrupt session data: start over rather than fail the append.
				session = models.AISession{SessionID: sessionID, CreatedAt: now}
			}
		} else {
			session = models.AISession{SessionID: sessionID, CreatedAt: now}
		}

		session.Messages = append(session.Messages, models.SessionMessage{
			Payload:   payload,
			Timestamp: now,
		})
		if len(session.Messages) > MaxAIMessages {
			session.Messages = session.Messages[len(session.Messages)-MaxAIMessages:]
		}
		session.LastMessageAt = now

		data, err := json.Marshal(&session)
		if err != nil {
			return "", 0, fmt.Errorf("marshal session %s: %w", sessionID, err)
		}
		return string(data), AIContextTTL, nil
	})
	if err != nil {
		return s.degrade("save_ai_message", err)
	}

	s.logger.Info("saved ai message",
		zap.String("project_id", projectID),
		zap.String("session_id", sessionID))
	return nil
}

// GetAISession returns a full conversation, messages included.
func (s *Store) GetAISession(ctx context.Context, projectID, sessionID string) (*models.AISession, error) {
	data, found, err := s.kv.Get(ctx, sessionKey(projectID, sessionID))
	if err != nil {
		return nil, s.degrade("get_ai_session", err)
	}
	if !found {
		return nil, apperrors.ErrNotFound
	}

	var session models.AISession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, s.degrade("get_ai_session", fmt.Errorf("corrupt session: %w", err))
	}
	return &session, nil
}

// ListAISessions scans the project's session keys and returns metadata
// projections only (no message bodies), truncated to the MaxAISessions most
// recent by last activity.
func (s *Store) ListAISessions(ctx context.Context, projectID string) ([]models.AISessionSummary, error) {
	keys, err := s.kv.Keys(ctx, sessionPattern(projectID))
	if err != nil {
		return nil, s.degrade("list_ai_sessions", err)
	}

	summaries := make([]models.AISessionSummary, 0, len(keys))
	for _, key := range keys {
		data, found, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, s.degrade("list_ai_sessions", err)
		}
		if !found {
			continue // expired between scan and read
		}
		var session models.AISession
		if err := json.Unmarshal([]byte(data), &session); err != nil {
			s.logger.Warn("skipping corrupt ai session", zap.String("key", key))
			continue
		}
		summaries = append(summaries, session.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
	if len(summaries) > MaxAISessions {
		summaries = summaries[:MaxAISessions]
	}
	return summaries, nil
}

// DeleteAISession removes a conversation. Returns true if it existed.
func (s *Store) DeleteAISession(ctx context.Context, projectID, sessionID string) (bool, error) {
	n, err := s.kv.Delete(ctx, sessionKey(projectID, sessionID))
	if err != nil {
		return false, s.degrade("delete_ai_session", err)
	}
	if n > 0 {
		s.logger.Info("deleted ai session",
			zap.String("project_id", projectID),
			zap.String("session_id", sessionID))
	}
	return n > 0, nil
}
