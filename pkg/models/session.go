package models

import "time"

// SessionMessage is one turn in an AI conversation. Payload is opaque to the
// core; the store only orders and bounds messages.
type SessionMessage struct {
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// AISession is one conversation thread belonging to a project. The message
// list is a sliding window: the store keeps only the most recent messages.
type AISession struct {
	SessionID     string           `json:"sessionId"`
	Messages      []SessionMessage `json:"messages"`
	CreatedAt     time.Time        `json:"createdAt"`
	LastMessageAt time.Time        `json:"lastMessageAt"`
}

// AISessionSummary is the metadata projection returned by session listings.
// Message bodies are omitted; only the count is reported.
type AISessionSummary struct {
	SessionID     string    `json:"sessionId"`
	MessageCount  int       `json:"messageCount"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// Summary returns the metadata projection of s.
func (s *AISession) Summary() AISessionSummary {
	return AISessionSummary{
		SessionID:     s.SessionID,
		MessageCount:  len(s.Messages),
		CreatedAt:     s.CreatedAt,
		LastMessageAt: s.LastMessageAt,
	}
}
