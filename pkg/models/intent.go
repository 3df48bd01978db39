package models

import (
	"encoding/json"
	"time"
)

// QueryIntent is a metadata-only record of "what was run and how it went".
// It never carries result rows; UnmarshalJSON strips any result fields a
// caller smuggles in.
type QueryIntent struct {
	ID           string    `json:"id"`
	SQL          string    `json:"sql"`
	UserQuestion string    `json:"userQuestion,omitempty"`
	ExecutedAt   time.Time `json:"executedAt"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Tables       []string  `json:"tables,omitempty"`
	DurationMs   int64     `json:"durationMs"`
}

// resultFieldNames are payload keys that would carry result data. They are
// dropped on decode regardless of caller intent.
var resultFieldNames = []string{"result", "results", "rows", "columns", "data"}

// UnmarshalJSON decodes an intent while discarding any result-row fields.
func (q *QueryIntent) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, field := range resultFieldNames {
		delete(raw, field)
	}

	clean, err := json.Marshal(raw)
	if err != nil {
		return err
	}

	type plain QueryIntent
	var p plain
	if err := json.Unmarshal(clean, &p); err != nil {
		return err
	}
	*q = QueryIntent(p)
	return nil
}

// ProjectStats is the composed per-project presence/count report.
type ProjectStats struct {
	ProjectID        string    `json:"projectId"`
	HasMetadata      bool      `json:"hasMetadata"`
	HasSchema        bool      `json:"hasSchema"`
	AISessionCount   int       `json:"aiSessionCount"`
	QueryIntentCount int       `json:"queryIntentCount"`
	Timestamp        time.Time `json:"timestamp"`
	Error            string    `json:"error,omitempty"`
}

// StoreHealth reports context store availability plus best-effort server
// introspection when the backend is reachable.
type StoreHealth struct {
	Status           string `json:"status"`
	Message          string `json:"message,omitempty"`
	RedisVersion     string `json:"redisVersion,omitempty"`
	UsedMemoryHuman  string `json:"usedMemoryHuman,omitempty"`
	ConnectedClients string `json:"connectedClients,omitempty"`
	UptimeInSeconds  string `json:"uptimeInSeconds,omitempty"`
}

// Health status values.
const (
	StoreStatusHealthy     = "healthy"
	StoreStatusUnavailable = "unavailable"
	StoreStatusError       = "error"
)
