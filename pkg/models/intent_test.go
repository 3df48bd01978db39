package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryIntent_UnmarshalStripsResultFields(t *testing.T) {
	payload := `{
		"id": "abc",
		"sql": "SELECT * FROM orders",
		"success": true,
		"durationMs": 12,
		"result": [[1, 2], [3, 4]],
		"results": {"rows": 2},
		"rows": [{"id": 1}],
		"columns": ["id"],
		"data": "blob"
	}`

	var intent QueryIntent
	require.NoError(t, json.Unmarshal([]byte(payload), &intent))

	assert.Equal(t, "abc", intent.ID)
	assert.Equal(t, "SELECT * FROM orders", intent.SQL)
	assert.True(t, intent.Success)
	assert.Equal(t, int64(12), intent.DurationMs)

	// Round-trip: the stored form must not contain any result field.
	stored, err := json.Marshal(intent)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(stored, &raw))
	for _, field := range []string{"result", "results", "rows", "columns", "data"} {
		assert.NotContains(t, raw, field)
	}
}

func TestQueryIntent_RoundTrip(t *testing.T) {
	intent := QueryIntent{
		ID:           "id-1",
		SQL:          "INSERT INTO orders VALUES (1)",
		UserQuestion: "add an order",
		ExecutedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Success:      false,
		ErrorMessage: "duplicate key",
		Tables:       []string{"orders"},
		DurationMs:   5,
	}

	data, err := json.Marshal(intent)
	require.NoError(t, err)

	var decoded QueryIntent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, intent, decoded)
}

func TestDialect_Canonical(t *testing.T) {
	tests := []struct {
		in       Dialect
		want     Dialect
		remapped bool
	}{
		{DialectLegacyPresto, DialectTrino, true},
		{DialectLegacySparkSQL, DialectSpark, true},
		{DialectMySQL, DialectMySQL, false},
		{DialectTrino, DialectTrino, false},
		{Dialect("oracle"), Dialect("oracle"), false},
	}
	for _, tt := range tests {
		got, remapped := tt.in.Canonical()
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.remapped, remapped)
	}
}

func TestProject_Validate(t *testing.T) {
	valid := Project{ID: "p1", Name: "Sales", Dialect: DialectMySQL}
	assert.NoError(t, valid.Validate())

	missingID := Project{Name: "Sales", Dialect: DialectMySQL}
	assert.Error(t, missingID.Validate())

	missingName := Project{ID: "p1", Dialect: DialectMySQL}
	assert.Error(t, missingName.Validate())

	badDialect := Project{ID: "p1", Name: "Sales", Dialect: "oracle"}
	assert.Error(t, badDialect.Validate())

	legacyOK := Project{ID: "p1", Name: "Sales", Dialect: DialectLegacyPresto}
	assert.NoError(t, legacyOK.Validate())
}
