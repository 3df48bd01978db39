// Package llm turns natural-language questions into SQL through a provider
// behind a narrow interface. Everything past the prompt is provider-opaque.
package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/config"
	"github.com/sqlfabric/fabric/pkg/models"
)

// SQLGenerator produces one SQL statement for a question, given the
// project's discovered schema and recent conversation turns.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, question string, schema *models.SchemaSnapshot, history []models.SessionMessage) (string, error)

	// Model returns the configured model name, for logging.
	Model() string
}

// New selects the provider from config. Returns ErrValidation when no
// provider is configured; callers treat NL generation as an optional
// capability.
func New(cfg *config.AIConfig, logger *zap.Logger) (SQLGenerator, error) {
	switch cfg.Provider {
	case config.AIProviderAnthropic:
		return newAnthropicGenerator(cfg, logger), nil
	case config.AIProviderOpenAI:
		return newOpenAIGenerator(cfg, logger), nil
	case "":
		return nil, apperrors.Validation("no AI provider configured")
	default:
		return nil, apperrors.Validation("unknown AI provider %q", cfg.Provider)
	}
}

const systemPrompt = `You are a SQL assistant. Generate exactly one SQL statement that answers the user's question against the provided schema. Use only the tables and columns listed. Respond with the SQL statement only, no explanation.`

// buildPrompt renders the schema and recent conversation into the user
// prompt. Display names are used; the namespace prefix is applied after
// generation, not by the model.
func buildPrompt(question string, schema *models.SchemaSnapshot, history []models.SessionMessage) string {
	var b strings.Builder

	if schema != nil && len(schema.Tables) > 0 {
		b.WriteString("Schema:\n")
		for _, table := range schema.Tables {
			b.WriteString(table.DisplayName)
			b.WriteString(" (")
			for i, col := range table.Columns {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(col.Name)
				b.WriteString(" ")
				b.WriteString(col.Type)
			}
			b.WriteString(")\n")
		}
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, msg := range history {
			role, _ := msg.Payload["role"].(string)
			content, _ := msg.Payload["content"].(string)
			if role == "" || content == "" {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", role, content)
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

// extractSQL strips markdown code fences that models wrap statements in.
func extractSQL(response string) string {
	text := strings.TrimSpace(response)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```sql")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
