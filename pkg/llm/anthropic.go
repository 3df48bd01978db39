package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/config"
	"github.com/sqlfabric/fabric/pkg/models"
)

type anthropicGenerator struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

var _ SQLGenerator = (*anthropicGenerator)(nil)

func newAnthropicGenerator(cfg *config.AIConfig, logger *zap.Logger) *anthropicGenerator {
	return &anthropicGenerator{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("llm-anthropic"),
	}
}

func (g *anthropicGenerator) Model() string { return g.model }

func (g *anthropicGenerator) GenerateSQL(ctx context.Context, question string, schema *models.SchemaSnapshot, history []models.SessionMessage) (string, error) {
	prompt := buildPrompt(question, schema, history)

	start := time.Now()
	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(g.model),
		System:    systemPrompt,
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: anthropic.MessagesContentTypeText, Text: &prompt},
			}},
		},
	})
	if err != nil {
		g.logger.Error("generation failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", apperrors.Upstream(fmt.Errorf("anthropic: %w", err))
	}

	var text string
	for _, content := range resp.Content {
		if content.Type == anthropic.MessagesContentTypeText && content.Text != nil {
			text += *content.Text
		}
	}
	if text == "" {
		return "", apperrors.Upstream(fmt.Errorf("anthropic: empty response"))
	}

	g.logger.Debug("sql generated",
		zap.String("model", g.model),
		zap.Duration("elapsed", time.Since(start)))
	return extractSQL(text), nil
}
