package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/apperrors"
	"github.com/sqlfabric/fabric/pkg/config"
	"github.com/sqlfabric/fabric/pkg/models"
)

type openAIGenerator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

var _ SQLGenerator = (*openAIGenerator)(nil)

func newOpenAIGenerator(cfg *config.AIConfig, logger *zap.Logger) *openAIGenerator {
	return &openAIGenerator{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("llm-openai"),
	}
}

func (g *openAIGenerator) Model() string { return g.model }

func (g *openAIGenerator) GenerateSQL(ctx context.Context, question string, schema *models.SchemaSnapshot, history []models.SessionMessage) (string, error) {
	prompt := buildPrompt(question, schema, history)

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		g.logger.Error("generation failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", apperrors.Upstream(fmt.Errorf("openai: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.Upstream(fmt.Errorf("openai: empty response"))
	}

	g.logger.Debug("sql generated",
		zap.String("model", g.model),
		zap.Duration("elapsed", time.Since(start)))
	return extractSQL(resp.Choices[0].Message.Content), nil
}
