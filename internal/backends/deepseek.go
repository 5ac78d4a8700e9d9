package backends

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/models"
)

// DeepSeekBackend reasons through a DeepSeek chat model.
type DeepSeekBackend struct {
	model *deepseek.ChatModel
	name  string
}

func NewDeepSeekBackend(ctx context.Context, cfg *config.Config) (*DeepSeekBackend, error) {
	if cfg.DeepSeekAPIKey == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY not configured")
	}
	chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		APIKey:    cfg.DeepSeekAPIKey,
		Model:     cfg.DeepSeekModel,
		MaxTokens: 2000,
	})
	if err != nil {
		return nil, fmt.Errorf("create deepseek chat model: %w", err)
	}
	return &DeepSeekBackend{model: chatModel, name: "deepseek/" + cfg.DeepSeekModel}, nil
}

func (b *DeepSeekBackend) Name() string { return b.name }

func (b *DeepSeekBackend) Reason(ctx context.Context, symbol, analysisContext string) (models.AgentResponse, error) {
	msg, err := b.model.Generate(ctx, buildMessages(symbol, analysisContext))
	if err != nil {
		return models.AgentResponse{}, fmt.Errorf("deepseek generate: %w", err)
	}
	resp, err := newResponse(b.name, msg.Content)
	if err != nil {
		return models.AgentResponse{}, fmt.Errorf("deepseek response: %w", err)
	}
	return resp, nil
}
