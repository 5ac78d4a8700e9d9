package backends

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/models"
)

// OpenAIBackend reasons through an OpenAI chat model.
type OpenAIBackend struct {
	model *openai.ChatModel
	name  string
}

func NewOpenAIBackend(ctx context.Context, cfg *config.Config) (*OpenAIBackend, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not configured")
	}
	maxTokens := 2000
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:   cfg.OpenAIBaseURL,
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.OpenAIModel,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai chat model: %w", err)
	}
	return &OpenAIBackend{model: chatModel, name: "openai/" + cfg.OpenAIModel}, nil
}

func (b *OpenAIBackend) Name() string { return b.name }

func (b *OpenAIBackend) Reason(ctx context.Context, symbol, analysisContext string) (models.AgentResponse, error) {
	msg, err := b.model.Generate(ctx, buildMessages(symbol, analysisContext))
	if err != nil {
		return models.AgentResponse{}, fmt.Errorf("openai generate: %w", err)
	}
	resp, err := newResponse(b.name, msg.Content)
	if err != nil {
		return models.AgentResponse{}, fmt.Errorf("openai response: %w", err)
	}
	return resp, nil
}
