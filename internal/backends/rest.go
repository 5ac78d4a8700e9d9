package backends

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/models"
)

// RestBackend calls any OpenAI-compatible chat completions endpoint directly.
// It covers self-hosted and third-party gateways that the SDK-backed
// backends cannot reach.
type RestBackend struct {
	client *resty.Client
	model  string
	name   string
	retry  *RetryConfig
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewRestBackend(cfg *config.Config) (*RestBackend, error) {
	if cfg.RestBackendURL == "" {
		return nil, fmt.Errorf("REST_BACKEND_URL not configured")
	}
	client := resty.New()
	client.SetBaseURL(cfg.RestBackendURL)
	client.SetTimeout(30 * time.Second)
	if cfg.RestBackendKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.RestBackendKey)
	}
	return &RestBackend{
		client: client,
		model:  cfg.RestModel,
		name:   "rest/" + cfg.RestModel,
		retry:  DefaultRetryConfig(),
	}, nil
}

func (b *RestBackend) Name() string { return b.name }

func (b *RestBackend) Reason(ctx context.Context, symbol, analysisContext string) (models.AgentResponse, error) {
	req := chatRequest{
		Model:     b.model,
		MaxTokens: 2000,
	}
	for _, msg := range buildMessages(symbol, analysisContext) {
		req.Messages = append(req.Messages, chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	var result chatResponse
	err := WithRetry(ctx, b.retry, func() error {
		resp, err := b.client.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&result).
			Post("/chat/completions")
		if err != nil {
			return err
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode(), resp.String())
		}
		if result.Error != nil {
			return fmt.Errorf("API error: %s", result.Error.Message)
		}
		return nil
	})
	if err != nil {
		return models.AgentResponse{}, fmt.Errorf("rest backend call: %w", err)
	}
	if len(result.Choices) == 0 {
		return models.AgentResponse{}, fmt.Errorf("rest backend returned no choices")
	}

	resp, err := newResponse(b.name, result.Choices[0].Message.Content)
	if err != nil {
		return models.AgentResponse{}, fmt.Errorf("rest backend response: %w", err)
	}
	return resp, nil
}
