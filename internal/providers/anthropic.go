// internal/providers/anthropic.go
package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"llm-council/internal/common/config"
	"llm-council/internal/common/logger"
	"llm-council/internal/models"
)

// AnthropicClient wraps the Anthropic SDK.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	logger    logger.Logger
}

func NewAnthropicClient(cfg config.AnthropicConfig, log logger.Logger) *AnthropicClient {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}
	c := anthropic.NewClient(opts...)
	return &AnthropicClient{
		client:    &c,
		model:     model,
		maxTokens: maxTokens,
		logger:    log.WithFields(map[string]interface{}{"provider": ProviderAnthropic}),
	}
}

func (c *AnthropicClient) Name() string { return ProviderAnthropic }

func (c *AnthropicClient) Invoke(ctx context.Context, systemPrompt string, history []models.HistoryMessage) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  toAnthropicMessages(history),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrProviderTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return nil, ErrEmptyResponse
	}

	tokensUsed := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)

	c.logger.Debug("advisor call completed", map[string]interface{}{
		"tokensUsed": tokensUsed,
	})

	return &Response{
		Text:       out.String(),
		TokensUsed: tokensUsed,
	}, nil
}

func toAnthropicMessages(msgs []models.HistoryMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, len(msgs))
	for i, m := range msgs {
		blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
		for _, img := range m.Images {
			blocks = append(blocks, anthropic.NewImageBlockBase64(img.MediaType, img.Data))
		}
		if m.Role == "assistant" {
			out[i] = anthropic.NewAssistantMessage(blocks...)
		} else {
			out[i] = anthropic.NewUserMessage(blocks...)
		}
	}
	return out
}
