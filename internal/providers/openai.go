// internal/providers/openai.go
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"llm-council/internal/common/config"
	"llm-council/internal/common/logger"
	"llm-council/internal/models"
)

var (
	ErrProviderTimeout = errors.New("PROVIDER_TIMEOUT")
	ErrProviderFailed  = errors.New("PROVIDER_FAILED")
	ErrEmptyResponse   = errors.New("PROVIDER_EMPTY_RESPONSE")
)

// OpenAIClient calls the OpenAI chat completions API over plain HTTP.
type OpenAIClient struct {
	config config.OpenAIConfig
	client *http.Client
	logger logger.Logger
}

func NewOpenAIClient(cfg config.OpenAIConfig, log logger.Logger) *OpenAIClient {
	return &OpenAIClient{
		config: cfg,
		client: &http.Client{
			// No client timeout - rely only on context
		},
		logger: log.WithFields(map[string]interface{}{"provider": ProviderOpenAI}),
	}
}

func (c *OpenAIClient) Name() string { return ProviderOpenAI }

func (c *OpenAIClient) Invoke(ctx context.Context, systemPrompt string, history []models.HistoryMessage) (*Response, error) {
	messages := make([]map[string]interface{}, 0, len(history)+1)
	messages = append(messages, map[string]interface{}{
		"role":    "system",
		"content": systemPrompt,
	})
	for _, m := range history {
		messages = append(messages, chatMessage(m))
	}

	requestBody := map[string]interface{}{
		"model":       c.config.Model,
		"messages":    messages,
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrProviderTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProviderFailed, resp.StatusCode)
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrProviderFailed, err)
	}

	if len(apiResponse.Choices) == 0 || apiResponse.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	tokensUsed := apiResponse.Usage.PromptTokens + apiResponse.Usage.CompletionTokens

	c.logger.Debug("advisor call completed", map[string]interface{}{
		"tokensUsed": tokensUsed,
	})

	return &Response{
		Text:       apiResponse.Choices[0].Message.Content,
		TokensUsed: tokensUsed,
	}, nil
}

// chatMessage converts a history message to the chat completions shape.
// Turns with images use the multi-part content form with data URLs.
func chatMessage(m models.HistoryMessage) map[string]interface{} {
	if len(m.Images) == 0 {
		return map[string]interface{}{
			"role":    m.Role,
			"content": m.Content,
		}
	}

	parts := []map[string]interface{}{
		{"type": "text", "text": m.Content},
	}
	for _, img := range m.Images {
		parts = append(parts, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]interface{}{
				"url": fmt.Sprintf("data:%s;base64,%s", img.MediaType, img.Data),
			},
		})
	}
	return map[string]interface{}{
		"role":    m.Role,
		"content": parts,
	}
}
