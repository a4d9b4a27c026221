package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/alessiagatto/documenter-agent/pkg/inference/llmerrors"
)

// anthropicDefaultMaxTokens is used when a request leaves MaxTokens unset;
// the Messages API requires a value.
const anthropicDefaultMaxTokens = 1024

// AnthropicClient uses the Claude Messages API for both operations.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient creates a client. baseURL may be empty.
func NewAnthropicClient(baseURL, apiKey, model string) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

// Describe sends a base64 image block followed by the prompt text.
func (c *AnthropicClient) Describe(ctx context.Context, req VisionRequest) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(req.Image)
	msg := anthropic.NewUserMessage(
		anthropic.NewImageBlockBase64(req.mimeType(), encoded),
		anthropic.NewTextBlock(req.Prompt),
	)
	return c.send(ctx, msg, req.Temperature, req.MaxTokens, nil)
}

// Complete sends the prompt as a single user turn.
func (c *AnthropicClient) Complete(ctx context.Context, req TextRequest) (string, error) {
	msg := anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))
	return c.send(ctx, msg, req.Temperature, req.MaxTokens, req.Stop)
}

// ModelName returns the configured model.
func (c *AnthropicClient) ModelName() string {
	return string(c.model)
}

func (c *AnthropicClient) send(ctx context.Context, msg anthropic.MessageParam, temperature float64, maxTokens int, stop []string) (string, error) {
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(maxTokens),
		Messages:    []anthropic.MessageParam{msg},
		Temperature: anthropic.Float(temperature),
	}
	if len(stop) > 0 {
		params.StopSequences = stop
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", llmerrors.Classify(err, apiErr.StatusCode)
		}
		return "", llmerrors.Classify(err, 0)
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty or nil response from Claude API")
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}
