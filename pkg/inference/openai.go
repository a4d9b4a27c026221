package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/alessiagatto/documenter-agent/pkg/inference/llmerrors"
)

// localAPIKey is sent to self-hosted OpenAI-compatible servers that ignore auth.
const localAPIKey = "not-needed"

// OpenAICompatClient talks to the OpenAI API or any server exposing the same
// chat-completions and completions endpoints (LM Studio, vLLM, llama.cpp).
type OpenAICompatClient struct {
	client openai.Client
	model  string
}

// NewOpenAICompatClient creates a client. An empty baseURL targets the
// official API. Retries are disabled: a failed call is reported once.
func NewOpenAICompatClient(baseURL, apiKey, model string) *OpenAICompatClient {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		if apiKey == "" {
			apiKey = localAPIKey
		}
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAICompatClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Describe sends the image inline as a base64 data URL on a chat completion.
func (c *OpenAICompatClient) Describe(ctx context.Context, req VisionRequest) (string, error) {
	dataURL := "data:" + req.mimeType() + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(req.Prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Complete uses the legacy completions endpoint, which small local code
// models follow more literally than a chat template.
func (c *OpenAICompatClient) Complete(ctx context.Context, req TextRequest) (string, error) {
	params := openai.CompletionNewParams{
		Model:       openai.CompletionNewParamsModel(c.model),
		Prompt:      openai.CompletionNewParamsPromptUnion{OfString: openai.String(req.Prompt)},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.CompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}

	resp, err := c.client.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}

// ModelName returns the configured model.
func (c *OpenAICompatClient) ModelName() string {
	return c.model
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llmerrors.Classify(err, apiErr.StatusCode)
	}
	return llmerrors.Classify(err, 0)
}
