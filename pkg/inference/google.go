package inference

import (
	"context"
	"errors"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/alessiagatto/documenter-agent/pkg/inference/llmerrors"
)

// GoogleClient uses the Gemini API. The SDK client needs a context to be
// built, so it is created on first use.
type GoogleClient struct {
	client  *genai.Client
	initErr error
	apiKey  string
	model   string
	once    sync.Once
}

// NewGoogleClient creates a client for the Gemini API backend.
func NewGoogleClient(apiKey, model string) *GoogleClient {
	return &GoogleClient{apiKey: apiKey, model: model}
}

// Describe sends the prompt and the image as inline data.
func (g *GoogleClient) Describe(ctx context.Context, req VisionRequest) (string, error) {
	parts := []*genai.Part{
		{Text: req.Prompt},
		{InlineData: &genai.Blob{MIMEType: req.mimeType(), Data: req.Image}},
	}
	return g.generate(ctx, parts, g.generationConfig(req.Temperature, req.MaxTokens, nil, false))
}

// Complete sends the prompt as a single user turn.
func (g *GoogleClient) Complete(ctx context.Context, req TextRequest) (string, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	return g.generate(ctx, parts, g.generationConfig(req.Temperature, req.MaxTokens, req.Stop, req.JSON))
}

// ModelName returns the configured model.
func (g *GoogleClient) ModelName() string {
	return g.model
}

func (g *GoogleClient) generationConfig(temperature float64, maxTokens int, stop []string, jsonOnly bool) *genai.GenerateContentConfig {
	temp := float32(temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if maxTokens > 0 {
		//nolint:gosec // bounded by config validation
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	if len(stop) > 0 {
		cfg.StopSequences = stop
	}
	if jsonOnly {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func (g *GoogleClient) generate(ctx context.Context, parts []*genai.Part, cfg *genai.GenerateContentConfig) (string, error) {
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if g.initErr != nil {
		return "", &llmerrors.Error{Type: llmerrors.ErrorTypeAuth, Err: g.initErr, Message: "failed to create Gemini client"}
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", llmerrors.Classify(err, apiErr.Code)
		}
		return "", llmerrors.Classify(err, 0)
	}
	if result == nil {
		return "", llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}
	return strings.TrimSpace(result.Text()), nil
}
