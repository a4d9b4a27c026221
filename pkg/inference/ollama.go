package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/inference/llmerrors"
)

// OllamaClient talks to a local Ollama server through its native API.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates a client. hostURL should be the server root
// (e.g. "http://localhost:11434"); an unparsable URL falls back to the default.
func NewOllamaClient(hostURL, model string) *OllamaClient {
	parsedURL, err := url.Parse(hostURL)
	if err != nil || hostURL == "" {
		parsedURL, _ = url.Parse(config.DefaultOllamaURL)
	}
	return &OllamaClient{
		client: api.NewClient(parsedURL, http.DefaultClient),
		model:  model,
	}
}

// Describe sends the image as a raw attachment on a chat message.
func (o *OllamaClient) Describe(ctx context.Context, req VisionRequest) (string, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: req.Prompt,
			Images:  []api.ImageData{req.Image},
		}},
		Stream:  &stream,
		Options: options(req.Temperature, req.MaxTokens, nil),
	}

	var content strings.Builder
	err := o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", classifyOllamaError(err)
	}
	return strings.TrimSpace(content.String()), nil
}

// Complete uses the generate endpoint. JSON requests set Ollama's json format.
func (o *OllamaClient) Complete(ctx context.Context, req TextRequest) (string, error) {
	stream := false
	genReq := &api.GenerateRequest{
		Model:   o.model,
		Prompt:  req.Prompt,
		Stream:  &stream,
		Options: options(req.Temperature, req.MaxTokens, req.Stop),
	}
	if req.JSON {
		genReq.Format = json.RawMessage(`"json"`)
	}

	var content strings.Builder
	err := o.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		content.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", classifyOllamaError(err)
	}
	return strings.TrimSpace(content.String()), nil
}

// ModelName returns the configured model.
func (o *OllamaClient) ModelName() string {
	return o.model
}

func options(temperature float64, maxTokens int, stop []string) map[string]any {
	opts := map[string]any{"temperature": temperature}
	if maxTokens > 0 {
		opts["num_predict"] = maxTokens
	}
	if len(stop) > 0 {
		opts["stop"] = stop
	}
	return opts
}

// classifyError maps Ollama errors to structured types. The native client
// reports HTTP failures as api.StatusError; everything else is matched on text.
func classifyOllamaError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return llmerrors.Classify(err, statusErr.StatusCode)
	}
	if strings.Contains(err.Error(), "model") && strings.Contains(err.Error(), "not found") {
		return &llmerrors.Error{Type: llmerrors.ErrorTypeBadPrompt, Err: err, Message: err.Error()}
	}
	return llmerrors.Classify(err, 0)
}
