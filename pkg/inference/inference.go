// Package inference provides provider-neutral clients for the two inference
// calls the documenter makes: describing a rendered diagram image and
// completing a short text prompt.
//
// Providers live behind a single Client interface. Behaviour such as
// per-request timeouts, logging and metrics is layered on with Middleware,
// composed by Chain.
package inference

import (
	"context"
	"fmt"

	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/inference/llmerrors"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/utils"
)

// Operation names used in logs and metrics.
const (
	OpDescribe = "describe"
	OpComplete = "complete"
)

// DefaultImageMIMEType is assumed when a VisionRequest leaves MIMEType empty.
const DefaultImageMIMEType = "image/png"

// VisionRequest asks a multimodal model to comment on one image.
type VisionRequest struct {
	Prompt      string
	MIMEType    string
	Image       []byte
	Temperature float64
	MaxTokens   int
}

// TextRequest asks a text model to continue a prompt.
type TextRequest struct {
	Prompt      string
	Stop        []string
	Temperature float64
	MaxTokens   int
	JSON        bool // ask the provider for a JSON-only reply where supported
}

// Client is implemented by every provider.
type Client interface {
	// Describe sends the image and prompt and returns the model's reply text.
	Describe(ctx context.Context, req VisionRequest) (string, error)
	// Complete sends a text prompt and returns the completion text.
	Complete(ctx context.Context, req TextRequest) (string, error)
	// ModelName returns the model identifier the client was built for.
	ModelName() string
}

func (r *VisionRequest) mimeType() string {
	if r.MIMEType == "" {
		return DefaultImageMIMEType
	}
	return r.MIMEType
}

// NewClient builds the provider client described by cfg and wraps it with
// the timeout and logging middleware. Extra middleware (metrics) is applied
// outside those, in the order given. When cfg.RateLimit is set a limiter is
// outermost so that waiting for capacity does not count against the request
// timeout.
func NewClient(cfg config.InferenceConfig, extra ...Middleware) (Client, error) {
	base, err := newProviderClient(&cfg)
	if err != nil {
		return nil, err
	}

	chain := make([]Middleware, 0, len(extra)+3)
	if cfg.RateLimit.Enabled() {
		counter, err := utils.NewTokenCounter()
		if err != nil {
			logx.Warnf("token counting unavailable for rate limiting: %v", err)
		}
		chain = append(chain, RateLimitMiddleware(NewLimiter(cfg.Model, cfg.RateLimit), counter))
	}
	chain = append(chain, extra...)
	chain = append(chain, LoggingMiddleware(cfg.Provider))
	if timeout := cfg.Timeout(); timeout > 0 {
		chain = append(chain, TimeoutMiddleware(timeout))
	}
	return Chain(base, chain...), nil
}

func newProviderClient(cfg *config.InferenceConfig) (Client, error) {
	if cfg.Model == "" {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "model is required")
	}
	apiKey := config.APIKeyFor(cfg)

	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAICompatClient(cfg.BaseURL, apiKey, cfg.Model), nil
	case config.ProviderOllama:
		return NewOllamaClient(cfg.BaseURL, cfg.Model), nil
	case config.ProviderAnthropic:
		if apiKey == "" {
			return nil, llmerrors.NewError(llmerrors.ErrorTypeAuth, "anthropic provider requires an API key")
		}
		return NewAnthropicClient(cfg.BaseURL, apiKey, cfg.Model), nil
	case config.ProviderGoogle:
		if apiKey == "" {
			return nil, llmerrors.NewError(llmerrors.ErrorTypeAuth, "google provider requires an API key")
		}
		return NewGoogleClient(apiKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported inference provider %q", cfg.Provider)
	}
}
