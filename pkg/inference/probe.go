package inference

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/inference/llmerrors"
)

// Probe checks that an endpoint is reachable and serves the configured model.
// Hosted providers are only checked for credentials, so that preflight never
// spends a billable request. The returned string describes what was verified.
func Probe(ctx context.Context, cfg config.InferenceConfig) (string, error) {
	if cfg.Timeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout())
		defer cancel()
	}

	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		c := NewOpenAICompatClient(cfg.BaseURL, config.APIKeyFor(&cfg), cfg.Model)
		return c.probe(ctx)
	case config.ProviderOllama:
		return NewOllamaClient(cfg.BaseURL, cfg.Model).probe(ctx)
	case config.ProviderAnthropic, config.ProviderGoogle:
		if config.APIKeyFor(&cfg) == "" {
			return "", llmerrors.NewError(llmerrors.ErrorTypeAuth, cfg.Provider+" API key is not set")
		}
		return fmt.Sprintf("%s API key configured for %s", cfg.Provider, cfg.Model), nil
	default:
		return "", fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}

func (c *OpenAICompatClient) probe(ctx context.Context) (string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	ids := make([]string, 0, len(page.Data))
	for i := range page.Data {
		ids = append(ids, page.Data[i].ID)
	}
	// Some local servers list nothing until a model is loaded.
	if len(ids) > 0 && !slices.Contains(ids, c.model) {
		return "", llmerrors.NewError(llmerrors.ErrorTypeBadPrompt,
			fmt.Sprintf("model %q not served (available: %s)", c.model, strings.Join(ids, ", ")))
	}
	return fmt.Sprintf("endpoint reachable, model %s", c.model), nil
}

func (o *OllamaClient) probe(ctx context.Context) (string, error) {
	list, err := o.client.List(ctx)
	if err != nil {
		return "", classifyOllamaError(err)
	}
	for _, m := range list.Models {
		if m.Name == o.model || m.Model == o.model || strings.TrimSuffix(m.Name, ":latest") == o.model {
			return fmt.Sprintf("ollama reachable, model %s pulled", o.model), nil
		}
	}
	return "", llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("model %q is not pulled", o.model))
}
