package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/inference"
	"github.com/alessiagatto/documenter-agent/pkg/inference/llmerrors"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/utils"
)

// Extractor converts critique text for a diagram type into a RuleSet.
// Implementations never fail: every problem collapses to an empty set.
type Extractor interface {
	Extract(ctx context.Context, diagramType, feedback string) RuleSet
	Strategy() string
}

// NewExtractor builds the extractor selected by cfg.Strategy. Middleware is
// applied to the inference client of the model strategy.
func NewExtractor(cfg config.ExtractorConfig, middleware ...inference.Middleware) (Extractor, error) {
	switch cfg.Strategy {
	case config.StrategyKeyword:
		return NewKeywordExtractor(), nil
	case config.StrategyModel, "":
		client, err := inference.NewClient(cfg.Endpoint(), middleware...)
		if err != nil {
			return nil, fmt.Errorf("failed to create extractor client: %w", err)
		}
		counter, err := utils.NewTokenCounter()
		if err != nil {
			// Counting falls back to a character estimate.
			logger.Warn("token counter unavailable, estimating feedback size: %v", err)
		}
		return NewModelExtractor(client, counter, ModelOptions{
			Temperature:       cfg.Temperature,
			MaxTokens:         cfg.MaxTokens,
			MaxFeedbackTokens: cfg.MaxFeedbackTokens,
		}), nil
	default:
		return nil, fmt.Errorf("unknown extractor strategy %q", cfg.Strategy)
	}
}

// ModelOptions tunes the model extractor request.
type ModelOptions struct {
	Temperature       float64
	MaxTokens         int
	MaxFeedbackTokens int // feedback is truncated to this many tokens; 0 disables
}

// stopSequences end the completion right after the JSON object.
//
//nolint:gochecknoglobals // read-only
var stopSequences = []string{"```", "\n\n"}

// ModelExtractor asks a text model to restate feedback as {"rules": [...]}.
type ModelExtractor struct {
	client  inference.Client
	counter *utils.TokenCounter
	opts    ModelOptions
}

// NewModelExtractor creates a model-backed extractor. counter may be nil.
func NewModelExtractor(client inference.Client, counter *utils.TokenCounter, opts ModelOptions) *ModelExtractor {
	return &ModelExtractor{client: client, counter: counter, opts: opts}
}

// Strategy returns config.StrategyModel.
func (m *ModelExtractor) Strategy() string {
	return config.StrategyModel
}

// Extract returns the rules named by the model. Empty feedback returns the
// empty set without calling the model.
func (m *ModelExtractor) Extract(ctx context.Context, diagramType, feedback string) RuleSet {
	if strings.TrimSpace(feedback) == "" {
		return RuleSet{}
	}

	if m.opts.MaxFeedbackTokens > 0 {
		if n := m.counter.CountTokens(feedback); n > m.opts.MaxFeedbackTokens {
			logger.Info("truncating %s feedback from %d to %d tokens", diagramType, n, m.opts.MaxFeedbackTokens)
			feedback = m.counter.TruncateToTokenLimit(feedback, m.opts.MaxFeedbackTokens)
		}
	}

	reply, err := m.client.Complete(ctx, inference.TextRequest{
		Prompt:      extractionPrompt(diagramType, feedback),
		Temperature: m.opts.Temperature,
		MaxTokens:   m.opts.MaxTokens,
		Stop:        stopSequences,
		JSON:        true,
	})
	if err != nil {
		logger.Warn("rule extraction for %s failed (%s), continuing without rules", diagramType, llmerrors.TypeOf(err))
		return RuleSet{}
	}

	set, err := ParseReply(reply)
	if err != nil {
		logger.Warn("rule extraction for %s returned unusable reply: %v", diagramType, err)
		return RuleSet{}
	}
	logx.Debug(ctx, "rules", "extracted %d rules for %s: %s", set.Len(), diagramType, set)
	return set
}

func extractionPrompt(diagramType, feedback string) string {
	var b strings.Builder
	b.WriteString("You are a strict rule extractor.\n\n")
	b.WriteString("Return ONLY valid JSON.\nDo NOT explain.\nDo NOT add text.\n\n")
	b.WriteString("Output format:\n\n{\n  \"rules\": [\"rule_name\"]\n}\n\n")
	b.WriteString("Known rules: ")
	b.WriteString(strings.Join([]string{LeftToRightOrder, NoDuplicateElements, IncreaseSpacing, ImproveAlignment, NumberMessages}, ", "))
	b.WriteString("\n\nDiagram type: ")
	b.WriteString(diagramType)
	b.WriteString("\n\nFeedback:\n")
	b.WriteString(feedback)
	b.WriteString("\n")
	return b.String()
}

type extractionReply struct {
	Rules *[]string `json:"rules"`
}

// ParseReply parses a model reply of the form {"rules": ["a", "b"]}.
// Surrounding whitespace is tolerated; anything else is an error.
func ParseReply(reply string) (RuleSet, error) {
	var parsed extractionReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("reply is not the expected JSON object: %w", err)
	}
	if parsed.Rules == nil {
		return nil, fmt.Errorf("reply has no rules field")
	}
	return NewRuleSet(*parsed.Rules...), nil
}

// keywordRule pairs a lower-case phrase with the rule it implies.
type keywordRule struct {
	phrase string
	rule   string
}

//nolint:gochecknoglobals // read-only table
var keywordTable = []keywordRule{
	{"duplicate", NoDuplicateElements},
	{"left to right", LeftToRightOrder},
	{"spacing", IncreaseSpacing},
	{"alignment", ImproveAlignment},
}

// KeywordExtractor sets rules from fixed phrases found in the feedback.
type KeywordExtractor struct{}

// NewKeywordExtractor creates a keyword extractor.
func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{}
}

// Strategy returns config.StrategyKeyword.
func (KeywordExtractor) Strategy() string {
	return config.StrategyKeyword
}

// Extract matches the keyword table case-insensitively. The diagram type
// does not influence matching.
func (KeywordExtractor) Extract(_ context.Context, _ string, feedback string) RuleSet {
	set := RuleSet{}
	text := strings.ToLower(feedback)
	for _, kw := range keywordTable {
		if strings.Contains(text, kw.phrase) {
			set.Add(kw.rule)
		}
	}
	return set
}

//nolint:gochecknoglobals // package logger
var logger = logx.NewLogger("rules")
