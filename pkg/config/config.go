// Package config provides configuration loading, validation, and defaults for the documenter.
//
// Configuration is resolved in four steps, always in this order:
//
//  1. The file (JSON, or YAML when the extension is .yaml/.yml) is read and
//     ${VAR} placeholders are substituted from the environment.
//  2. Upper-cased env keys derived from the JSON tag path override fields
//     (e.g. VISION_MODEL, PATHS_KB, COMPILER_TIMEOUT_SEC).
//  3. Defaults fill every unset field.
//  4. The result is validated.
//
// Config values are plain data passed to constructors. Nothing in this package
// is a process-wide singleton.
package config

import (
	"os"
	"time"

	"github.com/alessiagatto/documenter-agent/pkg/logx"
)

// Provider names for inference endpoints.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// Extraction strategies.
const (
	StrategyModel   = "model"
	StrategyKeyword = "keyword"
)

// Defaults.
const (
	DefaultArchitectureID     = "Microservices Architecture"
	DefaultKBPath             = "data/kb/documentation_rules.json"
	DefaultInputPath          = "data/input/finalArchitecture.json"
	DefaultOutputDir          = "docs/generated"
	DefaultHistoryDB          = ".documenter/history.db"
	DefaultCompilerCommand    = "plantuml"
	DefaultCompilerTimeoutSec = 60
	DefaultImageExt           = ".png"
	DefaultBaseURL            = "http://127.0.0.1:1234/v1"
	DefaultOllamaURL          = "http://localhost:11434"
	DefaultVisionModel        = "minicpm-v-2_6"
	DefaultVisionTemperature  = 0.3
	DefaultVisionMaxTokens    = 512
	DefaultVisionTimeoutSec   = 60
	DefaultExtractorModel     = "qwen2.5-coder-1.5b-instruct"
	DefaultExtractorMaxTokens = 80
	DefaultExtractorTimeout   = 20
	DefaultMaxFeedbackTokens  = 1500
	DefaultDocumentTitle      = "Architecture Documentation"
	DefaultPandocCommand      = "pandoc"
	DefaultPDFEngine          = "xelatex"
	DefaultSequenceDiagram    = "sequence_diagram"
)

// PathsConfig locates inputs and outputs. Relative paths resolve against the working directory.
type PathsConfig struct {
	KB          string `json:"kb" yaml:"kb"`
	Input       string `json:"input" yaml:"input"`
	OutputDir   string `json:"output_dir" yaml:"output_dir"`
	HistoryDB   string `json:"history_db" yaml:"history_db"`     // "-" disables history
	MetricsFile string `json:"metrics_file" yaml:"metrics_file"` // empty disables export
}

// CompilerConfig describes the external diagram compiler.
// The command is invoked as: Command Args... <source path>.
type CompilerConfig struct {
	Command    string   `json:"command" yaml:"command"`
	ImageExt   string   `json:"image_ext" yaml:"image_ext"`
	Args       []string `json:"args" yaml:"args"`
	TimeoutSec int      `json:"timeout_sec" yaml:"timeout_sec"`
}

// RateLimitConfig throttles requests to one endpoint. Zero values disable
// the corresponding limit.
type RateLimitConfig struct {
	TokensPerMinute int `json:"tokens_per_minute" yaml:"tokens_per_minute"`
	MaxConcurrency  int `json:"max_concurrency" yaml:"max_concurrency"`
}

// Enabled reports whether any limit is set.
func (c RateLimitConfig) Enabled() bool {
	return c.TokensPerMinute > 0 || c.MaxConcurrency > 0
}

// InferenceConfig configures one inference endpoint.
type InferenceConfig struct {
	Provider    string          `json:"provider" yaml:"provider"`
	BaseURL     string          `json:"base_url" yaml:"base_url"`
	Model       string          `json:"model" yaml:"model"`
	APIKey      string          `json:"api_key" yaml:"api_key"`
	RateLimit   RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Temperature float64         `json:"temperature" yaml:"temperature"`
	MaxTokens   int             `json:"max_tokens" yaml:"max_tokens"`
	TimeoutSec  int             `json:"timeout_sec" yaml:"timeout_sec"`
}

// Timeout returns the request timeout.
func (c InferenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// ExtractorConfig selects and configures the rule extraction strategy.
type ExtractorConfig struct {
	Strategy          string          `json:"strategy" yaml:"strategy"`
	Provider          string          `json:"provider" yaml:"provider"`
	BaseURL           string          `json:"base_url" yaml:"base_url"`
	Model             string          `json:"model" yaml:"model"`
	APIKey            string          `json:"api_key" yaml:"api_key"`
	RateLimit         RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Temperature       float64         `json:"temperature" yaml:"temperature"`
	MaxTokens         int             `json:"max_tokens" yaml:"max_tokens"`
	TimeoutSec        int             `json:"timeout_sec" yaml:"timeout_sec"`
	MaxFeedbackTokens int             `json:"max_feedback_tokens" yaml:"max_feedback_tokens"`
}

// Endpoint returns the inference settings used by the model strategy.
func (c *ExtractorConfig) Endpoint() InferenceConfig {
	return InferenceConfig{
		Provider:    c.Provider,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		APIKey:      c.APIKey,
		RateLimit:   c.RateLimit,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		TimeoutSec:  c.TimeoutSec,
	}
}

// DocumentConfig controls the narrative document bundle.
type DocumentConfig struct {
	Title         string `json:"title" yaml:"title"`
	PandocCommand string `json:"pandoc_command" yaml:"pandoc_command"`
	PDFEngine     string `json:"pdf_engine" yaml:"pdf_engine"`
	DisablePDF    bool   `json:"disable_pdf" yaml:"disable_pdf"`
}

// Config is the complete run configuration.
type Config struct {
	ArchitectureID string          `json:"architecture_id" yaml:"architecture_id"`
	Paths          PathsConfig     `json:"paths" yaml:"paths"`
	Compiler       CompilerConfig  `json:"compiler" yaml:"compiler"`
	Vision         InferenceConfig `json:"vision" yaml:"vision"`
	Extractor      ExtractorConfig `json:"extractor" yaml:"extractor"`
	Document       DocumentConfig  `json:"document" yaml:"document"`
	RefineTypes    []string        `json:"refine_types" yaml:"refine_types"`
	Concurrency    int             `json:"concurrency" yaml:"concurrency"`
}

// CompileTimeout returns the compiler subprocess timeout.
func (c *Config) CompileTimeout() time.Duration {
	return time.Duration(c.Compiler.TimeoutSec) * time.Second
}

// HistoryEnabled reports whether refinement history should be persisted.
func (c *Config) HistoryEnabled() bool {
	return c.Paths.HistoryDB != "" && c.Paths.HistoryDB != "-"
}

// ShouldRefine reports whether the diagram type goes through vision critique.
func (c *Config) ShouldRefine(diagramType string) bool {
	for _, t := range c.RefineTypes {
		if t == diagramType {
			return true
		}
	}
	return false
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// APIKeyFor resolves the API key for an endpoint, falling back to the
// provider's conventional environment variable.
func APIKeyFor(c *InferenceConfig) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	var envVars []string
	switch c.Provider {
	case ProviderOpenAI:
		envVars = []string{"OPENAI_API_KEY"}
	case ProviderAnthropic:
		envVars = []string{"ANTHROPIC_API_KEY"}
	case ProviderGoogle:
		envVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	for _, name := range envVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

//nolint:gochecknoglobals // Package logger
var logger = logx.NewLogger("config")
