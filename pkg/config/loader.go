package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig loads and validates configuration from a JSON or YAML file with
// environment variable substitution.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dataStr := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		envVar := match[2 : len(match)-1]
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})

	var cfg Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(dataStr), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal([]byte(dataStr), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return finish(&cfg, configPath)
}

// LoadOrDefault loads configPath when it exists; a missing file yields the
// defaults (with env overrides). An empty path means no file.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath != "" {
		cfg, err := LoadConfig(configPath)
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
		logger.Warn("Config file %s not found, using defaults", configPath)
	}
	return finish(&Config{}, "defaults")
}

func finish(cfg *Config, source string) (*Config, error) {
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("Configuration loaded from %s", source)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem(), "")
}

func applyEnvOverridesRecursive(v reflect.Value, prefix string) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		jsonTag := fieldType.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		envKey := strings.ToUpper(prefix + strings.Split(jsonTag, ",")[0])

		if field.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(field, envKey+"_")
			continue
		}

		if envValue, ok := os.LookupEnv(envKey); ok && envValue != "" {
			setFieldFromEnv(field, envValue)
		}
	}
}

func setFieldFromEnv(field reflect.Value, envValue string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int:
		if val, err := strconv.Atoi(strings.TrimSpace(envValue)); err == nil {
			field.SetInt(int64(val))
		}
	case reflect.Float64:
		if val, err := strconv.ParseFloat(strings.TrimSpace(envValue), 64); err == nil {
			field.SetFloat(val)
		}
	case reflect.Bool:
		if val, err := strconv.ParseBool(strings.TrimSpace(envValue)); err == nil {
			field.SetBool(val)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			var items []string
			for _, part := range strings.Split(envValue, ",") {
				if p := strings.TrimSpace(part); p != "" {
					items = append(items, p)
				}
			}
			field.Set(reflect.ValueOf(items))
		}
	}
}

// applyDefaults sets default values for missing configuration.
func applyDefaults(cfg *Config) {
	if cfg.ArchitectureID == "" {
		cfg.ArchitectureID = DefaultArchitectureID
	}

	if cfg.Paths.KB == "" {
		cfg.Paths.KB = DefaultKBPath
	}
	if cfg.Paths.Input == "" {
		cfg.Paths.Input = DefaultInputPath
	}
	if cfg.Paths.OutputDir == "" {
		cfg.Paths.OutputDir = DefaultOutputDir
	}
	if cfg.Paths.HistoryDB == "" {
		cfg.Paths.HistoryDB = DefaultHistoryDB
	}

	if cfg.Compiler.Command == "" {
		cfg.Compiler.Command = DefaultCompilerCommand
		if cfg.Compiler.Args == nil {
			cfg.Compiler.Args = []string{"-tpng"}
		}
	}
	if cfg.Compiler.TimeoutSec <= 0 {
		cfg.Compiler.TimeoutSec = DefaultCompilerTimeoutSec
	}
	if cfg.Compiler.ImageExt == "" {
		cfg.Compiler.ImageExt = DefaultImageExt
	}
	if !strings.HasPrefix(cfg.Compiler.ImageExt, ".") {
		cfg.Compiler.ImageExt = "." + cfg.Compiler.ImageExt
	}

	if cfg.Vision.Provider == "" {
		cfg.Vision.Provider = ProviderOpenAI
	}
	if cfg.Vision.BaseURL == "" {
		cfg.Vision.BaseURL = defaultBaseURL(cfg.Vision.Provider)
	}
	if cfg.Vision.Model == "" {
		cfg.Vision.Model = DefaultVisionModel
	}
	if cfg.Vision.Temperature == 0 {
		cfg.Vision.Temperature = DefaultVisionTemperature
	}
	if cfg.Vision.MaxTokens <= 0 {
		cfg.Vision.MaxTokens = DefaultVisionMaxTokens
	}
	if cfg.Vision.TimeoutSec <= 0 {
		cfg.Vision.TimeoutSec = DefaultVisionTimeoutSec
	}

	if cfg.Extractor.Strategy == "" {
		cfg.Extractor.Strategy = StrategyModel
	}
	if cfg.Extractor.Provider == "" {
		cfg.Extractor.Provider = ProviderOpenAI
	}
	if cfg.Extractor.BaseURL == "" {
		cfg.Extractor.BaseURL = defaultBaseURL(cfg.Extractor.Provider)
	}
	if cfg.Extractor.Model == "" {
		cfg.Extractor.Model = DefaultExtractorModel
	}
	// Extractor temperature stays 0: the reply must be deterministic JSON.
	if cfg.Extractor.MaxTokens <= 0 {
		cfg.Extractor.MaxTokens = DefaultExtractorMaxTokens
	}
	if cfg.Extractor.TimeoutSec <= 0 {
		cfg.Extractor.TimeoutSec = DefaultExtractorTimeout
	}
	if cfg.Extractor.MaxFeedbackTokens <= 0 {
		cfg.Extractor.MaxFeedbackTokens = DefaultMaxFeedbackTokens
	}

	if cfg.Document.Title == "" {
		cfg.Document.Title = DefaultDocumentTitle
	}
	if cfg.Document.PandocCommand == "" {
		cfg.Document.PandocCommand = DefaultPandocCommand
	}
	if cfg.Document.PDFEngine == "" {
		cfg.Document.PDFEngine = DefaultPDFEngine
	}

	if cfg.RefineTypes == nil {
		cfg.RefineTypes = []string{DefaultSequenceDiagram}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
}

func defaultBaseURL(provider string) string {
	switch provider {
	case ProviderOllama:
		return DefaultOllamaURL
	case ProviderOpenAI:
		return DefaultBaseURL
	default:
		// Hosted providers use their SDK's default endpoint.
		return ""
	}
}

func validateConfig(cfg *Config) error {
	if cfg.ArchitectureID == "" {
		return fmt.Errorf("architecture_id is required")
	}
	if err := validateEndpoint("vision", cfg.Vision.Provider, cfg.Vision.Temperature); err != nil {
		return err
	}
	if err := validateRateLimit("vision", cfg.Vision.RateLimit); err != nil {
		return err
	}
	if err := validateRateLimit("extractor", cfg.Extractor.RateLimit); err != nil {
		return err
	}

	switch cfg.Extractor.Strategy {
	case StrategyModel:
		if err := validateEndpoint("extractor", cfg.Extractor.Provider, cfg.Extractor.Temperature); err != nil {
			return err
		}
	case StrategyKeyword:
	default:
		return fmt.Errorf("extractor.strategy must be %q or %q, got %q", StrategyModel, StrategyKeyword, cfg.Extractor.Strategy)
	}

	if strings.TrimSpace(cfg.Compiler.Command) == "" {
		return fmt.Errorf("compiler.command cannot be empty")
	}
	if cfg.Concurrency > 16 {
		return fmt.Errorf("concurrency must be between 1 and 16, got %d", cfg.Concurrency)
	}
	return nil
}

func validateRateLimit(section string, rl RateLimitConfig) error {
	if rl.TokensPerMinute < 0 || rl.MaxConcurrency < 0 {
		return fmt.Errorf("%s.rate_limit values cannot be negative", section)
	}
	return nil
}

func validateEndpoint(section, provider string, temperature float64) error {
	switch provider {
	case ProviderOpenAI, ProviderOllama, ProviderAnthropic, ProviderGoogle:
	default:
		return fmt.Errorf("%s.provider %q is not supported", section, provider)
	}
	if temperature < 0.0 || temperature > 2.0 {
		return fmt.Errorf("%s.temperature must be between 0.0 and 2.0", section)
	}
	return nil
}
