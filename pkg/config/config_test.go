package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultArchitectureID, cfg.ArchitectureID)
	assert.Equal(t, DefaultKBPath, cfg.Paths.KB)
	assert.Equal(t, DefaultCompilerCommand, cfg.Compiler.Command)
	assert.Equal(t, []string{"-tpng"}, cfg.Compiler.Args)
	assert.Equal(t, 60*time.Second, cfg.CompileTimeout())
	assert.Equal(t, ProviderOpenAI, cfg.Vision.Provider)
	assert.Equal(t, DefaultBaseURL, cfg.Vision.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.Extractor.Endpoint().Timeout())
	assert.Equal(t, StrategyModel, cfg.Extractor.Strategy)
	assert.Zero(t, cfg.Extractor.Temperature)
	assert.True(t, cfg.ShouldRefine("sequence_diagram"))
	assert.False(t, cfg.ShouldRefine("component_diagram"))
	assert.True(t, cfg.HistoryEnabled())
	assert.Equal(t, 1, cfg.Concurrency)
}

func TestLoadConfigJSONWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_VISION_KEY", "sk-test")
	path := writeFile(t, "config.json", `{
		"architecture_id": "Layered",
		"vision": {"provider": "ollama", "model": "llava:13b", "api_key": "${TEST_VISION_KEY}"},
		"extractor": {"strategy": "keyword"},
		"compiler": {"command": "java", "args": ["-jar", "plantuml.jar", "-tpng"], "image_ext": "png"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Layered", cfg.ArchitectureID)
	assert.Equal(t, "sk-test", cfg.Vision.APIKey)
	assert.Equal(t, DefaultOllamaURL, cfg.Vision.BaseURL)
	assert.Equal(t, StrategyKeyword, cfg.Extractor.Strategy)
	assert.Equal(t, []string{"-jar", "plantuml.jar", "-tpng"}, cfg.Compiler.Args)
	assert.Equal(t, ".png", cfg.Compiler.ImageExt)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
architecture_id: Event Driven
paths:
  output_dir: out
  history_db: "-"
refine_types: [sequence_diagram, component_diagram]
concurrency: 2
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Event Driven", cfg.ArchitectureID)
	assert.Equal(t, "out", cfg.Paths.OutputDir)
	assert.False(t, cfg.HistoryEnabled())
	assert.True(t, cfg.ShouldRefine("component_diagram"))
	assert.Equal(t, 2, cfg.Concurrency)
}

func TestRateLimitConfig(t *testing.T) {
	t.Setenv("VISION_RATE_LIMIT_MAX_CONCURRENCY", "2")
	path := writeFile(t, "config.yaml", `
extractor:
  rate_limit:
    tokens_per_minute: 20000
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Vision.RateLimit.MaxConcurrency)
	assert.True(t, cfg.Vision.RateLimit.Enabled())
	assert.Equal(t, 20000, cfg.Extractor.Endpoint().RateLimit.TokensPerMinute)
	assert.False(t, Default().Vision.RateLimit.Enabled())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VISION_MODEL", "gpt-4o")
	t.Setenv("COMPILER_TIMEOUT_SEC", "15")
	t.Setenv("VISION_TEMPERATURE", "0.7")
	t.Setenv("REFINE_TYPES", "sequence_diagram, deployment_diagram")
	t.Setenv("DOCUMENT_DISABLE_PDF", "true")

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Vision.Model)
	assert.Equal(t, 15*time.Second, cfg.CompileTimeout())
	assert.InDelta(t, 0.7, cfg.Vision.Temperature, 1e-9)
	assert.Equal(t, []string{"sequence_diagram", "deployment_diagram"}, cfg.RefineTypes)
	assert.True(t, cfg.Document.DisablePDF)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultArchitectureID, cfg.ArchitectureID)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad strategy", `{"extractor": {"strategy": "regex"}}`},
		{"bad provider", `{"vision": {"provider": "mystery"}}`},
		{"bad temperature", `{"vision": {"temperature": 3.5}}`},
		{"too much concurrency", `{"concurrency": 64}`},
		{"negative rate limit", `{"extractor": {"rate_limit": {"max_concurrency": -1}}}`},
		{"malformed", `{"vision": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "config.json", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestAPIKeyFor(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	assert.Equal(t, "explicit", APIKeyFor(&InferenceConfig{Provider: ProviderAnthropic, APIKey: "explicit"}))
	assert.Equal(t, "from-env", APIKeyFor(&InferenceConfig{Provider: ProviderAnthropic}))
	assert.Empty(t, APIKeyFor(&InferenceConfig{Provider: ProviderOllama}))
}
