package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, 1500, cfg.Conversation.NarrationCharBudget)
	assert.Equal(t, 0.7, cfg.Classification.ConfidenceThreshold)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ai:
  provider: anthropic
  chat_model: claude-sonnet-4-20250514
conversation:
  narration_char_budget: 800
model_limits:
  - name: claude-sonnet-4-20250514
    max_tpm: 40000
    daily_budget_usd: 20
    max_concurrent: 4
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.AI.Provider)
	assert.Equal(t, 800, cfg.Conversation.NarrationCharBudget)
	require.Len(t, cfg.ModelLimits, 1)
	assert.Equal(t, 40000, cfg.ModelLimits[0].MaxTPM)

	// Untouched sections keep their defaults.
	assert.Equal(t, "vozlocal.db", cfg.Storage.DBPath)
	assert.Equal(t, 5, cfg.Conversation.CurationBatchSize)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  db_path: from-yaml.db\n"), 0o644))

	t.Setenv("VOZLOCAL_DB_PATH", "from-env.db")
	t.Setenv("VOZLOCAL_AI_CHAT_MODEL", "gpt-4o-mini")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Storage.DBPath)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.ChatModel)
}

func TestAPIKeysComeFromEnvOnly(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.AI.OpenAIKey)
	assert.Equal(t, "sk-test", cfg.APIKey())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.AI.Provider = "watson" }},
		{"empty chat model", func(c *Config) { c.AI.ChatModel = "" }},
		{"zero timeout", func(c *Config) { c.AI.RequestTimeoutSecs = 0 }},
		{"threshold above one", func(c *Config) { c.Classification.ConfidenceThreshold = 1.5 }},
		{"zero narration budget", func(c *Config) { c.Conversation.NarrationCharBudget = 0 }},
		{"zero batch size", func(c *Config) { c.Conversation.CurationBatchSize = 0 }},
		{"empty db path", func(c *Config) { c.Storage.DBPath = "" }},
		{"nameless model limit", func(c *Config) { c.ModelLimits = []ModelLimit{{MaxTPM: 100}} }},
		{"zero tpm limit", func(c *Config) { c.ModelLimits = []ModelLimit{{Name: "m"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAPIKeyPerProvider(t *testing.T) {
	cfg := Default()
	cfg.AI.OpenAIKey = "sk-openai"
	cfg.AI.AnthropicKey = "sk-ant"
	cfg.AI.GoogleKey = "sk-goog"

	cfg.AI.Provider = ProviderOpenAI
	assert.Equal(t, "sk-openai", cfg.APIKey())
	cfg.AI.Provider = ProviderAnthropic
	assert.Equal(t, "sk-ant", cfg.APIKey())
	cfg.AI.Provider = ProviderGoogle
	assert.Equal(t, "sk-goog", cfg.APIKey())
	cfg.AI.Provider = ProviderOllama
	assert.Empty(t, cfg.APIKey(), "local models need no key")
}

func TestInferProvider(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o", ProviderOpenAI},
		{"o3-mini", ProviderOpenAI},
		{"claude-sonnet-4-20250514", ProviderAnthropic},
		{"gemini-2.0-flash", ProviderGoogle},
		{"ollama:llama3.1", ProviderOllama},
		{"mystery-model", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferProvider(tt.model), tt.model)
	}
}
