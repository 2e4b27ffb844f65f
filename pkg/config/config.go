// Package config loads and validates pipeline configuration.
//
// Configuration comes from three layers, later layers overriding earlier:
//
//  1. built-in defaults
//  2. an optional YAML file
//  3. environment variables (VOZLOCAL_* via envconfig)
//
// API keys are never read from the YAML file, only from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Provider identifiers for AI clients.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Known chat model defaults per provider.
const (
	DefaultOpenAIModel    = "gpt-4o"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultGoogleModel    = "gemini-2.0-flash"
	DefaultOllamaModel    = "llama3.1"
)

// AIConfig configures the AI collaborator clients.
type AIConfig struct {
	Provider           string  `yaml:"provider" envconfig:"AI_PROVIDER"`
	ChatModel          string  `yaml:"chat_model" envconfig:"AI_CHAT_MODEL"`
	TranscriptionModel string  `yaml:"transcription_model" envconfig:"AI_TRANSCRIPTION_MODEL"`
	SpeechModel        string  `yaml:"speech_model" envconfig:"AI_SPEECH_MODEL"`
	SpeechVoice        string  `yaml:"speech_voice" envconfig:"AI_SPEECH_VOICE"`
	OllamaHost         string  `yaml:"ollama_host" envconfig:"OLLAMA_HOST"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs" envconfig:"AI_REQUEST_TIMEOUT_SECS"`
	Temperature        float32 `yaml:"temperature" envconfig:"AI_TEMPERATURE"`
	MaxTokens          int     `yaml:"max_tokens" envconfig:"AI_MAX_TOKENS"`

	// Keys come from the environment only.
	OpenAIKey    string `yaml:"-" envconfig:"OPENAI_API_KEY"`
	AnthropicKey string `yaml:"-" envconfig:"ANTHROPIC_API_KEY"`
	GoogleKey    string `yaml:"-" envconfig:"GEMINI_API_KEY"`
}

// ClassificationConfig controls the theme classification policy.
type ClassificationConfig struct {
	// ConfidenceThreshold below which a proposal is flagged for manual review.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" envconfig:"CLASSIFY_CONFIDENCE_THRESHOLD"`
	MaxSecondaryThemes  int     `yaml:"max_secondary_themes" envconfig:"CLASSIFY_MAX_SECONDARY"`
}

// ConversationConfig controls conversation behavior knobs.
type ConversationConfig struct {
	// NarrationCharBudget caps the text synthesized to audio for a curated
	// batch. Configurable rather than hardcoded.
	NarrationCharBudget int `yaml:"narration_char_budget" envconfig:"NARRATION_CHAR_BUDGET"`
	CurationBatchSize   int `yaml:"curation_batch_size" envconfig:"CURATION_BATCH_SIZE"`
	QueueSize           int `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
	PerUserQueueSize    int `yaml:"per_user_queue_size" envconfig:"PER_USER_QUEUE_SIZE"`
}

// ModelLimit defines rate and budget limits for one AI model.
type ModelLimit struct {
	Name           string  `yaml:"name"`
	MaxTPM         int     `yaml:"max_tpm"`
	DailyBudgetUSD float64 `yaml:"daily_budget_usd"`
	MaxConcurrent  int     `yaml:"max_concurrent"`
}

// StorageConfig configures the SQLite store.
type StorageConfig struct {
	DBPath string `yaml:"db_path" envconfig:"DB_PATH"`
}

// MetricsConfig configures Prometheus exposure and querying.
type MetricsConfig struct {
	ListenAddr    string `yaml:"listen_addr" envconfig:"METRICS_LISTEN_ADDR"`
	PrometheusURL string `yaml:"prometheus_url" envconfig:"PROMETHEUS_URL"`
}

// EventLogConfig configures the JSONL turn log.
type EventLogConfig struct {
	Dir string `yaml:"dir" envconfig:"EVENTLOG_DIR"`
}

// GapConfig controls the gap metric refresh cadence.
type GapConfig struct {
	RefreshIntervalSecs int `yaml:"refresh_interval_secs" envconfig:"GAP_REFRESH_INTERVAL_SECS"`
}

// Config is the full pipeline configuration.
type Config struct {
	AI             AIConfig             `yaml:"ai"`
	Classification ClassificationConfig `yaml:"classification"`
	Conversation   ConversationConfig   `yaml:"conversation"`
	Storage        StorageConfig        `yaml:"storage"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	EventLog       EventLogConfig       `yaml:"eventlog"`
	Gap            GapConfig            `yaml:"gap"`
	ModelLimits    []ModelLimit         `yaml:"model_limits"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Provider:           ProviderOpenAI,
			ChatModel:          DefaultOpenAIModel,
			TranscriptionModel: "whisper-1",
			SpeechModel:        "tts-1",
			SpeechVoice:        "alloy",
			OllamaHost:         "http://localhost:11434",
			RequestTimeoutSecs: 30,
			Temperature:        0.3,
			MaxTokens:          1024,
		},
		Classification: ClassificationConfig{
			ConfidenceThreshold: 0.7,
			MaxSecondaryThemes:  2,
		},
		Conversation: ConversationConfig{
			NarrationCharBudget: 1500,
			CurationBatchSize:   5,
			QueueSize:           256,
			PerUserQueueSize:    16,
		},
		Storage: StorageConfig{
			DBPath: "vozlocal.db",
		},
		Metrics: MetricsConfig{
			ListenAddr:    ":9090",
			PrometheusURL: "http://localhost:9091",
		},
		EventLog: EventLogConfig{
			Dir: "logs/events",
		},
		Gap: GapConfig{
			RefreshIntervalSecs: 300,
		},
		ModelLimits: []ModelLimit{
			{Name: DefaultOpenAIModel, MaxTPM: 80000, DailyBudgetUSD: 50, MaxConcurrent: 8},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, then validates it. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("vozlocal", cfg); err != nil {
		return nil, fmt.Errorf("process env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderOllama:
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	if c.AI.ChatModel == "" {
		return fmt.Errorf("ai chat_model must be set")
	}
	if c.AI.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("ai request_timeout_secs must be positive, got %d", c.AI.RequestTimeoutSecs)
	}
	if c.Classification.ConfidenceThreshold < 0 || c.Classification.ConfidenceThreshold > 1 {
		return fmt.Errorf("classification confidence_threshold must be in [0,1], got %v", c.Classification.ConfidenceThreshold)
	}
	if c.Conversation.NarrationCharBudget <= 0 {
		return fmt.Errorf("conversation narration_char_budget must be positive, got %d", c.Conversation.NarrationCharBudget)
	}
	if c.Conversation.CurationBatchSize <= 0 {
		return fmt.Errorf("conversation curation_batch_size must be positive, got %d", c.Conversation.CurationBatchSize)
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage db_path must be set")
	}
	for i := range c.ModelLimits {
		ml := &c.ModelLimits[i]
		if ml.Name == "" {
			return fmt.Errorf("model_limits[%d]: name must be set", i)
		}
		if ml.MaxTPM <= 0 {
			return fmt.Errorf("model limit %s: max_tpm must be positive", ml.Name)
		}
	}
	return nil
}

// APIKey returns the configured key for the active provider. Ollama runs
// locally and needs no key.
func (c *Config) APIKey() string {
	switch c.AI.Provider {
	case ProviderOpenAI:
		return c.AI.OpenAIKey
	case ProviderAnthropic:
		return c.AI.AnthropicKey
	case ProviderGoogle:
		return c.AI.GoogleKey
	}
	return ""
}

// InferProvider guesses a provider from a model name, mirroring common
// naming prefixes. Explicit "ollama:model" names force the local provider.
func InferProvider(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "ollama:"):
		return ProviderOllama
	case strings.HasPrefix(lower, "claude"):
		return ProviderAnthropic
	case strings.HasPrefix(lower, "gemini"):
		return ProviderGoogle
	case strings.HasPrefix(lower, "gpt"), strings.HasPrefix(lower, "o3"), strings.HasPrefix(lower, "o4"):
		return ProviderOpenAI
	}
	return ""
}
