package ai

import (
	"context"
	"fmt"

	anthropicprovider "vozlocal/pkg/ai/internal/provider/anthropic"
	googleprovider "vozlocal/pkg/ai/internal/provider/google"
	ollamaprovider "vozlocal/pkg/ai/internal/provider/ollama"
	openaiprovider "vozlocal/pkg/ai/internal/provider/openai"
	"vozlocal/pkg/ai/llm"
	"vozlocal/pkg/config"
)

// NewChatClient builds the chat completion client for the configured
// provider. The provider may be overridden by the model name prefix.
func NewChatClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	provider := cfg.AI.Provider
	if inferred := config.InferProvider(cfg.AI.ChatModel); inferred != "" {
		provider = inferred
	}

	switch provider {
	case config.ProviderOpenAI:
		if cfg.AI.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return openaiprovider.NewClient(cfg.AI.OpenAIKey, cfg.AI.ChatModel), nil
	case config.ProviderAnthropic:
		if cfg.AI.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return anthropicprovider.NewClient(cfg.AI.AnthropicKey, cfg.AI.ChatModel), nil
	case config.ProviderGoogle:
		if cfg.AI.GoogleKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
		return googleprovider.NewClient(ctx, cfg.AI.GoogleKey, cfg.AI.ChatModel)
	case config.ProviderOllama:
		return ollamaprovider.NewClient(cfg.AI.OllamaHost, cfg.AI.ChatModel)
	}
	return nil, fmt.Errorf("unknown ai provider %q", provider)
}

// NewAudioClient builds the speech client. Transcription and synthesis are
// served by OpenAI regardless of the chat provider; without an OpenAI key
// the audio flows are unavailable and this returns nil.
func NewAudioClient(cfg *config.Config) llm.AudioClient {
	if cfg.AI.OpenAIKey == "" {
		return nil
	}
	return openaiprovider.NewClient(cfg.AI.OpenAIKey, cfg.AI.ChatModel,
		openaiprovider.WithAudioModels(cfg.AI.TranscriptionModel, cfg.AI.SpeechModel, cfg.AI.SpeechVoice))
}
