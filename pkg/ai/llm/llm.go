// Package llm defines the provider-neutral chat completion and speech
// surfaces. Provider implementations live under pkg/ai/internal/provider and
// depend only on this package; pkg/ai composes them into the pipeline's AI
// service.
package llm

import "context"

// Completion message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionMessage is one message in a completion request.
type CompletionMessage struct {
	Role    string
	Content string
}

// CompletionRequest is a provider-neutral chat completion request.
type CompletionRequest struct {
	Messages    []CompletionMessage
	Temperature float32
	MaxTokens   int
}

// CompletionResponse is the provider-neutral completion result.
type CompletionResponse struct {
	Content string
}

// Client is a chat completion backend.
type Client interface {
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)
	ModelName() string
}

// Transcriber converts recorded audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer converts text to spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioClient bundles both speech directions.
type AudioClient interface {
	Transcriber
	Synthesizer
}
