// Package openai implements chat completion and speech against the official
// OpenAI Go SDK. It is the only provider that also serves the audio flows
// (Whisper transcription, TTS synthesis).
package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"vozlocal/pkg/ai/llm"
)

// Client wraps the official OpenAI SDK.
type Client struct {
	client      openai.Client
	model       string
	speechModel string
	speechVoice string
	transModel  string
}

// Option configures optional audio models on the client.
type Option func(*Client)

// WithAudioModels sets the transcription and speech models and voice.
func WithAudioModels(transcription, speech, voice string) Option {
	return func(c *Client) {
		c.transModel = transcription
		c.speechModel = speech
		c.speechVoice = voice
	}
}

// NewClient creates an OpenAI client for the given chat model.
func NewClient(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		client:      openai.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		transModel:  "whisper-1",
		speechModel: "tts-1",
		speechVoice: "alloy",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete implements llm.Client via the Chat Completions API.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(float64(in.Temperature)),
	}
	if in.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(in.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.CompletionResponse{}, fmt.Errorf("openai completion: empty response")
	}
	return llm.CompletionResponse{Content: resp.Choices[0].Message.Content}, nil
}

// ModelName returns the configured chat model.
func (c *Client) ModelName() string {
	return c.model
}

// Transcribe converts recorded audio to text via Whisper.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(c.transModel),
		File:  openai.File(bytes.NewReader(audio), "voice.ogg", "audio/ogg"),
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return resp.Text, nil
}

// Synthesize converts text to spoken audio via TTS.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := c.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(c.speechModel),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(c.speechVoice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatOpus,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai speech: read body: %w", err)
	}
	return data, nil
}
