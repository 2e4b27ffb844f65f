// Package ai wires the pipeline to its AI collaborators: chat completion
// for summaries, answers, and classification, plus speech transcription and
// synthesis for the audio flows. The provider-neutral surfaces live in the
// llm subpackage; concrete providers under internal/provider.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vozlocal/pkg/ai/llm"
	"vozlocal/pkg/config"
	"vozlocal/pkg/limiter"
	"vozlocal/pkg/logx"
	"vozlocal/pkg/textbudget"
)

// ErrAudioUnavailable is returned when no speech backend is configured.
var ErrAudioUnavailable = fmt.Errorf("audio backend not configured")

// Service is the pipeline's AI surface. It wraps a chat client and an
// optional audio client with per-call timeouts, rate limiting, and token
// accounting.
type Service struct {
	chat    llm.Client
	audio   llm.AudioClient
	limits  *limiter.Limiter
	counter *textbudget.Counter
	logger  *logx.Logger

	timeout     time.Duration
	temperature float32
	maxTokens   int
}

// NewService assembles the AI service. audio may be nil, in which case the
// audio flows return ErrAudioUnavailable.
func NewService(chat llm.Client, audio llm.AudioClient, limits *limiter.Limiter, counter *textbudget.Counter, cfg *config.AIConfig) *Service {
	return &Service{
		chat:        chat,
		audio:       audio,
		limits:      limits,
		counter:     counter,
		logger:      logx.NewLogger("ai"),
		timeout:     time.Duration(cfg.RequestTimeoutSecs) * time.Second,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete runs one chat completion with a system and user prompt.
func (s *Service) Complete(ctx context.Context, system, user string) (string, error) {
	model := s.chat.ModelName()
	if s.limits != nil && s.limits.Configured(model) {
		estimated := s.counter.Count(system) + s.counter.Count(user) + s.maxTokens
		if err := s.limits.Reserve(model, estimated); err != nil {
			return "", fmt.Errorf("reserve tokens for %s: %w", model, err)
		}
		if err := s.limits.Acquire(model); err != nil {
			return "", fmt.Errorf("acquire slot for %s: %w", model, err)
		}
		defer func() {
			if err := s.limits.Release(model); err != nil {
				s.logger.Warn("release slot for %s: %v", model, err)
			}
		}()
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.chat.Complete(callCtx, llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("completion via %s took %v (%d tokens out)", model, time.Since(start), s.counter.Count(resp.Content))
	return strings.TrimSpace(resp.Content), nil
}

// Summarize produces a short plain-language summary of a legislative text,
// suitable for a chat message or audio narration.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	system := "Você resume projetos de lei municipais em linguagem simples para cidadãos. " +
		"Responda em português com um resumo neutro de no máximo três frases, sem comentários adicionais."
	return s.Complete(ctx, system, text)
}

// Answer responds to a citizen question about a legislative matter, grounded
// on the provided context when present.
func (s *Service) Answer(ctx context.Context, question, billContext string) (string, error) {
	system := "Você é um assistente cívico que explica projetos de lei municipais em linguagem simples. " +
		"Responda em português, de forma curta e imparcial. " +
		"Se não souber a resposta, diga isso claramente."
	user := question
	if billContext != "" {
		user = fmt.Sprintf("Contexto:\n%s\n\nPergunta: %s", billContext, question)
	}
	return s.Complete(ctx, system, user)
}

// Transcribe converts recorded audio to text.
func (s *Service) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if s.audio == nil {
		return "", ErrAudioUnavailable
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.audio.Transcribe(callCtx, audio)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Synthesize converts narration text to spoken audio.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.audio == nil {
		return nil, ErrAudioUnavailable
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.audio.Synthesize(callCtx, text)
}
