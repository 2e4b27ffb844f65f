// Package anthropic implements chat completion against the Anthropic SDK.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"vozlocal/pkg/ai/llm"
)

// Client wraps the Anthropic SDK.
type Client struct {
	client anthropic.Client
	model  string
}

// NewClient creates an Anthropic client for the given model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete implements llm.Client via the Messages API. System messages are
// lifted into the system parameter; the API requires the remaining turns to
// alternate, so consecutive same-role messages are merged.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, turns := splitSystem(in.Messages)

	messages := make([]anthropic.MessageParam, 0, len(turns))
	for i := range turns {
		role := anthropic.MessageParamRoleUser
		if turns[i].Role == llm.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		messages = append(messages, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(turns[i].Content)},
		})
	}
	if len(messages) == 0 {
		return llm.CompletionResponse{}, fmt.Errorf("anthropic completion: no user messages")
	}

	maxTokens := int64(in.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt, Type: "text"}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, fmt.Errorf("anthropic completion: %w", err)
	}

	var content string
	for i := range resp.Content {
		if text := resp.Content[i].Text; text != "" {
			content += text
		}
	}
	return llm.CompletionResponse{Content: content}, nil
}

// ModelName returns the configured model.
func (c *Client) ModelName() string {
	return c.model
}

// splitSystem pulls system messages into one prompt and merges consecutive
// same-role turns so the remainder alternates user/assistant.
func splitSystem(msgs []llm.CompletionMessage) (system string, turns []llm.CompletionMessage) {
	for i := range msgs {
		msg := &msgs[i]
		if msg.Role == llm.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == msg.Role {
			turns[n-1].Content += "\n\n" + msg.Content
			continue
		}
		turns = append(turns, *msg)
	}
	return system, turns
}
