// Package textbudget provides token- and character-budget enforcement for
// text headed to AI calls or speech synthesis.
package textbudget

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens for budget checks. All supported chat models are
// close enough to GPT-4 encoding for budgeting purposes.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter creates a token counter.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("create tokenizer codec: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the token count of text, falling back to a 4-chars-per-token
// estimate if the codec fails.
func (c *Counter) Count(text string) int {
	if c == nil || c.codec == nil {
		return len(text) / 4
	}
	n, err := c.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// WithinLimit reports whether text fits in the given token limit.
func (c *Counter) WithinLimit(text string, limit int) bool {
	return c.Count(text) <= limit
}

// TruncateTokens trims text to approximately fit the token limit. The cut is
// by runes with a safety margin, not exact token boundaries.
func (c *Counter) TruncateTokens(text string, limit int) string {
	current := c.Count(text)
	if current <= limit {
		return text
	}
	runes := []rune(text)
	ratio := float64(limit) / float64(current)
	cut := int(float64(len(runes)) * ratio * 0.9)
	if cut >= len(runes) {
		return text
	}
	return string(runes[:cut]) + "..."
}

// TruncateChars trims text to at most budget characters (runes), cutting at
// the last word boundary and appending an ellipsis when trimmed. The result,
// ellipsis included, never exceeds the budget. Used for the narration budget
// before speech synthesis.
func TruncateChars(text string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text
	}

	runes := []rune(text)
	if budget <= 3 {
		return string(runes[:budget])
	}
	cut := string(runes[:budget-3])

	// Back up to a word boundary when one exists nearby.
	if idx := strings.LastIndexFunc(cut, func(r rune) bool { return r == ' ' || r == '\n' }); idx > budget/2 {
		return strings.TrimRight(cut[:idx], " \n") + "..."
	}
	return cut + "..."
}
