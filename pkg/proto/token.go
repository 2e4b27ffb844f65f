package proto

import (
	"strconv"
	"strings"
)

// TokenKind is the semantic category of a normalized inbound message.
// Raw user text ("1", "sim", "👍", "oi galera") is collapsed into this
// closed set once, before any transition logic runs, so the state machine
// never does string matching on raw input.
type TokenKind string

const (
	TokenGreeting TokenKind = "GREETING"  // menu/start/greeting keywords
	TokenOption   TokenKind = "OPTION"    // a bare menu digit, Option carries the number
	TokenYes      TokenKind = "YES"       // affirmative: "sim", "1" in yes/no prompts, thumbs-up
	TokenNo       TokenKind = "NO"        // negative: "não", "2" in yes/no prompts, thumbs-down
	TokenFor      TokenKind = "FOR"       // opinion in favor
	TokenAgainst  TokenKind = "AGAINST"   // opinion against
	TokenProposal TokenKind = "PROPOSAL"  // free text flagged as an agenda proposal
	TokenFreeText TokenKind = "FREE_TEXT" // anything else
)

// AllTokenKinds returns every semantic token category.
func AllTokenKinds() []TokenKind {
	return []TokenKind{
		TokenGreeting,
		TokenOption,
		TokenYes,
		TokenNo,
		TokenFor,
		TokenAgainst,
		TokenProposal,
		TokenFreeText,
	}
}

// Token is one normalized inbound message.
type Token struct {
	Kind   TokenKind
	Option int    // menu number, set when Kind == TokenOption
	Text   string // original trimmed text, proposal body for TokenProposal
}

var greetings = map[string]bool{
	"oi":        true,
	"ola":       true,
	"olá":       true,
	"menu":      true,
	"inicio":    true,
	"início":    true,
	"start":     true,
	"começar":   true,
	"comecar":   true,
	"bom dia":   true,
	"boa tarde": true,
	"boa noite": true,
}

var affirmatives = map[string]bool{
	"sim": true, "s": true, "yes": true, "quero": true, "👍": true, "ok": true,
}

var negatives = map[string]bool{
	"não": true, "nao": true, "n": true, "no": true, "👎": true,
}

const proposalPrefix = "proposta"

// Normalize collapses raw inbound text into a semantic Token.
//
// The mapping is intentionally context-free: "1" always normalizes to
// OPTION(1), and the transition table decides whether that means a menu
// choice, a yes, or a vote in favor for the current step.
func Normalize(raw string) Token {
	text := strings.TrimSpace(raw)
	lower := strings.ToLower(text)

	if lower == "" {
		return Token{Kind: TokenFreeText, Text: text}
	}
	if greetings[lower] {
		return Token{Kind: TokenGreeting, Text: text}
	}
	if n, err := strconv.Atoi(lower); err == nil {
		return Token{Kind: TokenOption, Option: n, Text: text}
	}
	if affirmatives[lower] {
		return Token{Kind: TokenYes, Text: text}
	}
	if negatives[lower] {
		return Token{Kind: TokenNo, Text: text}
	}
	if strings.Contains(lower, "favor") || strings.Contains(lower, "apoio") {
		return Token{Kind: TokenFor, Text: text}
	}
	if strings.Contains(lower, "contra") {
		return Token{Kind: TokenAgainst, Text: text}
	}
	if body, ok := strings.CutPrefix(lower, proposalPrefix); ok && (body == "" || strings.ContainsRune(":- ", rune(body[0]))) {
		body = strings.TrimLeft(body, ":- ")
		if body != "" {
			// Preserve original casing of the proposal body.
			original := strings.TrimLeft(text[len(proposalPrefix):], ":- ")
			return Token{Kind: TokenProposal, Text: original}
		}
	}
	return Token{Kind: TokenFreeText, Text: text}
}
