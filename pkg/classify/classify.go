// Package classify maps free-text citizen proposals onto the closed theme
// taxonomy via an AI completion, enforcing the vocabulary and a confidence
// policy on the way out.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vozlocal/pkg/config"
	"vozlocal/pkg/logx"
	"vozlocal/pkg/proto"
)

// Completer is the completion surface the adapter needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Result is a vocabulary-enforced classification.
type Result struct {
	Primary     proto.Theme
	Secondary   []proto.Theme
	Confidence  float64
	NeedsReview bool
}

// Adapter classifies proposals and never fails a turn: any model or parse
// failure degrades to the fallback theme flagged for manual review.
type Adapter struct {
	completer Completer
	logger    *logx.Logger

	threshold    float64
	maxSecondary int
}

// NewAdapter creates a classification adapter.
func NewAdapter(completer Completer, cfg *config.ClassificationConfig) *Adapter {
	return &Adapter{
		completer:    completer,
		logger:       logx.NewLogger("classify"),
		threshold:    cfg.ConfidenceThreshold,
		maxSecondary: cfg.MaxSecondaryThemes,
	}
}

// rawResult mirrors the JSON contract the model is instructed to emit.
type rawResult struct {
	Primary    string   `json:"tema_principal"`
	Secondary  []string `json:"temas_secundarios"`
	Confidence float64  `json:"confianca"`
}

// Classify returns the theme classification for a proposal text. Errors are
// absorbed into the fallback result; the returned error is informational and
// the Result is always usable.
func (a *Adapter) Classify(ctx context.Context, text string) (Result, error) {
	out, err := a.completer.Complete(ctx, a.systemPrompt(), text)
	if err != nil {
		a.logger.Warn("classification call failed, using fallback: %v", err)
		return a.fallback(), err
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(stripFences(out)), &raw); err != nil {
		a.logger.Warn("classification output is not valid JSON, using fallback: %v", err)
		return a.fallback(), fmt.Errorf("parse classification output: %w", err)
	}
	return a.enforce(raw), nil
}

// enforce applies the closed vocabulary and the confidence policy.
func (a *Adapter) enforce(raw rawResult) Result {
	res := Result{Confidence: clamp01(raw.Confidence)}

	// An out-of-vocabulary primary is substituted, not a failure: the
	// reported confidence and the valid secondaries survive.
	primary, ok := proto.ParseTheme(raw.Primary)
	if !ok {
		a.logger.Warn("model returned unknown theme %q, substituting %s", raw.Primary, proto.ThemeOther)
		primary = proto.ThemeOther
	}
	res.Primary = primary

	for _, s := range raw.Secondary {
		if len(res.Secondary) >= a.maxSecondary {
			break
		}
		theme, ok := proto.ParseTheme(s)
		if !ok || theme == primary || containsTheme(res.Secondary, theme) {
			continue
		}
		res.Secondary = append(res.Secondary, theme)
	}

	res.NeedsReview = res.Confidence < a.threshold
	return res
}

func (a *Adapter) fallback() Result {
	return Result{Primary: proto.ThemeOther, Confidence: 0, NeedsReview: true}
}

func (a *Adapter) systemPrompt() string {
	names := make([]string, 0, len(proto.Themes()))
	for _, t := range proto.Themes() {
		names = append(names, string(t))
	}
	return fmt.Sprintf(`Você classifica propostas de cidadãos nos temas de políticas públicas municipais.

Temas válidos: %s

Responda SOMENTE com JSON neste formato, sem texto adicional:
{"tema_principal": "<tema>", "temas_secundarios": ["<tema>", ...], "confianca": <0.0 a 1.0>}

O tema principal deve ser exatamente um dos temas válidos. Use "Outros" quando nenhum tema se aplicar.`,
		strings.Join(names, ", "))
}

// stripFences removes a markdown code fence around the model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsTheme(themes []proto.Theme, t proto.Theme) bool {
	for _, existing := range themes {
		if existing == t {
			return true
		}
	}
	return false
}
