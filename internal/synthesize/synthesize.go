// Package synthesize writes the optional one-line explanations attached to
// top highlights. Synthesis is best-effort: a valid brief never depends on
// it succeeding.
package synthesize

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/air23zj/pal-sub001/internal/brief"
	"github.com/air23zj/pal-sub001/internal/llm"
)

const explainPrompt = `You are annotating one item in a personal daily brief.

Item title: %s
Source: %s
Novelty: %s
Content:
%s

Write ONE sentence (max 20 words) telling the reader why this item deserves their attention today.

Respond with ONLY this JSON:
{"explanation": "your sentence"}`

// Result summarizes a synthesis pass.
type Result struct {
	Annotated int
	Failed    int
}

const defaultMaxTokens = 128

// Synthesizer generates explanations for highlights.
type Synthesizer struct {
	provider  llm.Provider
	maxTokens int
}

// New creates a synthesizer. A nil provider yields a no-op synthesizer;
// maxTokens <= 0 falls back to a default sized for one-sentence output.
func New(provider llm.Provider, maxTokens int) *Synthesizer {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Synthesizer{provider: provider, maxTokens: maxTokens}
}

// Annotate fills in Explanation on the bundle's top highlights. Failures
// are logged and counted; the affected item simply stays unexplained.
func (s *Synthesizer) Annotate(ctx context.Context, b *brief.Bundle) *Result {
	r := &Result{}
	if s.provider == nil || len(b.TopHighlights) == 0 {
		return r
	}

	for i := range b.TopHighlights {
		hi := &b.TopHighlights[i]
		explanation, err := s.explain(ctx, hi)
		if err != nil {
			log.Printf("synthesis failed for %s: %v", hi.Fingerprint.StableID, err)
			r.Failed++
			continue
		}
		hi.Explanation = explanation
		// Mirror the explanation onto the module copy of the same item.
		if it, ok := b.FindItem(hi.Fingerprint.StableID); ok {
			it.Explanation = explanation
		}
		r.Annotated++
	}
	return r
}

func (s *Synthesizer) explain(ctx context.Context, hi *brief.RankedItem) (string, error) {
	body := hi.Item.Body
	if len(body) > 1500 {
		body = body[:1500] + "..."
	}
	prompt := fmt.Sprintf(explainPrompt, hi.Item.Title, hi.Item.Module, hi.Label, body)

	text, err := s.provider.Generate(ctx, prompt, s.maxTokens)
	if err != nil {
		return "", err
	}

	if parsed := llm.ParseJSONResponse(text); parsed != nil {
		if e, ok := parsed["explanation"].(string); ok && e != "" {
			return strings.TrimSpace(e), nil
		}
	}

	// The model ignored the format; take its raw line if it is short.
	text = strings.TrimSpace(text)
	if text != "" && len(text) <= 200 && !strings.Contains(text, "\n") {
		return text, nil
	}
	return "", fmt.Errorf("unusable response")
}
