package curation

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/mochi/internal/cache"
	"github.com/kalambet/mochi/internal/card"
	"github.com/kalambet/mochi/internal/provider"
	"github.com/kalambet/mochi/internal/similarity"
)

// Classification labels. Everything the pipeline emits is one of these.
const (
	LabelDuplicate     = "duplicate"
	LabelComplementary = "complementary"
	LabelUnclear       = "unclear"
	LabelError         = "error"
)

const classifyMaxTokens = 1024

const classifyTemplate = `Compare these two flashcards and classify their relationship:

Card 1:
Q: %s
A: %s

Card 2:
Q: %s
A: %s

Classify as ONE of:
- "duplicate": Same concept, essentially redundant (one should be removed)
- "complementary": Related but covering different aspects/opposite scenarios (both should be kept)
- "unclear": Cannot determine confidently

Respond with EXACTLY this format:
classification | reasoning (one line explanation)

Example: complementary | Card 1 asks about increasing X, Card 2 about decreasing X - opposite scenarios of same concept`

// PairResult is the classification of one candidate pair.
type PairResult struct {
	Pair   similarity.Pair
	Result cache.Classification
	Cached bool
}

// ClassifyPairs classifies candidate pairs in windows, consulting the cache
// first. Transport failures become LabelError results and are never cached;
// they do not fail the batch. The returned slice is aligned with pairs.
func (r *Runner) ClassifyPairs(ctx context.Context, cards []card.Card, pairs []similarity.Pair) ([]PairResult, error) {
	results := make([]PairResult, len(pairs))
	keys := make([]string, len(pairs))

	var misses []int
	for i, p := range pairs {
		a, b := cards[p.A], cards[p.B]
		keys[i] = cache.Key(r.chatModel, classifyTemplate, EmbedText(a), EmbedText(b))
		if cls, ok := r.store.Classification(keys[i]); ok {
			results[i] = PairResult{Pair: p, Result: cls, Cached: true}
			continue
		}
		misses = append(misses, i)
	}

	err := r.runWindows(ctx, len(misses), func(ctx context.Context, k int) error {
		i := misses[k]
		p := pairs[i]
		a, b := cards[p.A], cards[p.B]

		prompt := fmt.Sprintf(classifyTemplate, a.Question, a.Answer, b.Question, b.Answer)
		raw, err := r.chat.Complete(ctx, provider.ChatRequest{
			Model:     r.chatModel,
			Prompt:    prompt,
			MaxTokens: classifyMaxTokens,
		})
		if err != nil {
			results[i] = PairResult{Pair: p, Result: cache.Classification{
				Label:     LabelError,
				Reasoning: "LLM request failed: " + preview(err.Error(), 100),
			}}
			return nil
		}

		cls := parseClassification(raw)
		results[i] = PairResult{Pair: p, Result: cls}
		r.store.PutClassification(keys[i], cls)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// parseClassification extracts "label | reasoning" from a model response.
// Malformed responses coerce to LabelUnclear with a diagnostic instead of
// failing; the coercion is deterministic, so it is safe to cache.
func parseClassification(raw string) cache.Classification {
	raw = strings.TrimSpace(raw)
	label, reasoning, found := strings.Cut(raw, "|")
	if !found {
		return cache.Classification{
			Label:     LabelUnclear,
			Reasoning: "LLM response format invalid: " + preview(raw, 50),
		}
	}

	label = strings.ToLower(strings.TrimSpace(label))
	reasoning = strings.TrimSpace(reasoning)

	switch label {
	case LabelDuplicate, LabelComplementary, LabelUnclear:
		return cache.Classification{Label: label, Reasoning: reasoning}
	}
	return cache.Classification{
		Label:     LabelUnclear,
		Reasoning: fmt.Sprintf("Invalid classification %q: %s", label, reasoning),
	}
}
