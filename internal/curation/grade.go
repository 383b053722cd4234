package curation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kalambet/mochi/internal/cache"
	"github.com/kalambet/mochi/internal/card"
	"github.com/kalambet/mochi/internal/provider"
)

const gradeTemplate = `Grade the quality of this flashcard for spaced-repetition study:

Q: %s
A: %s

Score 0-10 where:
- 0-3: Poor (vague question, bloated or missing answer, several facts crammed into one card)
- 4-6: Mediocre (answerable but imprecise, or the answer carries more than the question asks for)
- 7-10: Good (one precise fact, unambiguous question, minimal answer)

Respond with EXACTLY this format:
score | reasoning (one line explanation)

Example: 7 | Single clear fact but the answer repeats the question stem`

// GradeResult is the quality grade of one card.
type GradeResult struct {
	Grade  cache.Grade
	Cached bool
	// Failed marks a transport failure; Grade holds the neutral sentinel
	// and was not cached, so a later run retries.
	Failed bool
}

// GradeCards grades every card in windows, consulting the cache first. The
// returned slice is aligned with cards.
func (r *Runner) GradeCards(ctx context.Context, cards []card.Card) ([]GradeResult, error) {
	results := make([]GradeResult, len(cards))
	keys := make([]string, len(cards))

	var misses []int
	for i, c := range cards {
		keys[i] = cache.Key(r.chatModel, gradeTemplate, EmbedText(c))
		if g, ok := r.store.Grade(keys[i]); ok {
			results[i] = GradeResult{Grade: g, Cached: true}
			continue
		}
		misses = append(misses, i)
	}

	err := r.runWindows(ctx, len(misses), func(ctx context.Context, k int) error {
		i := misses[k]
		c := cards[i]

		prompt := fmt.Sprintf(gradeTemplate, c.Question, c.Answer)
		raw, err := r.chat.Complete(ctx, provider.ChatRequest{
			Model:  r.chatModel,
			Prompt: prompt,
		})
		if err != nil {
			results[i] = GradeResult{
				Grade:  cache.Grade{Score: 5, Reasoning: "LLM request failed: " + preview(err.Error(), 100)},
				Failed: true,
			}
			return nil
		}

		g := parseGrade(raw)
		results[i] = GradeResult{Grade: g}
		r.store.PutGrade(keys[i], g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// parseGrade extracts "score | reasoning". An unparseable score becomes the
// neutral 5 with a diagnostic; out-of-range scores are clamped into [0,10].
func parseGrade(raw string) cache.Grade {
	raw = strings.TrimSpace(raw)
	scoreText, reasoning, found := strings.Cut(raw, "|")
	if !found {
		return cache.Grade{Score: 5, Reasoning: "LLM response format invalid: " + preview(raw, 50)}
	}

	scoreText = strings.TrimSpace(scoreText)
	reasoning = strings.TrimSpace(reasoning)

	score, err := strconv.Atoi(scoreText)
	if err != nil {
		// Models occasionally return fractional scores.
		f, ferr := strconv.ParseFloat(scoreText, 64)
		if ferr != nil {
			return cache.Grade{Score: 5, Reasoning: fmt.Sprintf("Invalid score %q: %s", scoreText, reasoning)}
		}
		score = int(math.Round(f))
	}

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return cache.Grade{Score: score, Reasoning: reasoning}
}
