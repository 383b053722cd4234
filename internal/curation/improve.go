package curation

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/mochi/internal/card"
	"github.com/kalambet/mochi/internal/provider"
)

// improveTemperature leaves the model some room to rephrase; evaluative
// prompts run at 0.
const improveTemperature = 0.3

const improveTemplate = `Rewrite this flashcard into a better spaced-repetition prompt. Keep the same fact; make the question unambiguous and the answer minimal.

Q: %s
A: %s

Known problems: %s

Respond with EXACTLY this format:
QUESTION: <rewritten question>
ANSWER: <rewritten answer>`

const (
	questionMarker = "QUESTION:"
	answerMarker   = "ANSWER:"
)

// Improvement is a proposed rewrite for one card. OK is false when the model
// response was unusable and the original should be retained.
type Improvement struct {
	Question string
	Answer   string
	OK       bool
}

// ImproveCards requests rewrites for the given cards in windows. problems[i]
// seeds the prompt with what grading disliked about cards[i]. Rewrites are
// deliberately not cached: they run at nonzero temperature and each run may
// propose a different one.
func (r *Runner) ImproveCards(ctx context.Context, cards []card.Card, problems []string) ([]Improvement, error) {
	results := make([]Improvement, len(cards))

	err := r.runWindows(ctx, len(cards), func(ctx context.Context, i int) error {
		c := cards[i]
		prompt := fmt.Sprintf(improveTemplate, c.Question, c.Answer, problems[i])
		raw, err := r.chat.Complete(ctx, provider.ChatRequest{
			Model:       r.chatModel,
			Prompt:      prompt,
			Temperature: improveTemperature,
		})
		if err != nil {
			return nil
		}
		results[i] = parseImprovement(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// parseImprovement extracts the QUESTION:/ANSWER: sections. A response
// missing either marker, or with an empty section, yields no improvement.
func parseImprovement(raw string) Improvement {
	qStart := strings.Index(raw, questionMarker)
	if qStart < 0 {
		return Improvement{}
	}
	aStart := strings.Index(raw[qStart:], answerMarker)
	if aStart < 0 {
		return Improvement{}
	}
	aStart += qStart

	question := strings.TrimSpace(raw[qStart+len(questionMarker) : aStart])
	answer := strings.TrimSpace(raw[aStart+len(answerMarker):])
	if question == "" || answer == "" {
		return Improvement{}
	}
	return Improvement{Question: question, Answer: answer, OK: true}
}
