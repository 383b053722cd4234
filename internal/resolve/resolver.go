// Package resolve walks a human through the decisions the pipeline cannot
// make alone: which half of a duplicate pair to drop, and whether a proposed
// rewrite beats the original. All reads and writes go through injected
// streams so the flows are testable with scripted input.
package resolve

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/kalambet/mochi/internal/cache"
	"github.com/kalambet/mochi/internal/card"
	"github.com/kalambet/mochi/internal/curation"
)

// Resolver reads decisions from in and writes presentation to out.
type Resolver struct {
	in  *bufio.Scanner
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Resolver {
	return &Resolver{in: bufio.NewScanner(in), out: out}
}

// ReviewPairs presents classified pairs for manual resolution, in the order
// given (callers pass them sorted by descending similarity). Complementary
// pairs are reported as auto-kept and never prompted. A pair whose card is
// already marked removed is skipped silently. The returned set holds card
// indexes to remove; aborted means the caller must write nothing.
func (r *Resolver) ReviewPairs(cards []card.Card, results []curation.PairResult) (removed map[int]bool, aborted bool, err error) {
	var complementary, review []curation.PairResult
	for _, res := range results {
		if res.Result.Label == curation.LabelComplementary {
			complementary = append(complementary, res)
		} else {
			review = append(review, res)
		}
	}

	r.reportComplementary(cards, complementary)

	if len(review) == 0 {
		fmt.Fprintf(r.out, "\n✓ No duplicates found after LLM review\n")
		return nil, false, nil
	}

	fmt.Fprintf(r.out, "\n%d pair(s) need manual review:\n", len(review))

	removed = make(map[int]bool)
	for idx, res := range review {
		a, b := res.Pair.A, res.Pair.B
		if removed[a] || removed[b] {
			continue
		}

		r.showPair(cards, res, idx+1, len(review))

		choice, ok := r.choose("Your choice [1/2/b/s/q]: ", "1", "2", "b", "s", "q")
		if !ok {
			return nil, true, r.in.Err()
		}
		switch choice {
		case "1":
			removed[b] = true
			fmt.Fprintln(r.out, "  → Will remove card 2")
		case "2":
			removed[a] = true
			fmt.Fprintln(r.out, "  → Will remove card 1")
		case "b":
			fmt.Fprintln(r.out, "  → Keeping both cards")
		case "s":
			fmt.Fprintln(r.out, "  → Skipped")
		case "q":
			fmt.Fprintln(r.out, "\nAborted - no changes made")
			return nil, true, nil
		}
	}
	return removed, false, nil
}

// ConfirmRemovals prints what is about to be dropped and asks y/N.
func (r *Resolver) ConfirmRemovals(cards []card.Card, removed map[int]bool) (bool, error) {
	idxs := make([]int, 0, len(removed))
	for i := range removed {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)

	fmt.Fprintf(r.out, "\n%s\n\nSummary: Will remove %d card(s)\n%s\n",
		strings.Repeat("=", 70), len(idxs), strings.Repeat("-", 70))
	for _, i := range idxs {
		fmt.Fprintf(r.out, "  - %s\n", clip(cards[i].Question, 60))
	}
	return r.Confirm("Proceed with removal? [y/N]: ")
}

// ImprovementReview is one graded card plus its proposed rewrite.
type ImprovementReview struct {
	Index   int
	Grade   cache.Grade
	Rewrite curation.Improvement
}

// ReviewImprovements presents rewrites for accept/keep decisions. The
// returned map is card index to accepted rewrite; aborted discards every
// decision made so far.
func (r *Resolver) ReviewImprovements(cards []card.Card, items []ImprovementReview) (accepted map[int]curation.Improvement, aborted bool, err error) {
	accepted = make(map[int]curation.Improvement)
	for idx, item := range items {
		c := cards[item.Index]
		fmt.Fprintf(r.out, "%s\nCard %d/%d - Score: %d/10\n%s\n",
			strings.Repeat("=", 70), idx+1, len(items), item.Grade.Score, strings.Repeat("-", 70))
		fmt.Fprintf(r.out, "   Reasoning: %s\n", item.Grade.Reasoning)
		fmt.Fprintf(r.out, "\nOriginal:\n    Q: %s\n    A: %s\n", clip(c.Question, 100), clip(c.Answer, 100))
		fmt.Fprintf(r.out, "\nRewrite:\n    Q: %s\n    A: %s\n", clip(item.Rewrite.Question, 100), clip(item.Rewrite.Answer, 100))
		fmt.Fprint(r.out, "\nOptions:\n  a - Accept rewrite\n  k - Keep original\n  q - Quit without saving\n")

		choice, ok := r.choose("Your choice [a/k/q]: ", "a", "k", "q")
		if !ok {
			return nil, true, r.in.Err()
		}
		switch choice {
		case "a":
			accepted[item.Index] = item.Rewrite
			fmt.Fprintln(r.out, "  → Accepted rewrite")
		case "k":
			fmt.Fprintln(r.out, "  → Keeping original")
		case "q":
			fmt.Fprintln(r.out, "\nAborted - no changes made")
			return nil, true, nil
		}
	}
	return accepted, false, nil
}

// Confirm asks a y/N question. Only "y" and "yes" confirm; EOF declines.
func (r *Resolver) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(r.out, "\n%s", prompt)
	if !r.in.Scan() {
		return false, r.in.Err()
	}
	answer := strings.ToLower(strings.TrimSpace(r.in.Text()))
	return answer == "y" || answer == "yes", nil
}

// choose re-prompts until the user enters one of the valid options. ok is
// false when input is exhausted.
func (r *Resolver) choose(prompt string, valid ...string) (string, bool) {
	for {
		fmt.Fprintf(r.out, "\n%s", prompt)
		if !r.in.Scan() {
			return "", false
		}
		choice := strings.ToLower(strings.TrimSpace(r.in.Text()))
		if slices.Contains(valid, choice) {
			return choice, true
		}
		fmt.Fprintf(r.out, "Invalid choice. Please enter %s\n", strings.Join(valid, ", "))
	}
}

func (r *Resolver) reportComplementary(cards []card.Card, pairs []curation.PairResult) {
	if len(pairs) == 0 {
		return
	}
	fmt.Fprintf(r.out, "\n✓ Auto-skipped %d complementary pair(s):\n", len(pairs))
	show := pairs
	if len(show) > 5 {
		show = show[:5]
	}
	for _, p := range show {
		fmt.Fprintf(r.out, "  • %s ↔ %s\n", clip(cards[p.Pair.A].Question, 40), clip(cards[p.Pair.B].Question, 40))
		fmt.Fprintf(r.out, "    Reason: %s\n", clip(p.Result.Reasoning, 70))
	}
	if len(pairs) > 5 {
		fmt.Fprintf(r.out, "  ... and %d more\n", len(pairs)-5)
	}
}

func (r *Resolver) showPair(cards []card.Card, res curation.PairResult, idx, total int) {
	fmt.Fprintf(r.out, "%s\nPair %d/%d - Similarity: %.3f\n%s\n",
		strings.Repeat("=", 70), idx, total, res.Pair.Score, strings.Repeat("-", 70))
	fmt.Fprintf(r.out, "\nLLM Classification: %s\n", strings.ToUpper(res.Result.Label))
	fmt.Fprintf(r.out, "   Reasoning: %s\n", res.Result.Reasoning)
	r.showCard(1, cards[res.Pair.A])
	r.showCard(2, cards[res.Pair.B])
	fmt.Fprint(r.out, "\nOptions:\n  1 - Keep card 1, remove card 2\n  2 - Keep card 2, remove card 1\n  b - Keep both (not duplicates)\n  s - Skip to next pair\n  q - Quit without saving\n")
}

func (r *Resolver) showCard(n int, c card.Card) {
	fmt.Fprintf(r.out, "\n[%d] Card %d:\n", n, n)
	fmt.Fprintf(r.out, "    Q: %s\n", clip(c.Question, 100))
	fmt.Fprintf(r.out, "    A: %s\n", clip(c.Answer, 100))
	if c.ID != "" {
		fmt.Fprintf(r.out, "    ID: %s\n", c.ID)
	}
}

// clip truncates s to at most n runes for display.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
