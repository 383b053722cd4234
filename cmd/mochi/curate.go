package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/mochi/internal/cache"
	"github.com/kalambet/mochi/internal/card"
	"github.com/kalambet/mochi/internal/curation"
	"github.com/kalambet/mochi/internal/resolve"
	"github.com/kalambet/mochi/internal/similarity"
)

// annCutoff is the deck size above which brute-force pair search gives way
// to the approximate top-K index.
const annCutoff = 500

// --- dedupe ---

var dedupeCmd = &cobra.Command{
	Use:   "dedupe <file>",
	Short: "Find and remove near-duplicate cards in a deck file",
	Long: `Find near-duplicate cards in a deck file and remove them
interactively.

Cards are embedded (cached between runs), pairs above the similarity
threshold are classified by the chat model, and everything the model did
not rule complementary is presented for a keep/remove decision. Nothing
is written until the final removal summary is confirmed; quitting at any
prompt leaves the file untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		threshold := a.cfg.Dedupe.Threshold
		if cmd.Flags().Changed("threshold") {
			threshold, _ = cmd.Flags().GetFloat64("threshold")
		}
		window := a.cfg.Dedupe.Window
		if cmd.Flags().Changed("window") {
			window, _ = cmd.Flags().GetInt("window")
		}
		ann, _ := cmd.Flags().GetBool("ann")

		return a.dedupe(cmd.Context(), args[0], threshold, window, ann)
	},
}

var curateCmd = &cobra.Command{
	Use:   "curate <file>",
	Short: "Grade card quality and rewrite weak cards",
	Long: `Grade every card in a deck file for spaced-repetition quality and
offer rewrites for cards below the minimum score.

Grades are cached between runs. Each proposed rewrite is accepted or
rejected interactively; accepted rewrites are applied only after a final
confirmation. Quitting at any prompt leaves the file untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		minScore := a.cfg.Curate.MinScore
		if cmd.Flags().Changed("min-score") {
			minScore, _ = cmd.Flags().GetInt("min-score")
		}

		return a.curate(cmd.Context(), args[0], minScore, a.cfg.Dedupe.Window)
	},
}

func init() {
	dedupeCmd.Flags().Float64("threshold", 0.85, "similarity above which a pair is a duplicate candidate (overrides dedupe.threshold)")
	dedupeCmd.Flags().Int("window", curation.DefaultWindow, "concurrent provider requests per window (overrides dedupe.window)")
	dedupeCmd.Flags().Bool("ann", false, "use the approximate index regardless of deck size")

	curateCmd.Flags().Int("min-score", 6, "grade below which a rewrite is requested (overrides curate.min_score)")
}

func (a *app) newRunner(window int) (*curation.Runner, error) {
	prov, err := a.provider()
	if err != nil {
		return nil, err
	}
	store := cache.Open(a.cfg.Cache.Dir)
	return curation.NewRunner(store, prov, prov, curation.Options{
		ChatModel:  a.cfg.Provider.ChatModel,
		EmbedModel: a.cfg.Provider.EmbedModel,
		Window:     window,
	}), nil
}

func (a *app) dedupe(ctx context.Context, path string, threshold float64, window int, ann bool) error {
	started := time.Now().UTC()
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cards := card.ParseCards(string(data))
	if len(cards) < 2 {
		printWarning("%s has %d card(s); nothing to compare", name, len(cards))
		return nil
	}

	runner, err := a.newRunner(window)
	if err != nil {
		return err
	}

	printStep("embedding %d card(s)", len(cards))
	vectors, err := runner.EmbedCards(ctx, cards)
	if err != nil {
		return err
	}

	var pairs []similarity.Pair
	if ann || len(cards) > annCutoff {
		ix := similarity.NewIndex(similarity.DefaultTopK)
		for _, v := range vectors {
			ix.Add(v)
		}
		pairs = ix.FindPairs(threshold)
	} else {
		pairs = similarity.FindPairs(vectors, threshold)
	}

	if len(pairs) == 0 {
		printSuccess("no pairs above similarity %.2f in %s", threshold, name)
		return nil
	}
	printStep("classifying %d candidate pair(s) above %.2f", len(pairs), threshold)

	runner.Progress = func(done, total int) {
		printStep("classified %d/%d", done, total)
	}
	results, err := runner.ClassifyPairs(ctx, cards, pairs)
	if err != nil {
		return err
	}
	if cached := countCachedPairs(results); cached > 0 {
		printStep("%d of %d classifications came from cache", cached, len(results))
	}

	resolver := resolve.New(os.Stdin, os.Stdout)
	removed, aborted, err := resolver.ReviewPairs(cards, results)
	if err != nil {
		return err
	}
	if aborted {
		printWarning("aborted; %s unchanged", name)
		return nil
	}
	if len(removed) == 0 {
		printSuccess("nothing to remove from %s", name)
		return nil
	}

	ok, err := resolver.ConfirmRemovals(cards, removed)
	if err != nil {
		return err
	}
	if !ok {
		printWarning("aborted; %s unchanged", name)
		return nil
	}

	kept := make([]card.Card, 0, len(cards)-len(removed))
	removedRemote := false
	for i, c := range cards {
		if removed[i] {
			removedRemote = removedRemote || c.ID != ""
			continue
		}
		kept = append(kept, c)
	}
	if err := writeDeckFile(path, kept); err != nil {
		return err
	}

	a.recordRun("dedupe", name, started, map[string]any{
		"cards":   len(cards),
		"pairs":   len(pairs),
		"removed": len(removed),
	})
	printSuccess("Removed %d card(s); %d remain in %s", len(removed), len(kept), name)
	if removedRemote {
		fmt.Fprintf(os.Stderr, "  Run 'mochi sync %s' to delete the removed card(s) remotely.\n", name)
	}
	return nil
}

func (a *app) curate(ctx context.Context, path string, minScore, window int) error {
	started := time.Now().UTC()
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cards := card.ParseCards(string(data))
	if len(cards) == 0 {
		printWarning("%s has no cards", name)
		return nil
	}

	runner, err := a.newRunner(window)
	if err != nil {
		return err
	}
	runner.Progress = func(done, total int) {
		printStep("graded %d/%d", done, total)
	}

	printStep("grading %d card(s)", len(cards))
	grades, err := runner.GradeCards(ctx, cards)
	if err != nil {
		return err
	}
	if cached := countCachedGrades(grades); cached > 0 {
		printStep("%d of %d grades came from cache", cached, len(grades))
	}

	var dist [11]int
	failed := 0
	var low []int
	for i, g := range grades {
		if g.Failed {
			failed++
			continue
		}
		dist[g.Grade.Score]++
		if g.Grade.Score < minScore {
			low = append(low, i)
		}
	}
	printGradeDistribution(dist, failed)

	if len(low) == 0 {
		printSuccess("every graded card in %s scored %d or above", name, minScore)
		return nil
	}
	printStep("requesting rewrites for %d card(s) below %d", len(low), minScore)

	lowCards := make([]card.Card, len(low))
	problems := make([]string, len(low))
	for i, idx := range low {
		lowCards[i] = cards[idx]
		problems[i] = grades[idx].Grade.Reasoning
	}

	runner.Progress = func(done, total int) {
		printStep("rewrote %d/%d", done, total)
	}
	improvements, err := runner.ImproveCards(ctx, lowCards, problems)
	if err != nil {
		return err
	}

	var items []resolve.ImprovementReview
	for i, imp := range improvements {
		if !imp.OK {
			printWarning("no usable rewrite for: %s", clip(lowCards[i].Question, 56))
			continue
		}
		items = append(items, resolve.ImprovementReview{
			Index:   low[i],
			Grade:   grades[low[i]].Grade,
			Rewrite: imp,
		})
	}
	if len(items) == 0 {
		printWarning("no usable rewrites; %s unchanged", name)
		return nil
	}

	resolver := resolve.New(os.Stdin, os.Stdout)
	accepted, aborted, err := resolver.ReviewImprovements(cards, items)
	if err != nil {
		return err
	}
	if aborted {
		printWarning("aborted; %s unchanged", name)
		return nil
	}
	if len(accepted) == 0 {
		printWarning("no rewrites accepted; %s unchanged", name)
		return nil
	}

	ok, err := resolver.Confirm(fmt.Sprintf("Apply %d accepted rewrite(s)? [y/N]: ", len(accepted)))
	if err != nil {
		return err
	}
	if !ok {
		printWarning("aborted; %s unchanged", name)
		return nil
	}

	for idx, imp := range accepted {
		cards[idx].Question = imp.Question
		cards[idx].Answer = imp.Answer
	}
	if err := writeDeckFile(path, cards); err != nil {
		return err
	}

	a.recordRun("curate", name, started, map[string]any{
		"cards":    len(cards),
		"below":    len(low),
		"accepted": len(accepted),
	})
	printSuccess("Applied %d rewrite(s) to %s", len(accepted), name)
	fmt.Fprintf(os.Stderr, "  Run 'mochi push %s' to update the rewritten card(s) remotely.\n", name)
	return nil
}

func countCachedPairs(results []curation.PairResult) int {
	n := 0
	for _, r := range results {
		if r.Cached {
			n++
		}
	}
	return n
}

func countCachedGrades(grades []curation.GradeResult) int {
	n := 0
	for _, g := range grades {
		if g.Cached {
			n++
		}
	}
	return n
}
