package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/mochi/internal/card"
	"github.com/kalambet/mochi/internal/mochi"
	"github.com/kalambet/mochi/internal/reconcile"
	"github.com/kalambet/mochi/internal/state"
)

// --- pull ---

var pullCmd = &cobra.Command{
	Use:   "pull <deck-id>",
	Short: "Fetch a deck into a local markdown file",
	Long: `Fetch a deck from the card service into a local markdown file.

The first pull writes deck-<name>-<id>.md and stores a base snapshot.
Later pulls three-way merge remote changes into your edited file: clean
remote edits are accepted, cards you edited stay as you wrote them, and
a card changed on both sides keeps your version with the conflict
reported. New local cards without an id are never touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.pull(cmd.Context(), args[0])
	},
}

func (a *app) pull(ctx context.Context, deckID string) error {
	started := time.Now().UTC()

	client, err := a.remote()
	if err != nil {
		return err
	}

	deck, err := client.GetDeck(ctx, deckID)
	if err != nil {
		return err
	}
	remote, err := fetchCards(ctx, client, deckID)
	if err != nil {
		return err
	}

	path := findDeckFile(".", deckID)
	if path == "" {
		path = card.DeckFilename(deck.Name, deck.ID)
	}
	name := filepath.Base(path)

	data, readErr := os.ReadFile(path)
	fileExists := readErr == nil
	if readErr != nil && !os.IsNotExist(readErr) {
		return readErr
	}

	base, baseErr := a.store.Snapshot(deckID)
	if baseErr != nil && !errors.Is(baseErr, state.ErrNotFound) {
		return baseErr
	}

	// Merging needs both an edited file and the base it was pulled
	// against; with either missing this is a fresh pull.
	if !fileExists || baseErr != nil {
		if fileExists && !confirm(fmt.Sprintf("Overwrite %s with %d remote card(s)?", name, len(remote))) {
			printWarning("pull aborted; nothing changed")
			return nil
		}
		if err := writeDeckFile(path, remote); err != nil {
			return err
		}
		if err := a.store.ReplaceSnapshot(deckID, remote); err != nil {
			slog.Warn("storing base snapshot", "deck", deckID, "error", err)
		}
		a.recordRun("pull", name, started, map[string]any{
			"deck_id": deckID,
			"cards":   len(remote),
		})
		printSuccess("Pulled %d card(s) into %s", len(remote), name)
		return nil
	}

	local := card.ParseCards(string(data))
	res := reconcile.Merge(local, remote, base)

	for _, c := range res.Conflicts {
		if c.RemoteDeleted {
			printWarning("deleted remotely but edited here, keeping local copy: %s", clip(c.Local.Question, 56))
		} else {
			printWarning("edited on both sides, keeping local version: %s", clip(c.Local.Question, 56))
		}
	}

	if err := writeDeckFile(path, res.Cards); err != nil {
		return err
	}
	if err := a.store.ReplaceSnapshot(deckID, remote); err != nil {
		slog.Warn("storing base snapshot", "deck", deckID, "error", err)
	}

	a.recordRun("pull", name, started, map[string]any{
		"deck_id":   deckID,
		"added":     res.Added,
		"updated":   res.Updated,
		"removed":   res.Removed,
		"conflicts": len(res.Conflicts),
	})
	printSuccess("Merged %s: %d added, %d updated, %d removed, %d conflict(s)",
		name, res.Added, res.Updated, res.Removed, len(res.Conflicts))
	if res.Deletions > 0 {
		printWarning("%d card(s) deleted locally still exist on the service; run 'mochi sync %s' to delete them remotely", res.Deletions, name)
	}
	return nil
}

// --- push ---

var pushCmd = &cobra.Command{
	Use:   "push [file]",
	Short: "Push local deck files to the card service",
	Long: `Push a local deck file to the card service. Local state is
authoritative: new cards are created, changed cards updated, and remote
cards missing from the file deleted remotely, all after a printed plan
and confirmation.

Without a file argument every deck-*.md in the working directory is
pushed after a single confirmation. A file whose name carries no deck id
creates the deck first and is renamed to embed the assigned id.

New cards whose content already exists remotely are held back as likely
duplicates unless --force is given. A card id the service no longer
knows aborts the push; run sync to reconcile remote deletions.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			return a.reconcileFile(cmd.Context(), args[0], reconcileOpts{force: force})
		}

		files, err := filepath.Glob("deck-*.md")
		if err != nil {
			return err
		}
		if len(files) == 0 {
			printWarning("no deck-*.md files in the current directory")
			return nil
		}
		sort.Strings(files)

		for _, f := range files {
			fmt.Fprintf(os.Stderr, "  %s\n", f)
		}
		if !confirm(fmt.Sprintf("Push %d deck file(s)?", len(files))) {
			printWarning("push aborted; nothing changed")
			return nil
		}
		for _, f := range files {
			if err := a.reconcileFile(cmd.Context(), f, reconcileOpts{force: force, yes: true}); err != nil {
				return err
			}
		}
		return nil
	},
}

// --- sync ---

var syncCmd = &cobra.Command{
	Use:   "sync <file>",
	Short: "Reconcile a deck file with the card service in both directions",
	Long: `Reconcile a deck file with the card service in both directions.

Like push, but a local card whose id the service no longer knows is
treated as deleted remotely and removed from the file instead of
aborting. Both deletion directions are listed in the plan and gated on
the same confirmation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.reconcileFile(cmd.Context(), args[0], reconcileOpts{sync: true, force: force})
	},
}

func init() {
	pushCmd.Flags().Bool("force", false, "create cards even when their content already exists remotely")
	syncCmd.Flags().Bool("force", false, "create cards even when their content already exists remotely")
}

type reconcileOpts struct {
	sync  bool // reconcile remote deletions locally instead of aborting
	force bool
	yes   bool // plan already confirmed (batch push)
}

// reconcileFile validates a deck file, plans against live remote state,
// and applies the plan after confirmation. The file and the base snapshot
// are rewritten only once every remote call has succeeded.
func (a *app) reconcileFile(ctx context.Context, path string, opts reconcileOpts) error {
	started := time.Now().UTC()

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	local, deckID, err := card.ValidateDeck(path, string(data))
	if err != nil {
		return err
	}

	client, err := a.remote()
	if err != nil {
		return err
	}

	// No id in the filename means the deck does not exist remotely yet.
	if deckID == "" {
		if opts.sync {
			return fmt.Errorf("%s has no deck id; push it first to create the deck", filepath.Base(path))
		}
		path, deckID, err = createDeck(ctx, client, path)
		if err != nil {
			return err
		}
	}
	name := filepath.Base(path)

	remote, err := fetchCards(ctx, client, deckID)
	if err != nil {
		return err
	}

	var plan reconcile.Plan
	if opts.sync {
		plan = reconcile.BuildSync(local, remote, opts.force)
	} else {
		plan, err = reconcile.BuildPush(local, remote, opts.force)
		if err != nil {
			return err
		}
	}

	// Held-back duplicates block the whole operation: the safe resolutions
	// (pull the remote copy in, or force creation) are both user calls.
	if len(plan.Duplicates) > 0 {
		reportDuplicates(plan.Duplicates)
		return nil
	}
	if plan.Empty() {
		if err := a.store.ReplaceSnapshot(deckID, remote); err != nil {
			slog.Warn("storing base snapshot", "deck", deckID, "error", err)
		}
		printSuccess("%s is up to date (%d cards)", name, len(local))
		return nil
	}

	printStep("%s: %s", name, planSummary(plan))
	printPlan(plan)
	if !opts.yes && !confirm("Apply these changes?") {
		printWarning("aborted; nothing changed")
		return nil
	}

	merged, err := applyPlan(ctx, client, deckID, local, plan)
	if err != nil {
		return err
	}

	if err := writeDeckFile(path, merged); err != nil {
		return err
	}
	if err := a.store.ReplaceSnapshot(deckID, merged); err != nil {
		slog.Warn("storing base snapshot", "deck", deckID, "error", err)
	}

	kind := "push"
	if opts.sync {
		kind = "sync"
	}
	a.recordRun(kind, name, started, map[string]any{
		"deck_id":        deckID,
		"created":        len(plan.ToCreate),
		"updated":        len(plan.ToUpdate),
		"deleted_remote": len(plan.ToDeleteRemote),
		"deleted_local":  len(plan.ToDeleteLocal),
	})
	printSuccess("%s: %d created, %d updated, %d deleted remotely, %d removed locally",
		name, len(plan.ToCreate), len(plan.ToUpdate), len(plan.ToDeleteRemote), len(plan.ToDeleteLocal))
	return nil
}

// createDeck registers a brand-new deck remotely and renames the file so
// its name embeds the assigned id. The deck name comes from the filename.
func createDeck(ctx context.Context, client *mochi.Client, path string) (newPath, deckID string, err error) {
	name, _, err := card.SplitDeckFilename(path)
	if err != nil {
		return "", "", err
	}

	deck, err := client.CreateDeck(ctx, name)
	if err != nil {
		return "", "", fmt.Errorf("creating deck %q: %w", name, err)
	}
	if deck.Name == "" {
		deck.Name = name
	}

	newPath = filepath.Join(filepath.Dir(path), card.DeckFilename(deck.Name, deck.ID))
	if err := os.Rename(path, newPath); err != nil {
		return "", "", fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	printSuccess("Created deck %q (%s), file renamed to %s", deck.Name, deck.ID, filepath.Base(newPath))
	return newPath, deck.ID, nil
}

// applyPlan executes a plan against the remote deck and returns the new
// local card set: file order is preserved, cards deleted remotely are
// dropped, and ids assigned by creation are written onto the matching
// id-less cards. Ids are never invented locally. Any remote failure
// returns before the caller rewrites the file.
func applyPlan(ctx context.Context, client *mochi.Client, deckID string, local []card.Card, plan reconcile.Plan) ([]card.Card, error) {
	deleteLocal := make(map[string]bool, len(plan.ToDeleteLocal))
	for _, c := range plan.ToDeleteLocal {
		deleteLocal[c.ID] = true
	}

	// ToCreate preserves file order, so a cursor pairs each id-less local
	// card with its planned creation.
	merged := make([]card.Card, 0, len(local))
	createNext := 0
	for _, c := range local {
		if c.ID != "" && deleteLocal[c.ID] {
			continue
		}
		if c.ID == "" && createNext < len(plan.ToCreate) && plan.ToCreate[createNext].Hash() == c.Hash() {
			created, err := client.CreateCard(ctx, deckID, card.FormatContent(c.Question, c.Answer), mochi.CardOptions{
				Tags:     c.Tags,
				Archived: c.Archived,
			})
			if err != nil {
				return nil, fmt.Errorf("creating card: %w", err)
			}
			c.ID = created.ID
			createNext++
		}
		merged = append(merged, c)
	}

	for _, c := range plan.ToUpdate {
		content := card.FormatContent(c.Question, c.Answer)
		fields := mochi.UpdateFields{Content: &content}
		if len(c.Tags) > 0 {
			fields.Tags = c.Tags
		}
		if c.Archived {
			t := true
			fields.Archived = &t
		}
		if _, err := client.UpdateCard(ctx, c.ID, fields); err != nil {
			return nil, fmt.Errorf("updating card %s: %w", c.ID, err)
		}
	}

	for _, id := range plan.ToDeleteRemote {
		if err := client.DeleteCard(ctx, id); err != nil {
			return nil, fmt.Errorf("deleting card %s: %w", id, err)
		}
	}

	return merged, nil
}

func fetchCards(ctx context.Context, client *mochi.Client, deckID string) ([]card.Card, error) {
	remoteCards, err := client.ListCards(ctx, deckID)
	if err != nil {
		return nil, err
	}
	cards := make([]card.Card, len(remoteCards))
	for i, rc := range remoteCards {
		cards[i] = rc.AsCard()
	}
	return cards, nil
}

func writeDeckFile(path string, cards []card.Card) error {
	if err := os.WriteFile(path, []byte(card.FormatCards(cards)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
