package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/mochi/internal/card"
	"github.com/kalambet/mochi/internal/config"
	"github.com/kalambet/mochi/internal/mochi"
	"github.com/kalambet/mochi/internal/provider"
	"github.com/kalambet/mochi/internal/state"
)

// app bundles what most commands need: loaded config and the open state
// store. Remote and provider clients are built lazily so that offline
// commands (history, config) work without any API key configured.
type app struct {
	cfg    config.Config
	store  *state.Store
	client *mochi.Client
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := state.Open(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}
	return &app{cfg: cfg, store: store}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("closing state store", "error", err)
	}
}

func (a *app) remote() (*mochi.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if a.cfg.Mochi.APIKey == "" {
		return nil, config.MissingKeyError("mochi.api_key")
	}
	a.client = mochi.NewClient(a.cfg.Mochi.BaseURL, a.cfg.Mochi.APIKey, a.cfg.HTTP.Timeout())
	return a.client, nil
}

func (a *app) provider() (*provider.Client, error) {
	if a.cfg.Provider.APIKey == "" {
		return nil, config.MissingKeyError("provider.api_key")
	}
	return provider.NewClient(a.cfg.Provider.APIKey, a.cfg.Provider.BaseURL, a.cfg.Provider.EmbedModel), nil
}

// recordRun appends a ledger entry. Ledger failures are logged and
// swallowed: the operation itself already succeeded.
func (a *app) recordRun(kind, deckFile string, started time.Time, details map[string]any) {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte("{}")
	}
	run := state.Run{
		Kind:       kind,
		DeckFile:   deckFile,
		Details:    string(payload),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if err := a.store.RecordRun(run); err != nil {
		slog.Warn("recording run", "kind", kind, "error", err)
	}
}

// findDeckFile locates the file in dir whose name embeds the given remote
// deck id. Empty when no file matches.
func findDeckFile(dir, deckID string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "deck-*.md"))
	if err != nil {
		return ""
	}
	for _, m := range matches {
		if id, idErr := card.DeckIDFromFilename(m); idErr == nil && id == deckID {
			return m
		}
	}
	return ""
}

// --- decks ---

var decksCmd = &cobra.Command{
	Use:   "decks",
	Short: "List decks on the card service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		client, err := a.remote()
		if err != nil {
			return err
		}

		decks, err := client.ListDecks(cmd.Context())
		if err != nil {
			return err
		}

		if len(decks) == 0 {
			printWarning("no decks found")
			return nil
		}
		for _, d := range decks {
			fmt.Printf("  %s  %s\n", colorize(colorBold, d.ID), d.Name)
		}
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pull/push/sync/dedupe/curate runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.store.RecentRuns(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			printWarning("no runs recorded yet")
			return nil
		}
		for _, r := range runs {
			when := r.StartedAt.Local().Format("2006-01-02 15:04")
			fmt.Printf("  %s  %-7s %s  %s\n", when, colorize(colorBold, r.Kind), r.DeckFile, r.Details)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		// Never echo the value: it may be an API key.
		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
