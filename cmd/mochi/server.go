package main

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/mochi/internal/api"
	"github.com/kalambet/mochi/internal/cache"
	"github.com/kalambet/mochi/internal/provider"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve local deck files to MCP clients over stdio",
	Long: `Serve the deck files in the working directory to MCP clients over
stdio. The server is read-only: it exposes list_decks, read_deck, and
search_cards tools and never mutates a file.

search_cards embeds the query through the configured provider and needs
provider.api_key set; without it the tool reports an error while the
other tools keep working.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		deps := api.Deps{
			WorkDir:    ".",
			Cache:      cache.Open(cfg.Cache.Dir),
			EmbedModel: cfg.Provider.EmbedModel,
		}
		if cfg.Provider.APIKey != "" {
			deps.Embedder = provider.NewClient(cfg.Provider.APIKey, cfg.Provider.BaseURL, cfg.Provider.EmbedModel)
		}
		defer deps.Cache.Flush()

		stdioSrv := server.NewStdioServer(api.NewServer(deps))
		if err := stdioSrv.Listen(cmd.Context(), os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
