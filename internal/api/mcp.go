// Package api exposes local deck files over the Model Context Protocol so
// editor-embedded assistants can browse and search them. Every tool is
// read-only: nothing here mutates deck files or the remote service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/mochi/internal/cache"
	"github.com/kalambet/mochi/internal/card"
	"github.com/kalambet/mochi/internal/curation"
	"github.com/kalambet/mochi/internal/provider"
	"github.com/kalambet/mochi/internal/similarity"
)

// Deps holds dependencies for the MCP server. Embedder is nil when no
// provider API key is configured; search_cards then reports a clean error
// while the other tools keep working.
type Deps struct {
	WorkDir    string
	Cache      *cache.Store
	Embedder   provider.Embedder
	EmbedModel string
}

// NewServer creates an MCP server with the deck tools registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"mochi",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("mochi — local flashcard decks mirrored from the Mochi card service."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_decks",
			mcp.WithDescription("List deck files in the working directory with deck name, remote id, and card count."),
		),
		mcpListDecks(deps),
	)

	s.AddTool(
		mcp.NewTool("read_deck",
			mcp.WithDescription("Read all cards of one deck file as JSON."),
			mcp.WithString("file", mcp.Description("Deck file name, e.g. deck-golang-Ab3dEf9k.md"), mcp.Required()),
		),
		mcpReadDeck(deps),
	)

	s.AddTool(
		mcp.NewTool("search_cards",
			mcp.WithDescription("Semantically search the cards of one deck file and return the closest matches."),
			mcp.WithString("file", mcp.Description("Deck file name"), mcp.Required()),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchCards(deps),
	)

	return s
}

type deckInfo struct {
	File  string `json:"file"`
	Name  string `json:"name"`
	ID    string `json:"id,omitempty"`
	Cards int    `json:"cards"`
}

func mcpListDecks(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		paths, err := filepath.Glob(filepath.Join(deps.WorkDir, "deck-*.md"))
		if err != nil {
			return mcpError(fmt.Sprintf("scanning decks: %v", err)), nil
		}
		sort.Strings(paths)

		infos := make([]deckInfo, 0, len(paths))
		for _, p := range paths {
			name, id, err := card.SplitDeckFilename(p)
			if err != nil {
				continue
			}
			data, err := os.ReadFile(p)
			if err != nil {
				continue
			}
			infos = append(infos, deckInfo{
				File:  filepath.Base(p),
				Name:  name,
				ID:    id,
				Cards: len(card.ParseCards(string(data))),
			})
		}

		b, err := json.Marshal(infos)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal decks: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

type cardJSON struct {
	ID       string   `json:"id,omitempty"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags,omitempty"`
	Archived bool     `json:"archived,omitempty"`
}

func mcpReadDeck(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		file, err := req.RequireString("file")
		if err != nil {
			return mcpError("file is required"), nil
		}

		cards, err := readDeckFile(deps.WorkDir, file)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		out := make([]cardJSON, len(cards))
		for i, c := range cards {
			out[i] = cardJSON{
				ID:       c.ID,
				Question: c.Question,
				Answer:   c.Answer,
				Tags:     c.Tags,
				Archived: c.Archived,
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal cards: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchCards(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Embedder == nil {
			return mcpError("semantic search not available: no provider API key configured"), nil
		}

		file, err := req.RequireString("file")
		if err != nil {
			return mcpError("file is required"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		cards, err := readDeckFile(deps.WorkDir, file)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if len(cards) == 0 {
			return mcpText("[]"), nil
		}

		texts := make([]string, len(cards))
		for i, c := range cards {
			texts[i] = curation.EmbedText(c)
		}
		vectors, err := curation.Embeddings(ctx, deps.Cache, deps.Embedder, deps.EmbedModel, texts)
		if err != nil {
			return mcpError(fmt.Sprintf("embedding cards failed: %v", err)), nil
		}

		// Query embeddings are ad hoc and bypass the cache.
		qvecs, err := deps.Embedder.EmbedBatch(ctx, []string{query})
		if err != nil {
			return mcpError(fmt.Sprintf("embedding query failed: %v", err)), nil
		}
		if len(qvecs) != 1 {
			return mcpError(fmt.Sprintf("embedding query failed: got %d vectors for one input", len(qvecs))), nil
		}

		type searchResult struct {
			ID       string  `json:"id,omitempty"`
			Question string  `json:"question"`
			Answer   string  `json:"answer"`
			Score    float64 `json:"score"`
		}

		results := make([]searchResult, len(cards))
		for i, c := range cards {
			results[i] = searchResult{
				ID:       c.ID,
				Question: c.Question,
				Answer:   c.Answer,
				Score:    similarity.Cosine(qvecs[0], vectors[i]),
			}
		}
		sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
		if len(results) > limit {
			results = results[:limit]
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

// readDeckFile loads and parses one deck file by its base name. Only the
// base name is honored so a tool call cannot read outside the working
// directory.
func readDeckFile(workDir, file string) ([]card.Card, error) {
	name := filepath.Base(file)
	data, err := os.ReadFile(filepath.Join(workDir, name))
	if err != nil {
		return nil, fmt.Errorf("reading deck file %s: %w", name, err)
	}
	return card.ParseCards(string(data)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
