package mochi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/mochi/internal/card"
)

// pageLimit is the page size requested from the cards listing endpoint.
const pageLimit = 100

// RemoteError is any non-2xx answer from the card service. Mutating calls
// are never retried automatically, so the error carries enough context for
// the user to decide what to do.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("card service returned %d: %s", e.Status, e.Body)
}

// Deck is the deck resource as the service returns it.
type Deck struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Card is the card resource as the service returns it. Content is always
// the two-part "question\n---\nanswer" body.
type Card struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	Archived bool     `json:"archived"`
}

// AsCard converts the wire representation into the local model.
func (c Card) AsCard() card.Card {
	q, a := card.ParseContent(c.Content)
	return card.Card{
		ID:       c.ID,
		Question: q,
		Answer:   a,
		Tags:     c.Tags,
		Archived: c.Archived,
	}
}

// CardOptions are the optional fields accepted when creating a card.
type CardOptions struct {
	Tags     []string
	Archived bool
}

// UpdateFields enumerates the card fields an update may touch. Nil fields
// are left unchanged remotely.
type UpdateFields struct {
	Content  *string  `json:"content,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Archived *bool    `json:"archived?,omitempty"`
}

// Client talks to the Mochi card service. Authentication is HTTP basic with
// the API key as username and an empty password. Every request carries the
// configured timeout through the underlying http.Client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client for the given API base URL.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type docsPage[T any] struct {
	Docs     []T    `json:"docs"`
	Bookmark string `json:"bookmark"`
}

// ListDecks returns every deck visible to the API key.
func (c *Client) ListDecks(ctx context.Context) ([]Deck, error) {
	var page docsPage[Deck]
	if err := c.do(ctx, http.MethodGet, "/decks/", nil, nil, &page); err != nil {
		return nil, err
	}
	return page.Docs, nil
}

// GetDeck fetches a single deck by id.
func (c *Client) GetDeck(ctx context.Context, deckID string) (Deck, error) {
	var deck Deck
	if err := c.do(ctx, http.MethodGet, "/decks/"+deckID, nil, nil, &deck); err != nil {
		return Deck{}, err
	}
	return deck, nil
}

// CreateDeck creates a deck and returns it with its assigned id.
func (c *Client) CreateDeck(ctx context.Context, name string) (Deck, error) {
	var deck Deck
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/decks/", nil, body, &deck); err != nil {
		return Deck{}, err
	}
	return deck, nil
}

// ListCards fetches all cards of a deck, transparently following the
// service's opaque bookmark pagination until an empty page or a missing
// bookmark ends the listing.
func (c *Client) ListCards(ctx context.Context, deckID string) ([]Card, error) {
	var cards []Card
	bookmark := ""

	for {
		query := url.Values{
			"deck-id": {deckID},
			"limit":   {strconv.Itoa(pageLimit)},
		}
		if bookmark != "" {
			query.Set("bookmark", bookmark)
		}

		var page docsPage[Card]
		if err := c.do(ctx, http.MethodGet, "/cards/", query, nil, &page); err != nil {
			return nil, err
		}
		if len(page.Docs) == 0 {
			break
		}

		cards = append(cards, page.Docs...)
		if page.Bookmark == "" {
			break
		}
		bookmark = page.Bookmark
		slog.Debug("following cards pagination", "deck", deckID, "fetched", len(cards))
	}

	return cards, nil
}

type createCardBody struct {
	Content  string   `json:"content"`
	DeckID   string   `json:"deck-id"`
	Tags     []string `json:"tags,omitempty"`
	Archived *bool    `json:"archived?,omitempty"`
}

// CreateCard creates a card in the given deck and returns it with its
// assigned id. Ids are never invented locally; they always come from this
// response.
func (c *Client) CreateCard(ctx context.Context, deckID, content string, opts CardOptions) (Card, error) {
	body := createCardBody{
		Content: content,
		DeckID:  deckID,
		Tags:    opts.Tags,
	}
	if opts.Archived {
		t := true
		body.Archived = &t
	}

	var created Card
	if err := c.do(ctx, http.MethodPost, "/cards/", nil, body, &created); err != nil {
		return Card{}, err
	}
	return created, nil
}

// UpdateCard applies the given fields to an existing card.
func (c *Client) UpdateCard(ctx context.Context, cardID string, fields UpdateFields) (Card, error) {
	var updated Card
	if err := c.do(ctx, http.MethodPost, "/cards/"+cardID, nil, fields, &updated); err != nil {
		return Card{}, err
	}
	return updated, nil
}

// DeleteCard removes a card permanently.
func (c *Client) DeleteCard(ctx context.Context, cardID string) error {
	return c.do(ctx, http.MethodDelete, "/cards/"+cardID, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
