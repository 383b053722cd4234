package mochi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
	User   string
}

type testService struct {
	server   *httptest.Server
	requests []recordedRequest
}

// newTestService starts a fake card service answering from a static
// "METHOD /path" → body map, recording every request it sees.
func newTestService(t *testing.T, responses map[string]string) *testService {
	t.Helper()
	ts := &testService{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		user, _, _ := r.BasicAuth()
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   body.String(),
			User:   user,
		})

		if resp, ok := responses[r.Method+" "+r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":["not found"]}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testService) client() *Client {
	return NewClient(ts.server.URL, "test-key", 5*time.Second)
}

var ctx = context.Background()

func TestListDecks(t *testing.T) {
	ts := newTestService(t, map[string]string{
		"GET /decks/": `{"docs":[{"id":"Ab3dEf9k","name":"Go"},{"id":"Zz1aBb2c","name":"Rust"}]}`,
	})

	decks, err := ts.client().ListDecks(ctx)
	if err != nil {
		t.Fatalf("ListDecks: %v", err)
	}
	if len(decks) != 2 {
		t.Fatalf("got %d decks, want 2", len(decks))
	}
	if decks[0].ID != "Ab3dEf9k" || decks[0].Name != "Go" {
		t.Errorf("decks[0] = %+v", decks[0])
	}
}

func TestBasicAuth_KeyAsUsername(t *testing.T) {
	ts := newTestService(t, map[string]string{
		"GET /decks/": `{"docs":[]}`,
	})

	if _, err := ts.client().ListDecks(ctx); err != nil {
		t.Fatalf("ListDecks: %v", err)
	}
	if len(ts.requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(ts.requests))
	}
	if ts.requests[0].User != "test-key" {
		t.Errorf("basic auth user = %q, want %q", ts.requests[0].User, "test-key")
	}
}

func TestListCards_Pagination(t *testing.T) {
	pages := []string{
		`{"docs":[{"id":"c1","content":"q1\n---\na1"}],"bookmark":"b1"}`,
		`{"docs":[{"id":"c2","content":"q2\n---\na2"}],"bookmark":"b2"}`,
		`{"docs":[],"bookmark":"b3"}`,
	}
	var queries []string
	call := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, pages[call])
		call++
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	cards, err := client.ListCards(ctx, "Ab3dEf9k")
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}

	if len(cards) != 2 {
		t.Errorf("got %d cards, want 2", len(cards))
	}
	if call != 3 {
		t.Errorf("made %d requests, want 3 (stop on empty page)", call)
	}
	if queries[0] != "deck-id=Ab3dEf9k&limit=100" {
		t.Errorf("first query = %q", queries[0])
	}
	for i, want := range []string{"b1", "b2"} {
		if got := queries[i+1]; got != "bookmark="+want+"&deck-id=Ab3dEf9k&limit=100" {
			t.Errorf("query %d = %q, want bookmark %q", i+1, got, want)
		}
	}
}

func TestListCards_StopsWithoutBookmark(t *testing.T) {
	ts := newTestService(t, map[string]string{
		"GET /cards/": `{"docs":[{"id":"c1","content":"q\n---\na"}]}`,
	})

	cards, err := ts.client().ListCards(ctx, "Ab3dEf9k")
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if len(cards) != 1 {
		t.Errorf("got %d cards, want 1", len(cards))
	}
	if len(ts.requests) != 1 {
		t.Errorf("made %d requests, want 1 (no bookmark in response)", len(ts.requests))
	}
}

func TestCreateCard_Body(t *testing.T) {
	ts := newTestService(t, map[string]string{
		"POST /cards/": `{"id":"NewCard1","content":"q\n---\na"}`,
	})

	created, err := ts.client().CreateCard(ctx, "Ab3dEf9k", "q\n---\na", CardOptions{
		Tags:     []string{"go"},
		Archived: true,
	})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	if created.ID != "NewCard1" {
		t.Errorf("created.ID = %q", created.ID)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if body["deck-id"] != "Ab3dEf9k" {
		t.Errorf("deck-id = %v", body["deck-id"])
	}
	if body["archived?"] != true {
		t.Errorf("archived? = %v, want true", body["archived?"])
	}
}

func TestCreateCard_OmitsUnsetOptions(t *testing.T) {
	ts := newTestService(t, map[string]string{
		"POST /cards/": `{"id":"NewCard1"}`,
	})

	if _, err := ts.client().CreateCard(ctx, "Ab3dEf9k", "q\n---\na", CardOptions{}); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	body := ts.requests[0].Body
	for _, field := range []string{"tags", "archived?"} {
		if bytes.Contains([]byte(body), []byte(field)) {
			t.Errorf("request body should omit %s when unset: %s", field, body)
		}
	}
}

func TestUpdateCard(t *testing.T) {
	ts := newTestService(t, map[string]string{
		"POST /cards/c1": `{"id":"c1","content":"new\n---\nbody"}`,
	})

	content := "new\n---\nbody"
	updated, err := ts.client().UpdateCard(ctx, "c1", UpdateFields{Content: &content})
	if err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if updated.ID != "c1" {
		t.Errorf("updated.ID = %q", updated.ID)
	}
	if ts.requests[0].Method != http.MethodPost {
		t.Errorf("method = %q, want POST", ts.requests[0].Method)
	}
}

func TestDeleteCard(t *testing.T) {
	ts := newTestService(t, map[string]string{
		"DELETE /cards/c1": `{}`,
	})

	if err := ts.client().DeleteCard(ctx, "c1"); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	if ts.requests[0].Method != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", ts.requests[0].Method)
	}
}

func TestRemoteError(t *testing.T) {
	ts := newTestService(t, nil)

	_, err := ts.client().GetDeck(ctx, "missing")
	if err == nil {
		t.Fatal("expected error for 404 response")
	}

	var rerr *RemoteError
	if !errors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *RemoteError", err)
	}
	if rerr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rerr.Status)
	}
	if rerr.Body == "" {
		t.Error("Body is empty, want response payload")
	}
}

func TestAsCard(t *testing.T) {
	rc := Card{
		ID:       "c1",
		Content:  "What is Go?\n---\nA language",
		Tags:     []string{"go"},
		Archived: true,
	}
	c := rc.AsCard()
	if c.ID != "c1" || c.Question != "What is Go?" || c.Answer != "A language" {
		t.Errorf("AsCard = %+v", c)
	}
	if !c.Archived || len(c.Tags) != 1 {
		t.Errorf("flags lost: %+v", c)
	}
}
