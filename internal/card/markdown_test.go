package card

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const sampleDeck = `---
card_id: Ab3dEf9k
tags: ["go", "basics"]
---
What is a goroutine?
---
A lightweight thread managed by the Go runtime.
---
card_id: null
archived: true
---
What is a channel?
---
A typed conduit for communication between goroutines.
`

func TestParseCards_Empty(t *testing.T) {
	for _, text := range []string{"", "   \n\n  ", "---\n---"} {
		if cards := ParseCards(text); len(cards) != 0 {
			t.Errorf("ParseCards(%q) returned %d cards, want 0", text, len(cards))
		}
	}
}

func TestParseCards_Deck(t *testing.T) {
	cards := ParseCards(sampleDeck)
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}

	first := cards[0]
	if first.ID != "Ab3dEf9k" {
		t.Errorf("first.ID = %q, want %q", first.ID, "Ab3dEf9k")
	}
	if first.Question != "What is a goroutine?" {
		t.Errorf("first.Question = %q", first.Question)
	}
	if !reflect.DeepEqual(first.Tags, []string{"go", "basics"}) {
		t.Errorf("first.Tags = %v", first.Tags)
	}
	if first.Archived {
		t.Error("first.Archived = true, want false")
	}

	second := cards[1]
	if second.ID != "" {
		t.Errorf("second.ID = %q, want empty", second.ID)
	}
	if !second.Archived {
		t.Error("second.Archived = false, want true")
	}
}

func TestParseCards_AbsentID(t *testing.T) {
	tests := []struct {
		name        string
		frontmatter string
	}{
		{"null", "card_id: null"},
		{"none", "card_id: none"},
		{"upper null", "card_id: NULL"},
		{"empty value", "card_id:"},
		{"missing line", "tags: []"},
	}
	for _, tt := range tests {
		text := "---\n" + tt.frontmatter + "\n---\nq\n---\na\n"
		cards := ParseCards(text)
		if len(cards) != 1 {
			t.Fatalf("%s: got %d cards, want 1", tt.name, len(cards))
		}
		if cards[0].ID != "" {
			t.Errorf("%s: ID = %q, want empty", tt.name, cards[0].ID)
		}
	}
}

func TestParseCards_MalformedTags(t *testing.T) {
	text := "---\ncard_id: null\ntags: [not json\n---\nq\n---\na\n"
	cards := ParseCards(text)
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
	if len(cards[0].Tags) != 0 {
		t.Errorf("Tags = %v, want none", cards[0].Tags)
	}
}

func TestParseCards_SkipsHeadings(t *testing.T) {
	text := "# Deck notes\n---\ncard_id: null\n---\nq\n---\na\n---\n# Another heading\n---\ncard_id: null\n---\nq2\n---\na2\n"
	cards := ParseCards(text)
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}
	if cards[1].Question != "q2" {
		t.Errorf("second question = %q, want %q", cards[1].Question, "q2")
	}
}

func TestParseCards_DropsUnterminated(t *testing.T) {
	text := "---\ncard_id: null\n---\nquestion without answer\n"
	if cards := ParseCards(text); len(cards) != 0 {
		t.Errorf("got %d cards, want 0", len(cards))
	}
}

func TestParseCards_MultilineBody(t *testing.T) {
	text := "---\ncard_id: null\n---\nline one\nline two\n---\nanswer one\nanswer two\n"
	cards := ParseCards(text)
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
	if cards[0].Question != "line one\nline two" {
		t.Errorf("Question = %q", cards[0].Question)
	}
	if cards[0].Answer != "answer one\nanswer two" {
		t.Errorf("Answer = %q", cards[0].Answer)
	}
}

func TestFormatCard_OmitsEmptyFields(t *testing.T) {
	block := FormatCard(Card{Question: "q", Answer: "a"})
	if !strings.Contains(block, "card_id: null") {
		t.Errorf("id-less card should serialize card_id: null, got:\n%s", block)
	}
	if strings.Contains(block, "tags:") {
		t.Errorf("empty tags should be omitted, got:\n%s", block)
	}
	if strings.Contains(block, "archived:") {
		t.Errorf("archived=false should be omitted, got:\n%s", block)
	}
}

func TestFormatCard_IncludesSetFields(t *testing.T) {
	block := FormatCard(Card{ID: "Zx9aBc1d", Question: "q", Answer: "a", Tags: []string{"t1"}, Archived: true})
	for _, want := range []string{"card_id: Zx9aBc1d", `tags: ["t1"]`, "archived: true"} {
		if !strings.Contains(block, want) {
			t.Errorf("block missing %q:\n%s", want, block)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	cards := []Card{
		{Question: "plain question", Answer: "plain answer"},
		{ID: "Ab3dEf9k", Question: "tagged", Answer: "card", Tags: []string{"go", "test"}},
		{ID: "Zz1aBb2c", Question: "archived card", Answer: "yes", Archived: true},
		{Question: "multi\nline\nquestion", Answer: "multi\nline\nanswer"},
	}
	for _, c := range cards {
		got := ParseCards(FormatCard(c))
		if len(got) != 1 {
			t.Fatalf("round trip of %+v produced %d cards", c, len(got))
		}
		if got[0].ID != c.ID || got[0].Question != c.Question || got[0].Answer != c.Answer || got[0].Archived != c.Archived {
			t.Errorf("round trip changed card:\n got %+v\nwant %+v", got[0], c)
		}
		if len(c.Tags) > 0 && !reflect.DeepEqual(got[0].Tags, c.Tags) {
			t.Errorf("round trip changed tags: got %v, want %v", got[0].Tags, c.Tags)
		}
	}
}

func TestRoundTrip_WholeFile(t *testing.T) {
	original := ParseCards(sampleDeck)
	again := ParseCards(FormatCards(original))
	if !reflect.DeepEqual(original, again) {
		t.Errorf("file round trip diverged:\n got %+v\nwant %+v", again, original)
	}
}

func TestValidateDeck(t *testing.T) {
	cards, deckID, err := ValidateDeck("deck-go-Ab3dEf9k.md", sampleDeck)
	if err != nil {
		t.Fatalf("ValidateDeck: %v", err)
	}
	if deckID != "Ab3dEf9k" {
		t.Errorf("deckID = %q, want %q", deckID, "Ab3dEf9k")
	}
	if len(cards) != 2 {
		t.Errorf("got %d cards, want 2", len(cards))
	}
}

func TestValidateDeck_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		text string
	}{
		{"empty file", "deck-go.md", "   \n"},
		{"bad filename", "notes.md", sampleDeck},
		{"no cards", "deck-go.md", "# Only a heading\n"},
	}
	for _, tt := range tests {
		_, _, err := ValidateDeck(tt.path, tt.text)
		if err == nil {
			t.Errorf("%s: expected error, got nil", tt.name)
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: error type = %T, want *ValidationError", tt.name, err)
		}
	}
}
