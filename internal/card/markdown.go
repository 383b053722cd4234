package card

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

type parseState int

const (
	expectFrontmatter parseState = iota
	expectQuestion
	expectAnswer
)

// ParseCards reads a deck file body into cards. The format is a sequence of
// sections separated by delimiter lines (a line that is exactly "---" after
// trimming): frontmatter, question, answer, repeating. Sections that are
// empty or start with a heading marker are skipped without advancing the
// state machine, so decks may carry markdown headings between cards.
//
// Malformed metadata is coerced, never fatal: an unparseable card_id
// ("null", "none", empty) yields an absent id, malformed tags JSON yields
// no tags, a missing archived key defaults to false. A trailing question
// with no answer section is dropped.
func ParseCards(text string) []Card {
	var cards []Card

	state := expectFrontmatter
	var cur Card

	for _, section := range splitSections(text) {
		if section == "" || strings.HasPrefix(section, "#") {
			continue
		}

		switch state {
		case expectFrontmatter:
			cur = parseFrontmatter(section)
			state = expectQuestion
		case expectQuestion:
			cur.Question = section
			state = expectAnswer
		case expectAnswer:
			cur.Answer = section
			cards = append(cards, cur)
			cur = Card{}
			state = expectFrontmatter
		}
	}

	return cards
}

// splitSections cuts text on delimiter lines and trims each section.
func splitSections(text string) []string {
	var sections []string
	var cur []string

	flush := func() {
		sections = append(sections, strings.TrimSpace(strings.Join(cur, "\n")))
		cur = cur[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()

	return sections
}

func parseFrontmatter(section string) Card {
	fields := make(map[string]string)
	for _, line := range strings.Split(section, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	var c Card

	switch strings.ToLower(fields["card_id"]) {
	case "null", "none", "":
	default:
		c.ID = fields["card_id"]
	}

	if raw := fields["tags"]; raw != "" {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err == nil {
			c.Tags = tags
		}
	}

	c.Archived = strings.EqualFold(fields["archived"], "true")

	return c
}

// FormatCard renders one card as a markdown block. The tags line is omitted
// when there are no tags and the archived line is omitted when false, so
// files stay minimal; ParseCards(FormatCard(c)) round-trips any valid card.
func FormatCard(c Card) string {
	var b strings.Builder

	b.WriteString("---\n")
	if c.ID == "" {
		b.WriteString("card_id: null\n")
	} else {
		fmt.Fprintf(&b, "card_id: %s\n", c.ID)
	}
	if len(c.Tags) > 0 {
		tags, _ := json.Marshal(c.Tags)
		fmt.Fprintf(&b, "tags: %s\n", tags)
	}
	if c.Archived {
		b.WriteString("archived: true\n")
	}
	b.WriteString("---\n")
	b.WriteString(c.Question)
	b.WriteString("\n---\n")
	b.WriteString(c.Answer)

	return b.String()
}

// FormatCards renders a whole deck file body.
func FormatCards(cards []Card) string {
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(FormatCard(c))
		b.WriteByte('\n')
	}
	return b.String()
}

// ValidateDeck checks a deck file before any remote operation: the file must
// be non-empty, the filename well-formed, and every card must have a
// non-empty question and answer. Returns the parsed cards and the deck id
// encoded in the filename (empty for a not-yet-created deck).
func ValidateDeck(path, text string) ([]Card, string, error) {
	name := filepath.Base(path)

	if strings.TrimSpace(text) == "" {
		return nil, "", &ValidationError{File: name, Reason: "deck file is empty"}
	}

	deckID, err := DeckIDFromFilename(path)
	if err != nil {
		return nil, "", err
	}

	cards := ParseCards(text)
	if len(cards) == 0 {
		return nil, "", &ValidationError{File: name, Reason: "no cards found"}
	}

	for i, c := range cards {
		if strings.TrimSpace(c.Question) == "" {
			return nil, "", &ValidationError{File: name, Ordinal: i + 1, Reason: "empty question"}
		}
		if strings.TrimSpace(c.Answer) == "" {
			return nil, "", &ValidationError{File: name, Ordinal: i + 1, Reason: "empty answer"}
		}
	}

	return cards, deckID, nil
}
