package card

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	nonWordChars = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	hyphenRuns   = regexp.MustCompile(`[-\s]+`)
)

// SanitizeDeckName turns a deck name into a filename-safe slug: punctuation
// stripped, whitespace and hyphen runs collapsed to single hyphens,
// lowercased.
func SanitizeDeckName(name string) string {
	s := nonWordChars.ReplaceAllString(name, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.ToLower(strings.Trim(s, "-"))
}

// DeckFilename builds the canonical file name for a created deck.
func DeckFilename(name, deckID string) string {
	return fmt.Sprintf("deck-%s-%s.md", SanitizeDeckName(name), deckID)
}

// DeckIDFromFilename extracts the remote deck id from a deck-<name>-<id>.md
// path. The trailing token counts as an id only when it is exactly 8
// alphanumeric characters with at least one upper and one lower case letter
// (the shape of real remote ids); anything else is part of the deck name and
// an empty id is returned, marking the deck as not yet created. A path that
// does not match deck-*.md at all is a validation error.
func DeckIDFromFilename(path string) (string, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	rest, ok := strings.CutPrefix(stem, "deck-")
	if !ok || rest == "" {
		return "", &ValidationError{
			File:   base,
			Reason: "filename must match deck-<name>-<id>.md or deck-<name>.md",
		}
	}

	parts := strings.Split(rest, "-")
	if len(parts) == 1 {
		return "", nil
	}
	return matchDeckID(parts[len(parts)-1]), nil
}

// DeckNameFromFilename returns everything between the deck- prefix and the
// extension. Used when creating a deck from a file that has no id yet.
func DeckNameFromFilename(path string) (string, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	rest, ok := strings.CutPrefix(stem, "deck-")
	if !ok || rest == "" {
		return "", &ValidationError{
			File:   base,
			Reason: "filename must match deck-<name>-<id>.md or deck-<name>.md",
		}
	}
	return rest, nil
}

// SplitDeckFilename separates the deck name and the remote id encoded in a
// deck file path. The id is empty when the deck has not been created
// remotely yet.
func SplitDeckFilename(path string) (name, id string, err error) {
	rest, err := DeckNameFromFilename(path)
	if err != nil {
		return "", "", err
	}
	id, err = DeckIDFromFilename(path)
	if err != nil {
		return "", "", err
	}
	if id != "" {
		name = strings.TrimSuffix(rest, "-"+id)
	} else {
		name = rest
	}
	return name, id, nil
}

func matchDeckID(token string) string {
	if len(token) != 8 {
		return ""
	}
	var upper, lower bool
	for _, r := range token {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
		default:
			return ""
		}
	}
	if upper && lower {
		return token
	}
	return ""
}
