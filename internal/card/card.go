package card

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Card is a single question/answer unit of a deck. ID is the remote
// identifier and stays empty until the card has been created remotely;
// once assigned it never changes.
type Card struct {
	ID       string
	Question string
	Answer   string
	Tags     []string
	Archived bool
}

// Hash returns the card's content hash. It is derived from the current
// question and answer, never stored as authoritative state.
func (c Card) Hash() string {
	return ContentHash(c.Question, c.Answer)
}

// ContentHash digests the normalized question/answer pair for change
// detection and duplicate matching. Output is fixed at 16 hex characters.
func ContentHash(question, answer string) string {
	content := strings.TrimSpace(question) + "\n---\n" + strings.TrimSpace(answer)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// ParseContent splits a remote card body into question and answer.
// The remote representation is always "question\n---\nanswer"; everything
// after the first separator belongs to the answer.
func ParseContent(content string) (question, answer string) {
	q, a, _ := strings.Cut(content, "---")
	return strings.TrimSpace(q), strings.TrimSpace(a)
}

// FormatContent joins question and answer into the remote card body.
func FormatContent(question, answer string) string {
	return question + "\n---\n" + answer
}

// ValidationError reports a structural problem with a deck file or one of
// its cards. Ordinal is 1-based; zero means the problem is file-level.
type ValidationError struct {
	File    string
	Ordinal int
	Reason  string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Ordinal > 0:
		return fmt.Sprintf("%s: card %d: %s", e.File, e.Ordinal, e.Reason)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Reason)
	default:
		return e.Reason
	}
}
