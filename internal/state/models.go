package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/mochi/internal/card"
)

// Run is one completed command invocation recorded in the ledger.
type Run struct {
	ID         string
	Kind       string // pull, push, sync, dedupe, curate
	DeckFile   string
	Details    string // JSON summary of what the run changed
	StartedAt  time.Time
	FinishedAt time.Time
}

// ReplaceSnapshot stores cards as the new base snapshot for deckID,
// dropping whatever snapshot was there before. Cards without a remote id
// are skipped: the snapshot records known remote state, and an id-less
// card has none yet. The write is transactional, so a failed replace
// leaves the previous snapshot intact.
func (s *Store) ReplaceSnapshot(deckID string, cards []card.Card) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM snapshot_cards WHERE deck_id = ?", deckID); err != nil {
		return fmt.Errorf("clearing old snapshot: %w", err)
	}

	for _, c := range cards {
		if c.ID == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO snapshot_cards
			(deck_id, card_id, question, answer, tags, archived, content_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			deckID, c.ID, c.Question, c.Answer, tagsJSON(c.Tags), boolInt(c.Archived), c.Hash(),
		); err != nil {
			return fmt.Errorf("inserting snapshot card %s: %w", c.ID, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO snapshots (deck_id, taken_at) VALUES (?, ?)
		ON CONFLICT(deck_id) DO UPDATE SET taken_at = excluded.taken_at`,
		deckID, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording snapshot time: %w", err)
	}

	return tx.Commit()
}

// Snapshot loads the base snapshot for deckID in insertion order.
// ErrNotFound means the deck was never synchronized on this machine and no
// merge base exists.
func (s *Store) Snapshot(deckID string) ([]card.Card, error) {
	var takenAt string
	err := s.db.QueryRow("SELECT taken_at FROM snapshots WHERE deck_id = ?", deckID).Scan(&takenAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT card_id, question, answer, tags, archived
		FROM snapshot_cards WHERE deck_id = ? ORDER BY rowid`, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []card.Card
	for rows.Next() {
		var (
			c        card.Card
			tags     string
			archived int
		)
		if err := rows.Scan(&c.ID, &c.Question, &c.Answer, &tags, &archived); err != nil {
			return nil, err
		}
		var tagList []string
		if err := json.Unmarshal([]byte(tags), &tagList); err != nil {
			return nil, fmt.Errorf("parsing tags for card %s: %w", c.ID, err)
		}
		if len(tagList) > 0 {
			c.Tags = tagList
		}
		c.Archived = archived != 0
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// RecordRun appends a completed command to the run ledger. An empty ID is
// assigned a fresh UUID.
func (s *Store) RecordRun(r Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Details == "" {
		r.Details = "{}"
	}
	_, err := s.db.Exec(`INSERT INTO runs (id, kind, deck_file, details, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.DeckFile, r.Details,
		r.StartedAt.UTC().Format(time.RFC3339),
		r.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, kind, deck_file, details, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished string
		)
		if err := rows.Scan(&r.ID, &r.Kind, &r.DeckFile, &r.Details, &started, &finished); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("parsing started_at for run %s: %w", r.ID, err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at for run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func tagsJSON(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
