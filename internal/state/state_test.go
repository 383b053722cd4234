package state

import (
	"errors"
	"testing"
	"time"

	"github.com/kalambet/mochi/internal/card"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsApplied(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Errorf("versions = %v, want first migration applied", versions)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)

	cards := []card.Card{
		{ID: "c1", Question: "What is a goroutine?", Answer: "A lightweight thread", Tags: []string{"go", "concurrency"}},
		{ID: "c2", Question: "What is WAL?", Answer: "Write-ahead logging", Archived: true},
	}
	if err := s.ReplaceSnapshot("Ab3dEf9k", cards); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	got, err := s.Snapshot("Ab3dEf9k")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d cards, want 2", len(got))
	}
	if got[0].ID != "c1" || got[0].Question != cards[0].Question || got[0].Answer != cards[0].Answer {
		t.Errorf("got[0] = %+v", got[0])
	}
	if len(got[0].Tags) != 2 || got[0].Tags[0] != "go" {
		t.Errorf("tags = %v, want [go concurrency]", got[0].Tags)
	}
	if got[1].Tags != nil {
		t.Errorf("empty tags should come back nil, got %v", got[1].Tags)
	}
	if !got[1].Archived {
		t.Error("archived flag lost")
	}
}

func TestSnapshotReplaceDropsOldCards(t *testing.T) {
	s := openTestStore(t)

	first := []card.Card{
		{ID: "c1", Question: "q1", Answer: "a1"},
		{ID: "c2", Question: "q2", Answer: "a2"},
	}
	if err := s.ReplaceSnapshot("Ab3dEf9k", first); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	second := []card.Card{{ID: "c3", Question: "q3", Answer: "a3"}}
	if err := s.ReplaceSnapshot("Ab3dEf9k", second); err != nil {
		t.Fatalf("ReplaceSnapshot (second): %v", err)
	}

	got, err := s.Snapshot("Ab3dEf9k")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c3" {
		t.Errorf("got %+v, want only c3", got)
	}
}

func TestSnapshotsAreIndependentPerDeck(t *testing.T) {
	s := openTestStore(t)

	if err := s.ReplaceSnapshot("Ab3dEf9k", []card.Card{{ID: "c1", Question: "q", Answer: "a"}}); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}
	if err := s.ReplaceSnapshot("Zz1aBb2c", nil); err != nil {
		t.Fatalf("ReplaceSnapshot (empty): %v", err)
	}

	got, err := s.Snapshot("Ab3dEf9k")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("deck Ab3dEf9k lost its snapshot: %+v", got)
	}

	empty, err := s.Snapshot("Zz1aBb2c")
	if err != nil {
		t.Fatalf("Snapshot (empty deck): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty snapshot returned %+v", empty)
	}
}

func TestSnapshotSkipsIdlessCards(t *testing.T) {
	s := openTestStore(t)

	cards := []card.Card{
		{ID: "c1", Question: "q1", Answer: "a1"},
		{Question: "not created yet", Answer: "a"},
		{Question: "also pending", Answer: "b"},
	}
	if err := s.ReplaceSnapshot("Ab3dEf9k", cards); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	got, err := s.Snapshot("Ab3dEf9k")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Errorf("got %+v, want only c1", got)
	}
}

func TestSnapshotNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Snapshot("Qq0rStUv")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, kind := range []string{"push", "sync", "dedupe"} {
		err := s.RecordRun(Run{
			Kind:       kind,
			DeckFile:   "deck-go-Ab3dEf9k.md",
			Details:    `{"cards":3}`,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
		})
		if err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := s.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Kind != "dedupe" || runs[1].Kind != "sync" {
		t.Errorf("order = %s, %s; want dedupe, sync", runs[0].Kind, runs[1].Kind)
	}
	if runs[0].ID == "" {
		t.Error("run ID was not assigned")
	}
	if !runs[0].StartedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("StartedAt = %v, want %v", runs[0].StartedAt, base.Add(2*time.Minute))
	}
	if runs[0].Details != `{"cards":3}` {
		t.Errorf("Details = %q", runs[0].Details)
	}
}

func TestRecordRunDefaultsDetails(t *testing.T) {
	s := openTestStore(t)

	if err := s.RecordRun(Run{Kind: "pull", DeckFile: "deck-go-Ab3dEf9k.md", StartedAt: time.Now(), FinishedAt: time.Now()}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := s.RecentRuns(1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Details != "{}" {
		t.Errorf("runs = %+v, want one run with empty-object details", runs)
	}
}
