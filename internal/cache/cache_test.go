package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKey_Deterministic(t *testing.T) {
	k1 := Key("model-a", "template-1", "input one", "input two")
	k2 := Key("model-a", "template-1", "input one", "input two")
	if k1 != k2 {
		t.Errorf("identical request produced different keys: %q vs %q", k1, k2)
	}
}

func TestKey_SensitiveToEveryPart(t *testing.T) {
	base := Key("model-a", "template-1", "input")
	variants := []struct {
		name string
		key  string
	}{
		{"model", Key("model-b", "template-1", "input")},
		{"template", Key("model-a", "template-2", "input")},
		{"input", Key("model-a", "template-1", "other")},
		{"extra input", Key("model-a", "template-1", "input", "")},
	}
	for _, v := range variants {
		if v.key == base {
			t.Errorf("changed %s did not change the key", v.name)
		}
	}
}

func TestKey_BoundaryAmbiguity(t *testing.T) {
	if Key("m", "t", "ab", "c") == Key("m", "t", "a", "bc") {
		t.Error("input boundaries are not encoded in the key")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)

	s.PutEmbedding("k1", []float32{0.1, 0.2})
	s.PutClassification("k2", Classification{Label: "duplicate", Reasoning: "same concept"})
	s.PutGrade("k3", Grade{Score: 7, Reasoning: "clear"})
	s.Flush()

	reopened := Open(dir)

	vec, ok := reopened.Embedding("k1")
	if !ok {
		t.Fatal("embedding missing after reopen")
	}
	if len(vec) != 2 || vec[0] != 0.1 {
		t.Errorf("embedding = %v", vec)
	}

	cls, ok := reopened.Classification("k2")
	if !ok || cls.Label != "duplicate" {
		t.Errorf("classification = %+v, ok = %v", cls, ok)
	}

	grade, ok := reopened.Grade("k3")
	if !ok || grade.Score != 7 {
		t.Errorf("grade = %+v, ok = %v", grade, ok)
	}
}

func TestStore_MissIsNotAnError(t *testing.T) {
	s := Open(t.TempDir())
	if _, ok := s.Embedding("absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestStore_EntriesImmutable(t *testing.T) {
	s := Open(t.TempDir())
	s.PutGrade("k", Grade{Score: 3, Reasoning: "first"})
	s.PutGrade("k", Grade{Score: 9, Reasoning: "second"})

	g, _ := s.Grade("k")
	if g.Score != 3 {
		t.Errorf("entry was overwritten: score = %d, want 3", g.Score)
	}
}

func TestStore_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gradings.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	s := Open(dir)
	if _, ok := s.Grade("anything"); ok {
		t.Error("corrupt cache should read as empty")
	}

	// The store must remain usable and able to persist fresh entries.
	s.PutGrade("k", Grade{Score: 5})
	s.Flush()
	if _, ok := Open(dir).Grade("k"); !ok {
		t.Error("fresh entry not persisted over corrupt file")
	}
}

func TestStore_UnwritableDirDoesNotFail(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("writing blocker file: %v", err)
	}

	// Using a regular file as the cache dir makes every write fail.
	s := Open(blocker)
	s.PutEmbedding("k", []float32{1})
	s.Flush() // must not panic or error out

	if _, ok := s.Embedding("k"); !ok {
		t.Error("in-memory entry should survive a failed flush")
	}
}

func TestFlush_SkipsCleanDomains(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)
	s.Flush()

	for _, name := range []string{"embeddings.json", "classifications.json", "gradings.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			t.Errorf("%s written despite no entries", name)
		}
	}
}
