package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Key derives the content address for a cached result. The digest folds in
// the model identifier and the prompt/purpose template alongside the
// inputs, so any policy change (different model, reworded prompt) misses
// the cache instead of returning a stale result. Parts are length-prefixed
// to keep ("ab","c") and ("a","bc") distinct.
func Key(model, template string, inputs ...string) string {
	h := sha256.New()
	writePart(h, model)
	writePart(h, template)
	for _, in := range inputs {
		writePart(h, in)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writePart(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

// Classification is a cached pairwise relationship verdict.
type Classification struct {
	Label     string `json:"classification"`
	Reasoning string `json:"reasoning"`
}

// Grade is a cached card quality score.
type Grade struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// IOError reports a failed cache file read or write. Cache IO problems are
// always survivable: readers proceed with an empty cache and writers drop
// the write, so this error is logged rather than propagated.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Store is a content-addressed cache persisted as one flat JSON document
// per domain (embeddings, classifications, gradings). Each domain is loaded
// fully at open and rewritten fully on flush. Entries are immutable once
// written. The store is not safe for concurrent mutation; callers only
// write between request windows.
type Store struct {
	embeddings      *domain[[]float32]
	classifications *domain[Classification]
	gradings        *domain[Grade]
}

// Open loads the cache from dir. Missing, unreadable, or corrupt domain
// files are logged and treated as empty; a cache can always be rebuilt.
func Open(dir string) *Store {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Warn("cache: cannot create directory, cache will not persist", "dir", dir, "error", err)
	}
	return &Store{
		embeddings:      loadDomain[[]float32](filepath.Join(dir, "embeddings.json")),
		classifications: loadDomain[Classification](filepath.Join(dir, "classifications.json")),
		gradings:        loadDomain[Grade](filepath.Join(dir, "gradings.json")),
	}
}

func (s *Store) Embedding(key string) ([]float32, bool) { return s.embeddings.get(key) }

func (s *Store) PutEmbedding(key string, vec []float32) { s.embeddings.put(key, vec) }

func (s *Store) Classification(key string) (Classification, bool) {
	return s.classifications.get(key)
}

func (s *Store) PutClassification(key string, c Classification) {
	s.classifications.put(key, c)
}

func (s *Store) Grade(key string) (Grade, bool) { return s.gradings.get(key) }

func (s *Store) PutGrade(key string, g Grade) { s.gradings.put(key, g) }

// Flush writes every dirty domain back to disk. Write failures are logged
// and dropped; they never block the caller.
func (s *Store) Flush() {
	for _, flush := range []func() error{
		s.embeddings.flush,
		s.classifications.flush,
		s.gradings.flush,
	} {
		if err := flush(); err != nil {
			slog.Warn("cache: flush failed, result not persisted", "error", err)
		}
	}
}

type domain[T any] struct {
	path    string
	entries map[string]T
	dirty   bool
}

func loadDomain[T any](path string) *domain[T] {
	d := &domain[T]{path: path, entries: make(map[string]T)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return d
	}
	if err != nil {
		slog.Warn("cache: unreadable, starting empty", "path", path, "error", &IOError{Op: "read", Path: path, Err: err})
		return d
	}
	if err := json.Unmarshal(data, &d.entries); err != nil {
		slog.Warn("cache: corrupt, starting empty", "path", path, "error", &IOError{Op: "read", Path: path, Err: err})
		d.entries = make(map[string]T)
	}
	return d
}

func (d *domain[T]) get(key string) (T, bool) {
	v, ok := d.entries[key]
	return v, ok
}

func (d *domain[T]) put(key string, v T) {
	if _, exists := d.entries[key]; exists {
		return
	}
	d.entries[key] = v
	d.dirty = true
}

// flush rewrites the domain file atomically (temp file then rename) so a
// crash mid-write never corrupts an existing cache.
func (d *domain[T]) flush() error {
	if !d.dirty {
		return nil
	}

	data, err := json.Marshal(d.entries)
	if err != nil {
		return &IOError{Op: "write", Path: d.path, Err: err}
	}

	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return &IOError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return &IOError{Op: "write", Path: d.path, Err: err}
	}

	d.dirty = false
	return nil
}
