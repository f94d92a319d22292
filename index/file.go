package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	manifestFile = "manifest.json"
	entriesFile  = "entries.json"
)

type manifest struct {
	Model     string `json:"embedding_model"`
	Dimension int    `json:"dimension"`
	Count     int    `json:"count"`
}

// FileStore keeps the full index in memory and persists it as a directory
// holding a manifest (embedding model id + dimension) and the entries. A
// prior index at the same path is loaded on open; the manifest guards
// against loading vectors produced by a different model.
type FileStore struct {
	dir       string
	model     string
	dimension int

	mu      sync.RWMutex
	entries []Entry
	byKey   map[string]int
}

// OpenFileStore loads the index at dir, or creates an empty one there.
func OpenFileStore(dir, model string, dimension int) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("index: path is empty")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dimension)
	}

	s := &FileStore{
		dir:       dir,
		model:     model,
		dimension: dimension,
		byKey:     make(map[string]int),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("index: read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("index: parse manifest: %w", err)
	}
	if m.Model != s.model || m.Dimension != s.dimension {
		return fmt.Errorf("%w: index built with %s/%d, configured %s/%d",
			ErrModelMismatch, m.Model, m.Dimension, s.model, s.dimension)
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, entriesFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("index: read entries: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("index: parse entries: %w", err)
	}

	s.entries = entries
	for i, entry := range entries {
		s.byKey[entryKey(entry.SourcePath, entry.Ordinal)] = i
	}
	return nil
}

func (s *FileStore) Upsert(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if len(entry.Vector) != s.dimension {
			return fmt.Errorf("index: vector dimension mismatch: expected %d, got %d", s.dimension, len(entry.Vector))
		}

		key := entryKey(entry.SourcePath, entry.Ordinal)
		if pos, ok := s.byKey[key]; ok {
			s.entries[pos] = entry
			continue
		}
		s.byKey[key] = len(s.entries)
		s.entries = append(s.entries, entry)
	}
	return nil
}

func (s *FileStore) Search(_ context.Context, vector []float32, k int) ([]Result, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("index: query dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}
	k = clampK(k)

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Result, len(s.entries))
	for i, entry := range s.entries {
		results[i] = Result{Entry: entry, Score: cosineSimilarity(vector, entry.Vector)}
	}

	// Stable keeps insertion order among equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Persist writes the manifest and entries under a temp name and renames
// into place, so a crash mid-write never corrupts the committed index.
func (s *FileStore) Persist(_ context.Context) error {
	s.mu.RLock()
	entries := make([]Entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.RUnlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("index: create directory: %w", err)
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("index: marshal entries: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, entriesFile), raw); err != nil {
		return err
	}

	meta, err := json.Marshal(manifest{Model: s.model, Dimension: s.dimension, Count: len(entries)})
	if err != nil {
		return fmt.Errorf("index: marshal manifest: %w", err)
	}
	return writeAtomic(filepath.Join(s.dir, manifestFile), meta)
}

func (s *FileStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("index: write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("index: commit %s: %w", filepath.Base(path), err)
	}
	return nil
}

func entryKey(path string, ordinal int) string {
	return fmt.Sprintf("%s#%d", path, ordinal)
}

var _ Store = (*FileStore)(nil)
