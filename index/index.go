// Package index stores (vector, text, metadata) entries and answers
// nearest-neighbor queries over them. Similarity is cosine, reported
// descending; ties keep insertion order. Two backends exist: a file-backed
// store persisted under a directory, and a Postgres/pgvector store.
package index

import (
	"context"
	"errors"
	"math"
)

// ErrModelMismatch is returned when a persisted index was built with a
// different embedding model or dimension than the one configured now.
// Mixing models without a full reindex silently corrupts similarity
// search, so opening such an index fails fast.
var ErrModelMismatch = errors.New("index: embedding model mismatch")

// Entry is one indexed chunk. Immutable after insertion.
type Entry struct {
	Vector     []float32 `json:"vector"`
	Text       string    `json:"text"`
	SourcePath string    `json:"source_path"`
	Ordinal    int       `json:"ordinal"`
}

type Result struct {
	Entry Entry
	Score float64
}

type Store interface {
	// Upsert inserts entries, replacing any existing entry with the same
	// (SourcePath, Ordinal) key. Re-ingesting a file never duplicates it.
	Upsert(ctx context.Context, entries []Entry) error
	// Search returns the k most similar entries, best first.
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)
	// Persist flushes to durable storage. Idempotent; safe to call after
	// partial failures without corrupting previously committed entries.
	Persist(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

const maxSearchK = 50

func clampK(k int) int {
	if k <= 0 {
		return 1
	}
	if k > maxSearchK {
		return maxSearchK
	}
	return k
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
