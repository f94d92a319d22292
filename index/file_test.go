package index

import (
	"context"
	"errors"
	"testing"
)

const testDimension = 4

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := OpenFileStore(dir, "test-model", testDimension)
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	return store, dir
}

func entry(path string, ordinal int, text string, vector ...float32) Entry {
	return Entry{Vector: vector, Text: text, SourcePath: path, Ordinal: ordinal}
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, []Entry{
		entry("a.txt", 0, "orthogonal", 0, 1, 0, 0),
		entry("a.txt", 1, "exact", 1, 0, 0, 0),
		entry("a.txt", 2, "close", 0.9, 0.1, 0, 0),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].Entry.Text != "exact" || results[1].Entry.Text != "close" || results[2].Entry.Text != "orthogonal" {
		t.Fatalf("unexpected ordering: %q, %q, %q", results[0].Entry.Text, results[1].Entry.Text, results[2].Entry.Text)
	}
	if results[0].Score < results[1].Score || results[1].Score < results[2].Score {
		t.Fatal("scores must be descending")
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, []Entry{
		entry("a.txt", 0, "first", 1, 0, 0, 0),
		entry("b.txt", 0, "second", 1, 0, 0, 0),
		entry("c.txt", 0, "third", 1, 0, 0, 0),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	want := []string{"first", "second", "third"}
	for i, w := range want {
		if results[i].Entry.Text != w {
			t.Fatalf("tie-break broke insertion order: position %d is %q, want %q", i, results[i].Entry.Text, w)
		}
	}
}

func TestSearchClampsK(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, []Entry{entry("a.txt", 0, "only", 1, 0, 0, 0)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 1000)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestSearchEmptyIndexReturnsNoResults(t *testing.T) {
	store, _ := newTestStore(t)

	results, err := store.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("search on empty index should not fail: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestUpsertReplacesByKey(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, []Entry{entry("doc.txt", 0, "old text", 1, 0, 0, 0)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, []Entry{entry("doc.txt", 0, "new text", 0, 1, 0, 0)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry after replace, got %d", count)
	}

	results, err := store.Search(ctx, []float32{0, 1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].Entry.Text != "new text" {
		t.Fatalf("expected replaced text, got %q", results[0].Entry.Text)
	}
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Upsert(context.Background(), []Entry{entry("doc.txt", 0, "bad", 1, 0)})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestPersistAndReload(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, []Entry{
		entry("doc.txt", 0, "chunk zero", 1, 0, 0, 0),
		entry("doc.txt", 1, "chunk one", 0, 1, 0, 0),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Persist(ctx); err != nil {
		t.Fatalf("persist: %v", err)
	}

	reopened, err := OpenFileStore(dir, "test-model", testDimension)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 entries after reload, got %d", count)
	}

	results, err := reopened.Search(ctx, []float32{0, 1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].Entry.Text != "chunk one" {
		t.Fatalf("expected reloaded entry, got %q", results[0].Entry.Text)
	}
}

func TestPersistIdempotent(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, []Entry{entry("doc.txt", 0, "chunk", 1, 0, 0, 0)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := store.Persist(ctx); err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if err := store.Persist(ctx); err != nil {
		t.Fatalf("second persist: %v", err)
	}

	reopened, err := OpenFileStore(dir, "test-model", testDimension)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	count, _ := reopened.Count(ctx)
	if count != 1 {
		t.Fatalf("expected count unchanged after repeated persist, got %d", count)
	}
}

func TestOpenRejectsModelMismatch(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, []Entry{entry("doc.txt", 0, "chunk", 1, 0, 0, 0)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Persist(ctx); err != nil {
		t.Fatalf("persist: %v", err)
	}

	if _, err := OpenFileStore(dir, "other-model", testDimension); !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch for model change, got %v", err)
	}
	if _, err := OpenFileStore(dir, "test-model", testDimension*2); !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch for dimension change, got %v", err)
	}
}
