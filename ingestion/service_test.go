package ingestion

import (
	"context"
	"hash/fnv"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fabfab/ragchat/embeddings"
	"github.com/fabfab/ragchat/index"
)

const testDimension = 16

// wordEmbedder produces deterministic bag-of-words vectors so texts with
// shared vocabulary score as similar.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, testDimension)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,!?\"'")
			if word == "" {
				continue
			}
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[int(h.Sum32()%testDimension)]++
		}
		vectors[i] = vec
	}
	return vectors, nil
}

var _ embeddings.Embedder = wordEmbedder{}

func newTestService(t *testing.T) (*Service, *index.FileStore) {
	t.Helper()

	store, err := index.OpenFileStore(t.TempDir(), "test-model", testDimension)
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}

	svc := NewService(store, wordEmbedder{}, log.New(io.Discard, "", 0), 200, 40)
	return svc, store
}

func TestIngestPlainTextFile(t *testing.T) {
	svc, store := newTestService(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "facts.txt")
	if err := os.WriteFile(path, []byte("The capital of France is Paris."), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	added, err := svc.Ingest(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 chunk added, got %d", added)
	}

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 indexed entry, got %d", count)
	}
}

func TestIngestDirectoryRecursesAndSkipsUnsupported(t *testing.T) {
	svc, store := newTestService(t)

	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Alpha document text."), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, "b.md"), []byte("Beta document text."), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "c.png"), []byte{0x89, 0x50}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	added, err := svc.Ingest(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 chunks from 2 supported files, got %d", added)
	}

	count, _ := store.Count(context.Background())
	if count != 2 {
		t.Fatalf("expected 2 indexed entries, got %d", count)
	}
}

func TestIngestNoLoadableDocumentsSoftFailure(t *testing.T) {
	svc, _ := newTestService(t)

	added, err := svc.Ingest(context.Background(), []string{t.TempDir(), "/does/not/exist"})
	if err != nil {
		t.Fatalf("expected soft failure, got error: %v", err)
	}
	if added != 0 {
		t.Fatalf("expected 0 chunks, got %d", added)
	}
}

func TestIngestCorruptFileDoesNotAbortBatch(t *testing.T) {
	svc, _ := newTestService(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "good.txt"), []byte("Good document text."), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	added, err := svc.Ingest(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected the good file to ingest despite the broken one, got %d chunks", added)
	}
}

func TestIngestReingestReplacesChunks(t *testing.T) {
	svc, store := newTestService(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("Original content here."), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := svc.Ingest(context.Background(), []string{path}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := svc.Ingest(context.Background(), []string{path}); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	count, _ := store.Count(context.Background())
	if count != 1 {
		t.Fatalf("re-ingesting the same file should not duplicate chunks, got %d", count)
	}
}

func TestIngestMissingEmbedder(t *testing.T) {
	store, err := index.OpenFileStore(t.TempDir(), "test-model", testDimension)
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}

	svc := NewService(store, nil, log.New(io.Discard, "", 0), 200, 40)
	if _, err := svc.Ingest(context.Background(), []string{"./does-not-matter"}); err == nil {
		t.Fatal("expected error when embedder is nil")
	}
}
