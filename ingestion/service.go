// Package ingestion imports documents into the vector index: it loads files
// by format, chunks their text, embeds the chunks, and upserts the result.
package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fabfab/ragchat/embeddings"
	"github.com/fabfab/ragchat/index"
)

type Service struct {
	store        index.Store
	embedder     embeddings.Embedder
	logger       *log.Logger
	chunkSize    int
	chunkOverlap int
}

func NewService(store index.Store, embedder embeddings.Embedder, logger *log.Logger, chunkSize, chunkOverlap int) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}

	return &Service{
		store:        store,
		embedder:     embedder,
		logger:       logger,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Ingest imports the given files or directories and returns the number of
// chunks added to the index. Per-file failures are logged and skipped; the
// batch is best effort. Zero loadable documents is a soft failure: the
// count is 0 and no error is returned.
func (s *Service) Ingest(ctx context.Context, paths []string) (int, error) {
	if s.embedder == nil {
		return 0, fmt.Errorf("embedder not configured")
	}
	if s.store == nil {
		return 0, fmt.Errorf("vector index not configured")
	}

	files := make([]string, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			s.logger.Printf("skip %s: %v", path, err)
			continue
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		if err := filepath.WalkDir(path, func(entry string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !d.IsDir() {
				files = append(files, entry)
			}
			return nil
		}); err != nil {
			s.logger.Printf("skip directory %s: %v", path, err)
		}
	}

	added := 0
	for _, file := range files {
		count, err := s.ingestFile(ctx, file)
		if err != nil {
			s.logger.Printf("ingest failed for %s: %v", file, err)
			continue
		}
		added += count
	}

	if added == 0 {
		s.logger.Printf("no loadable documents found in %s", strings.Join(paths, ", "))
		return 0, nil
	}

	if err := s.store.Persist(ctx); err != nil {
		return added, fmt.Errorf("persist index: %w", err)
	}

	s.logger.Printf("ingested %d chunks from %d files", added, len(files))
	return added, nil
}

func (s *Service) ingestFile(ctx context.Context, path string) (int, error) {
	if DetectFormat(path) == FormatUnknown {
		s.logger.Printf("skip %s: unsupported extension %s", path, filepath.Ext(path))
		return 0, nil
	}

	content, err := LoadDocument(path)
	if err != nil {
		return 0, fmt.Errorf("load document: %w", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		s.logger.Printf("skip empty document %s", path)
		return 0, nil
	}

	texts := SplitText(content, s.chunkSize, s.chunkOverlap)
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(texts), len(vectors))
	}

	sourcePath := filepath.ToSlash(path)
	entries := make([]index.Entry, len(texts))
	for i, text := range texts {
		entries[i] = index.Entry{
			Vector:     vectors[i],
			Text:       text,
			SourcePath: sourcePath,
			Ordinal:    i,
		}
	}

	if err := s.store.Upsert(ctx, entries); err != nil {
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}

	s.logger.Printf("ingested %s (%d chunks)", sourcePath, len(entries))
	return len(entries), nil
}
