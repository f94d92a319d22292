package chat

import (
	"context"
	"log"

	"github.com/fabfab/ragchat/embeddings"
	"github.com/fabfab/ragchat/index"
)

const defaultRetrievalK = 3

// Retriever answers free-text queries with the texts of the most similar
// indexed chunks. Retrieval is advisory: any failure (embedding, search,
// empty index) degrades to an empty result, never an error.
type Retriever struct {
	store    index.Store
	embedder embeddings.Embedder
	logger   *log.Logger
}

func NewRetriever(store index.Store, embedder embeddings.Embedder, logger *log.Logger) *Retriever {
	if logger == nil {
		logger = log.Default()
	}
	return &Retriever{store: store, embedder: embedder, logger: logger}
}

// Retrieve returns the top-k chunk texts for the query, most similar first.
// Metadata is dropped at this boundary.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) []string {
	if r.store == nil || r.embedder == nil {
		return nil
	}
	if k <= 0 {
		k = defaultRetrievalK
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		r.logger.Printf("retrieval: embed query: %v", err)
		return nil
	}
	if len(vectors) == 0 {
		r.logger.Printf("retrieval: embedder returned no vectors")
		return nil
	}

	results, err := r.store.Search(ctx, vectors[0], k)
	if err != nil {
		r.logger.Printf("retrieval: vector search: %v", err)
		return nil
	}

	texts := make([]string, 0, len(results))
	for _, result := range results {
		texts = append(texts, result.Entry.Text)
	}
	return texts
}
