package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fabfab/ragchat/api"
	"github.com/fabfab/ragchat/chat"
	"github.com/fabfab/ragchat/config"
	"github.com/fabfab/ragchat/database"
	"github.com/fabfab/ragchat/embeddings"
	"github.com/fabfab/ragchat/index"
	"github.com/fabfab/ragchat/ingestion"
	"github.com/fabfab/ragchat/llm"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger)
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "search":
		searchCmd(cfg, logger, os.Args[2:])
	case "stats":
		statsCmd(cfg, logger)
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("vector index setup: %v", err)
	}
	defer cleanup()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	retriever := chat.NewRetriever(store, embedder, logger)
	chatSvc := chat.NewService(chat.NewMemoryStore(), retriever, store, llmClient, logger, chat.ServiceOptions{
		RetrievalK:        cfg.RetrievalK,
		GenerationTimeout: cfg.GenerationTimeout,
		EmbeddingModel:    cfg.Embeddings.Model,
	})
	ingestSvc := ingestion.NewService(store, embedder, logger, cfg.ChunkSize, cfg.ChunkOverlap)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.New(chatSvc, ingestSvc, logger).Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s (llm %s/%s, embeddings %s/%s, index %s)",
		cfg.HTTPAddr, cfg.LLM.Provider, cfg.LLM.Model,
		cfg.Embeddings.Provider, cfg.Embeddings.Model, cfg.VectorStore)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	dir := flags.String("dir", cfg.DataDir, "directory or file to ingest when no paths are given")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	paths := flags.Args()
	if len(paths) == 0 {
		paths = []string{*dir}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("vector index setup: %v", err)
	}
	defer cleanup()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	svc := ingestion.NewService(store, embedder, logger, cfg.ChunkSize, cfg.ChunkOverlap)
	added, err := svc.Ingest(ctx, paths)
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}

	logger.Printf("done: %d chunks added", added)
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "question to ask")
	noRAG := flags.Bool("no-rag", false, "skip retrieval and answer from the model alone")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}

	if *question == "" && flags.NArg() > 0 {
		*question = flags.Arg(0)
	}
	if *question == "" {
		logger.Fatal("a question is required (use --question or a positional argument)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("vector index setup: %v", err)
	}
	defer cleanup()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	retriever := chat.NewRetriever(store, embedder, logger)
	svc := chat.NewService(chat.NewMemoryStore(), retriever, store, llmClient, log.New(os.Stderr, "", log.LstdFlags), chat.ServiceOptions{
		RetrievalK:        cfg.RetrievalK,
		GenerationTimeout: cfg.GenerationTimeout,
		EmbeddingModel:    cfg.Embeddings.Model,
	})

	reply, err := svc.ProcessMessageStream(ctx, chat.Request{
		Message: *question,
		UseRAG:  !*noRAG,
	}, func(chunk string) error {
		_, writeErr := fmt.Print(chunk)
		return writeErr
	})
	if err != nil {
		logger.Fatalf("ask failed: %v", err)
	}

	fmt.Println()
	if len(reply.Sources) > 0 {
		fmt.Println()
		fmt.Printf("Used %d retrieved chunks (%.0f ms)\n", len(reply.Sources), reply.ProcessingTimeMS)
	}
}

func searchCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("search", flag.ExitOnError)
	query := flags.String("query", "", "free-text query")
	k := flags.Int("k", cfg.RetrievalK, "number of chunks to return")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse search flags: %v", err)
	}

	if *query == "" && flags.NArg() > 0 {
		*query = flags.Arg(0)
	}
	if *query == "" {
		logger.Fatal("a query is required (use --query or a positional argument)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("vector index setup: %v", err)
	}
	defer cleanup()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	retriever := chat.NewRetriever(store, embedder, log.New(os.Stderr, "", log.LstdFlags))
	results := retriever.Retrieve(ctx, *query, *k)
	if len(results) == 0 {
		fmt.Println("no results")
		return
	}

	for i, text := range results {
		fmt.Printf("%d. %s\n", i+1, text)
	}
}

func statsCmd(cfg config.Config, logger *log.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("vector index setup: %v", err)
	}
	defer cleanup()

	count, err := store.Count(ctx)
	if err != nil {
		logger.Fatalf("index stats: %v", err)
	}

	fmt.Printf("indexed chunks: %d\n", count)
	fmt.Printf("embedding model: %s (dimension %d)\n", cfg.Embeddings.Model, cfg.Embeddings.Dimension)
	fmt.Printf("store: %s\n", cfg.VectorStore)
}

// openStore builds the configured vector index backend. The returned
// cleanup releases backend resources and must be called on exit.
func openStore(ctx context.Context, cfg config.Config, logger *log.Logger) (index.Store, func(), error) {
	switch cfg.VectorStore {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		store, err := index.NewPostgresStore(ctx, pool, cfg.Embeddings.Model, cfg.Embeddings.Dimension)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		store, err := index.OpenFileStore(cfg.VectorDBPath, cfg.Embeddings.Model, cfg.Embeddings.Dimension)
		if err != nil {
			return nil, nil, err
		}
		logger.Printf("opened vector index at %s", cfg.VectorDBPath)
		return store, func() {}, nil
	}
}

func printUsage() {
	fmt.Println("Usage: ragchat <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Start the HTTP API")
	fmt.Println("  ingest   Import documents into the vector index (paths or --dir)")
	fmt.Println("  ask      Ask a single question from the command line")
	fmt.Println("  search   Run a similarity query against the index")
	fmt.Println("  stats    Show vector index statistics")
}
