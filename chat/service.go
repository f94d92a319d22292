// Package chat coordinates the conversation pipeline: optional retrieval,
// prompt assembly, generation, and session bookkeeping.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fabfab/ragchat/index"
	"github.com/fabfab/ragchat/llm"
)

// ErrSessionNotFound signals an operation against an absent session.
// Callers treat it as empty state, not corruption.
var ErrSessionNotFound = errors.New("chat: session not found")

type Service struct {
	sessions  SessionStore
	retriever *Retriever
	store     index.Store
	llm       llm.Client
	logger    *log.Logger

	retrievalK        int
	generationTimeout time.Duration
	embeddingModel    string
}

type ServiceOptions struct {
	RetrievalK        int
	GenerationTimeout time.Duration
	EmbeddingModel    string
}

func NewService(sessions SessionStore, retriever *Retriever, store index.Store, llmClient llm.Client, logger *log.Logger, opts ServiceOptions) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = defaultRetrievalK
	}

	return &Service{
		sessions:          sessions,
		retriever:         retriever,
		store:             store,
		llm:               llmClient,
		logger:            logger,
		retrievalK:        opts.RetrievalK,
		generationTimeout: opts.GenerationTimeout,
		embeddingModel:    opts.EmbeddingModel,
	}
}

// ProcessMessage runs one message through the pipeline and returns the
// structured reply. The transcript is updated only after generation
// succeeds, so a failed request never leaves half-written turns.
func (s *Service) ProcessMessage(ctx context.Context, req Request) (Reply, error) {
	return s.process(ctx, req, nil)
}

// ProcessMessageStream behaves like ProcessMessage but forwards generated
// text incrementally when the configured client supports streaming. The
// callback receives the full answer once otherwise.
func (s *Service) ProcessMessageStream(ctx context.Context, req Request, streamFn func(string) error) (Reply, error) {
	return s.process(ctx, req, streamFn)
}

func (s *Service) process(ctx context.Context, req Request, streamFn func(string) error) (Reply, error) {
	start := time.Now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Reply{}, fmt.Errorf("message cannot be empty")
	}
	if s.llm == nil {
		return Reply{}, fmt.Errorf("llm client is not configured")
	}
	if s.sessions == nil {
		return Reply{}, fmt.Errorf("session store is not configured")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// Caller-supplied context wins; retrieval runs only when RAG is
	// requested and no context was provided.
	sources := req.Context
	if len(sources) == 0 && req.UseRAG && s.retriever != nil {
		sources = s.retriever.Retrieve(ctx, message, s.retrievalK)
	}

	var messages []llm.Message
	if len(sources) > 0 {
		messages = []llm.Message{
			{Role: llm.RoleSystem, Content: contextPrompt(sources)},
			{Role: llm.RoleUser, Content: message},
		}
	} else {
		history, _ := s.sessions.History(sessionID)
		messages = make([]llm.Message, 0, len(history)+1)
		for _, turn := range history {
			messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
		}
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	}

	answer, err := s.generate(ctx, messages, streamFn)
	if err != nil {
		s.logger.Printf("generation failed for session %s: %v", sessionID, err)
		return Reply{}, fmt.Errorf("generate response: %w", err)
	}
	answer = strings.TrimSpace(answer)

	now := time.Now()
	s.sessions.Append(sessionID,
		Turn{Role: RoleUser, Content: message, Timestamp: start},
		Turn{Role: RoleAssistant, Content: answer, Timestamp: now},
	)

	elapsed := time.Since(start)
	s.logger.Printf("processed message for session %s in %s", sessionID, elapsed.Round(time.Millisecond))

	return Reply{
		Message:          answer,
		SessionID:        sessionID,
		Timestamp:        now,
		Sources:          sources,
		ProcessingTimeMS: float64(elapsed) / float64(time.Millisecond),
	}, nil
}

func (s *Service) generate(ctx context.Context, messages []llm.Message, streamFn func(string) error) (string, error) {
	if s.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.generationTimeout)
		defer cancel()
	}

	if streamFn != nil {
		if streamClient, ok := s.llm.(llm.StreamClient); ok {
			var builder strings.Builder
			err := streamClient.GenerateStream(ctx, messages, func(chunk string) error {
				if chunk == "" {
					return nil
				}
				builder.WriteString(chunk)
				return streamFn(chunk)
			})
			if err != nil {
				return "", err
			}
			return builder.String(), nil
		}

		answer, err := s.llm.Generate(ctx, messages)
		if err != nil {
			return "", err
		}
		if err := streamFn(answer); err != nil {
			return "", err
		}
		return answer, nil
	}

	return s.llm.Generate(ctx, messages)
}

// History returns the transcript for a session. Absent sessions yield
// ErrSessionNotFound.
func (s *Service) History(sessionID string) ([]Turn, error) {
	transcript, ok := s.sessions.History(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return transcript, nil
}

// ClearHistory removes a session's transcript. Absent sessions yield
// ErrSessionNotFound.
func (s *Service) ClearHistory(sessionID string) error {
	if !s.sessions.Clear(sessionID) {
		return ErrSessionNotFound
	}
	return nil
}

// Search runs a direct similarity query, bypassing conversation state.
func (s *Service) Search(ctx context.Context, query string, k int) []string {
	if s.retriever == nil {
		return nil
	}
	return s.retriever.Retrieve(ctx, query, k)
}

// Stats reports index size and health for operational visibility.
func (s *Service) Stats(ctx context.Context) Stats {
	if s.store == nil {
		return Stats{Status: StatusNotInitialized}
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Printf("index stats: %v", err)
		return Stats{Status: StatusError, EmbeddingModel: s.embeddingModel}
	}

	return Stats{
		TotalDocuments: count,
		Status:         StatusActive,
		EmbeddingModel: s.embeddingModel,
	}
}

func contextPrompt(context []string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful AI assistant. Use the following context to answer the user's question:\n\n")
	sb.WriteString(strings.Join(context, "\n"))
	sb.WriteString("\n\nIf the context doesn't contain relevant information, please say so politely.")
	return sb.String()
}
