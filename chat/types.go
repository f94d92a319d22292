package chat

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one conversation message. Immutable once appended.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Request is an inbound user message. UseRAG defaults to true at the
// transport boundary; Context, when supplied by the caller, is used as the
// retrieval context verbatim.
type Request struct {
	Message   string
	SessionID string
	UseRAG    bool
	Context   []string
}

// Reply is the structured answer, including provenance (the retrieved
// chunks, if any were used) and processing latency.
type Reply struct {
	Message          string    `json:"message"`
	SessionID        string    `json:"session_id"`
	Timestamp        time.Time `json:"timestamp"`
	Sources          []string  `json:"sources,omitempty"`
	ProcessingTimeMS float64   `json:"processing_time_ms"`
}

const (
	StatusNotInitialized = "not_initialized"
	StatusActive         = "active"
	StatusError          = "error"
)

type Stats struct {
	TotalDocuments int    `json:"total_documents"`
	Status         string `json:"status"`
	EmbeddingModel string `json:"embedding_model"`
}
