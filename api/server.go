// Package api exposes the HTTP transport for the chat and ingestion
// workflows. It is a thin boundary: request decoding, response shaping, and
// status mapping only.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fabfab/ragchat/chat"
	"github.com/fabfab/ragchat/ingestion"
)

type Server struct {
	chatSvc   *chat.Service
	ingestSvc *ingestion.Service
	logger    *log.Logger
	handler   http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type chatMessageRequest struct {
	Message   string   `json:"message"`
	SessionID string   `json:"session_id"`
	UseRAG    *bool    `json:"use_rag"`
	Context   []string `json:"context"`
}

type ingestResponse struct {
	Message     string `json:"message"`
	ChunksAdded int    `json:"chunks_added"`
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResponse struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
	Count   int      `json:"count"`
}

func New(chatSvc *chat.Service, ingestSvc *ingestion.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{chatSvc: chatSvc, ingestSvc: ingestSvc, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/chat/message", s.handleChatMessage)
	mux.HandleFunc("/api/v1/chat/history/", s.handleHistory)
	mux.HandleFunc("/api/v1/rag/documents", s.handleAddDocuments)
	mux.HandleFunc("/api/v1/rag/stats", s.handleStats)
	mux.HandleFunc("/api/v1/rag/search", s.handleSearch)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req chatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("message is required"))
		return
	}

	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}

	reply, err := s.chatSvc.ProcessMessage(r.Context(), chat.Request{
		Message:   req.Message,
		SessionID: req.SessionID,
		UseRAG:    useRAG,
		Context:   req.Context,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("process message: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/v1/chat/history/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("session id is required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		transcript, err := s.chatSvc.History(sessionID)
		if errors.Is(err, chat.ErrSessionNotFound) {
			// Absent sessions read as empty, not as failures.
			transcript = []chat.Turn{}
		}
		s.writeJSON(w, http.StatusOK, transcript)
	case http.MethodDelete:
		if err := s.chatSvc.ClearHistory(sessionID); err != nil {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("session not found"))
			return
		}
		s.writeJSON(w, http.StatusOK, messageResponse{Message: "conversation history cleared"})
	default:
		s.methodNotAllowed(w, http.MethodGet+", "+http.MethodDelete)
	}
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	tempPaths := make([]string, 0, len(files))
	defer func() {
		for _, path := range tempPaths {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Printf("remove temp file %s: %v", path, err)
			}
		}
	}()

	for _, header := range files {
		path, err := saveUpload(header)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Errorf("save upload %s: %w", header.Filename, err))
			return
		}
		tempPaths = append(tempPaths, path)
	}

	added, err := s.ingestSvc.Ingest(r.Context(), tempPaths)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("ingest documents: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, ingestResponse{
		Message:     fmt.Sprintf("successfully added %d documents", len(files)),
		ChunksAdded: added,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, s.chatSvc.Stats(r.Context()))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}

	results := s.chatSvc.Search(r.Context(), req.Query, req.K)
	s.writeJSON(w, http.StatusOK, searchResponse{
		Query:   req.Query,
		Results: results,
		Count:   len(results),
	})
}

// saveUpload writes one uploaded file to a temp path, keeping the original
// extension so format detection still works. The caller owns the temp file.
func saveUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return dst.Name(), nil
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
