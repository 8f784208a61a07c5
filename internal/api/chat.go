package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"librag/internal/models"
	"librag/internal/retrieval"
	"librag/internal/util"
)

type chatRequest struct {
	Question       string         `json:"question"`
	ConversationID string         `json:"conversation_id,omitempty"`
	MetadataFilter map[string]any `json:"metadata_filter,omitempty"`
	DocumentIDs    []string       `json:"document_ids,omitempty"`
	ResponseLength string         `json:"response_length,omitempty"`
}

type chatResponse struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	ConversationID string   `json:"conversation_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, libraryID string) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}
	if _, err := s.libraries.GetByID(r.Context(), libraryID); err != nil {
		writeRepoErr(w, err)
		return
	}

	chunks, err := s.retriever.Retrieve(r.Context(), req.Question, libraryID, retrieval.Params{
		BatchSize:      s.cfg.RetrievalBatchSize,
		MinRelevant:    s.cfg.RetrievalMinChunks,
		MaxBatches:     s.cfg.RetrievalMaxBatches,
		MetadataFilter: req.MetadataFilter,
		DocumentIDs:    req.DocumentIDs,
		ResponseLength: req.ResponseLength,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("retrieve chunks: %w", err))
		return
	}

	ans := s.composer.Compose(r.Context(), req.Question, chunks, req.ResponseLength)

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = newID()
	}
	s.recordExchange(r, libraryID, conversationID, req.Question, ans.Text, ans.Sources)

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:         ans.Text,
		Sources:        ans.Sources,
		ConversationID: conversationID,
	})
}

// recordExchange persists the question/answer pair. History is best-effort:
// a storage failure logs and the chat response still goes out.
func (s *Server) recordExchange(r *http.Request, libraryID, conversationID, question, answerText string, sources []string) {
	ctx := r.Context()
	exists, err := s.convs.Exists(ctx, conversationID)
	if err != nil {
		log.Error().Err(err).Msg("check conversation")
		return
	}
	if !exists {
		conv := models.Conversation{
			ConversationID: conversationID,
			LibraryID:      libraryID,
			Title:          util.Snippet(question, 80),
		}
		if err := s.convs.Create(ctx, conv); err != nil {
			log.Error().Err(err).Msg("create conversation")
			return
		}
	}
	userMsg := models.Message{
		MessageID:      newID(),
		ConversationID: conversationID,
		Role:           "user",
		Content:        question,
	}
	if err := s.convs.AddMessage(ctx, userMsg); err != nil {
		log.Error().Err(err).Msg("record user message")
		return
	}
	assistantMsg := models.Message{
		MessageID:      newID(),
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        answerText,
		Sources:        sources,
	}
	if err := s.convs.AddMessage(ctx, assistantMsg); err != nil {
		log.Error().Err(err).Msg("record assistant message")
	}
}

// handleDebugRetrieve exposes raw retrieval output for tuning. The n query
// parameter caps how many chunks come back (default 10, single batch).
func (s *Server) handleDebugRetrieve(w http.ResponseWriter, r *http.Request, libraryID string) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			n = v
		}
	}

	chunks, err := s.retriever.Retrieve(r.Context(), req.Question, libraryID, retrieval.Params{
		BatchSize:      n,
		MinRelevant:    n,
		MaxBatches:     1,
		MetadataFilter: req.MetadataFilter,
		DocumentIDs:    req.DocumentIDs,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, map[string]any{
			"document_name":   c.DocumentName,
			"page_number":     c.PageNumber,
			"chunk_index":     c.ChunkIndex,
			"content":         util.Snippet(c.Content, 500),
			"metadata":        c.Metadata,
			"relevance_score": c.RelevanceScore,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request, libraryID string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	convs, err := s.convs.ListByLibrary(r.Context(), libraryID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request, conversationID string) {
	switch r.Method {
	case http.MethodGet:
		conv, err := s.convs.GetByID(r.Context(), conversationID)
		if err != nil {
			writeRepoErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	case http.MethodDelete:
		if err := s.convs.Delete(r.Context(), conversationID); err != nil {
			writeRepoErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"detail": "Conversation deleted"})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}
