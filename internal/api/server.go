package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"

	"librag/internal/answer"
	"librag/internal/config"
	"librag/internal/extract"
	"librag/internal/index"
	"librag/internal/models"
	"librag/internal/providers"
	"librag/internal/retrieval"
	"librag/internal/storage"
	"librag/internal/workflows"
)

type Server struct {
	cfg       config.Config
	db        *storage.DB
	libraries *storage.LibraryRepo
	documents *storage.DocumentRepo
	chunks    *storage.ChunkRepo
	convs     *storage.ConversationRepo
	idx       *index.Index
	embedder  *providers.EmbeddingGateway
	retriever *retrieval.Retriever
	composer  *answer.Composer
	parser    *extract.Parser
	temporal  tclient.Client
}

// NewServer wires the HTTP layer over shared infrastructure. The Temporal
// client may be nil; endpoints that need it degrade to synchronous handling
// or report the queue as unavailable.
func NewServer(cfg config.Config, db *storage.DB, idx *index.Index, embedder *providers.EmbeddingGateway, llm *providers.LLMGateway, temporal tclient.Client) *Server {
	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	return &Server{
		cfg:       cfg,
		db:        db,
		libraries: storage.NewLibraryRepo(db),
		documents: docRepo,
		chunks:    chunkRepo,
		convs:     storage.NewConversationRepo(db),
		idx:       idx,
		embedder:  embedder,
		retriever: retrieval.NewRetriever(idx, embedder, chunkRepo, docRepo),
		composer:  answer.NewComposer(llm),
		parser:    extract.NewParser(cfg.ChunkSize, cfg.ChunkOverlap),
		temporal:  temporal,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/libraries", s.handleLibraries)
	mux.HandleFunc("/libraries/", s.handleLibraryScoped)
	return withCORS(mux)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "librag API is running"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"vector_store": s.idx.Stats(),
	})
}

func (s *Server) handleLibraries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listLibraries(w, r)
	case http.MethodPost:
		s.createLibrary(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

// handleLibraryScoped routes everything under /libraries/ by path segments.
func (s *Server) handleLibraryScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/libraries/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}

	switch parts[0] {
	case "rebuild-index":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.rebuildIndex(w, r)
		return
	case "vector-store":
		if len(parts) == 2 && parts[1] == "stats" && r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, s.idx.Stats())
			return
		}
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	case "conversations":
		if len(parts) == 2 {
			s.handleConversation(w, r, parts[1])
			return
		}
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}

	libraryID := parts[0]
	switch {
	case len(parts) == 1:
		s.handleLibrary(w, r, libraryID)
	case len(parts) == 2 && parts[1] == "documents":
		s.handleDocuments(w, r, libraryID)
	case len(parts) == 2 && parts[1] == "chat":
		s.handleChat(w, r, libraryID)
	case len(parts) == 2 && parts[1] == "debug_retrieve":
		s.handleDebugRetrieve(w, r, libraryID)
	case len(parts) == 2 && parts[1] == "conversations":
		s.listConversations(w, r, libraryID)
	case len(parts) == 2 && parts[1] == "ingest":
		s.startIngest(w, r, libraryID)
	case len(parts) == 2 && parts[1] == "progress":
		s.ingestProgress(w, r, libraryID)
	case len(parts) == 3 && parts[1] == "documents":
		s.handleDocument(w, r, libraryID, parts[2])
	case len(parts) == 4 && parts[1] == "pdfs" && parts[3] == "processing-stats":
		s.processingStats(w, r, libraryID, parts[2])
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) listLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := s.libraries.List(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]models.Library, 0, len(libs))
	for _, lib := range libs {
		full, err := s.libraryWithDocuments(r, lib)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, full)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createLibrary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Tags        string `json:"tags"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}

	lib := models.Library{
		LibraryID:   newID(),
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
	}
	if err := s.libraries.Create(r.Context(), lib); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	created, err := s.libraries.GetByID(r.Context(), lib.LibraryID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	created.Documents = []models.Document{}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request, libraryID string) {
	switch r.Method {
	case http.MethodGet:
		lib, err := s.libraries.GetByID(r.Context(), libraryID)
		if err != nil {
			writeRepoErr(w, err)
			return
		}
		full, err := s.libraryWithDocuments(r, lib)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, full)
	case http.MethodDelete:
		if err := s.libraries.Delete(r.Context(), libraryID); err != nil {
			writeRepoErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"detail": "Library deleted"})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) libraryWithDocuments(r *http.Request, lib models.Library) (models.Library, error) {
	docs, err := s.documents.ListByLibrary(r.Context(), lib.LibraryID)
	if err != nil {
		return models.Library{}, err
	}
	for i := range docs {
		chunks, err := s.chunks.ListByDocument(r.Context(), docs[i].DocumentID)
		if err != nil {
			return models.Library{}, err
		}
		docs[i].Chunks = chunks
	}
	lib.Documents = docs
	return lib, nil
}

// rebuildIndex re-derives the vector index from persisted chunks. It runs
// through Temporal when a client is available so retries and visibility come
// for free, and falls back to an in-process rebuild otherwise.
func (s *Server) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	if s.temporal != nil {
		run, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
			ID:        "index-rebuild-" + newID(),
			TaskQueue: s.cfg.TemporalTaskQueue,
		}, workflows.IndexRebuildWorkflow, workflows.IndexRebuildInput{})
		if err == nil {
			if err := run.Get(r.Context(), nil); err != nil {
				writeErr(w, http.StatusInternalServerError, fmt.Errorf("rebuild workflow: %w", err))
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"message": "Vector index rebuilt successfully",
				"stats":   s.idx.Stats(),
			})
			return
		}
		// fall through to a direct rebuild when the queue is unreachable
	}
	source := storage.NewIndexSource(s.chunks, s.documents)
	if err := s.idx.Rebuild(r.Context(), source, s.embedder.EmbedTexts); err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("rebuild index: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Vector index rebuilt successfully",
		"stats":   s.idx.Stats(),
	})
}

// startIngest kicks off background processing of the library's pending
// documents.
func (s *Server) startIngest(w http.ResponseWriter, r *http.Request, libraryID string) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if _, err := s.libraries.GetByID(r.Context(), libraryID); err != nil {
		writeRepoErr(w, err)
		return
	}
	if s.temporal == nil {
		writeErr(w, http.StatusBadGateway, fmt.Errorf("workflow queue unavailable"))
		return
	}
	wfID := "ingest-" + libraryID
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       wfID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.LibraryIngestWorkflow, workflows.LibraryIngestInput{
		LibraryID:    libraryID,
		ChunkSize:    s.cfg.ChunkSize,
		ChunkOverlap: s.cfg.ChunkOverlap,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) ingestProgress(w http.ResponseWriter, r *http.Request, libraryID string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.temporal != nil {
		resp, err := s.temporal.QueryWorkflow(r.Context(), "ingest-"+libraryID, "", workflows.QueryGetIngestProgress)
		if err == nil {
			var prog workflows.LibraryIngestProgress
			if err := resp.Get(&prog); err == nil {
				writeJSON(w, http.StatusOK, prog)
				return
			}
		}
	}
	// no live workflow to query, derive progress from document statuses
	docs, err := s.documents.ListByLibrary(r.Context(), libraryID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	prog := workflows.LibraryIngestProgress{LibraryID: libraryID, PerDocument: map[string]string{}}
	for _, d := range docs {
		prog.Total++
		prog.PerDocument[d.DocumentID] = d.Status
		switch d.Status {
		case workflows.StatusProcessed:
			prog.Done++
		case workflows.StatusFailed:
			prog.Done++
			prog.Failed++
		}
	}
	writeJSON(w, http.StatusOK, prog)
}

func writeRepoErr(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeErr(w, http.StatusInternalServerError, err)
}
