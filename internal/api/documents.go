package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"librag/internal/activities"
	"librag/internal/extract"
	"librag/internal/index"
	"librag/internal/models"
	"librag/internal/util"
)

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request, libraryID string) {
	switch r.Method {
	case http.MethodGet:
		s.listDocuments(w, r, libraryID)
	case http.MethodPost:
		s.uploadDocument(w, r, libraryID)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request, libraryID string) {
	docs, err := s.documents.ListByLibrary(r.Context(), libraryID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	for i := range docs {
		chunks, err := s.chunks.ListByDocument(r.Context(), docs[i].DocumentID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		docs[i].Chunks = chunks
	}
	writeJSON(w, http.StatusOK, docs)
}

// uploadDocument accepts one PDF. By default the document is parsed,
// embedded, and indexed before the response; with async=true it is stored as
// pending for the ingest workflow to pick up.
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request, libraryID string) {
	if _, err := s.libraries.GetByID(r.Context(), libraryID); err != nil {
		writeRepoErr(w, err)
		return
	}

	maxBytes := int64(s.cfg.MaxPDFSizeMB) << 20
	if err := r.ParseMultipartForm(maxBytes + (1 << 20)); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	file, fh, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("file is required: %w", err))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("only pdf files are supported"))
		return
	}
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/pdf" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("only pdf files are supported"))
		return
	}
	if fh.Size > maxBytes {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("pdf file too large (>%dMB)", s.cfg.MaxPDFSizeMB))
		return
	}

	docID := newID()
	path := activities.DocumentPath(s.cfg.DataRoot, libraryID, docID)
	if err := savePDF(path, file); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	doc := models.Document{
		DocumentID: docID,
		LibraryID:  libraryID,
		Name:       filepath.Base(fh.Filename),
	}

	if r.URL.Query().Get("async") == "true" || r.FormValue("async") == "true" {
		doc.Status = "pending"
		if err := s.documents.Create(r.Context(), doc); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		created, err := s.documents.GetByID(r.Context(), docID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusAccepted, created)
		return
	}

	res, err := s.parser.Parse(path)
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, extract.ErrNoExtractableText) {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("process pdf: %w", err))
		return
	}

	texts := make([]string, 0, len(res.Chunks))
	for _, c := range res.Chunks {
		texts = append(texts, c.Content)
	}
	vectors, err := s.embedder.EmbedTexts(r.Context(), texts)
	if err != nil {
		_ = os.Remove(path)
		writeErr(w, http.StatusBadGateway, fmt.Errorf("embed chunks: %w", err))
		return
	}

	doc.TOC = res.TOC
	doc.Status = "processed"
	if err := s.documents.Create(r.Context(), doc); err != nil {
		_ = os.Remove(path)
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	rows := make([]models.Chunk, 0, len(res.Chunks))
	locators := make([]index.Locator, 0, len(res.Chunks))
	for _, c := range res.Chunks {
		chunkID := newID()
		rows = append(rows, models.Chunk{
			ChunkID:    chunkID,
			DocumentID: docID,
			Content:    c.Content,
			PageNumber: c.PageNumber,
			ChunkIndex: c.ChunkIndex,
			Metadata:   c.Metadata,
		})
		locators = append(locators, index.Locator{
			LibraryID:  libraryID,
			DocumentID: docID,
			ChunkID:    chunkID,
			PageNumber: c.PageNumber,
			ChunkIndex: c.ChunkIndex,
		})
	}
	if err := s.chunks.InsertChunks(r.Context(), rows); err != nil {
		markDocumentFailed(r.Context(), s.documents, docID, "failed to store chunks")
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.idx.Add(vectors, locators); err != nil {
		markDocumentFailed(r.Context(), s.documents, docID, "failed to index chunks")
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("index chunks: %w", err))
		return
	}

	created, err := s.documents.GetByID(r.Context(), docID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type statusSetter interface {
	UpdateStatus(ctx context.Context, documentID, status, failReason string) error
}

// markDocumentFailed flips a partially ingested document to failed so it is
// never served as processed with no chunks behind it. The stored PDF stays
// for a later re-ingest, matching the workflow failure path.
func markDocumentFailed(ctx context.Context, docs statusSetter, documentID, reason string) {
	if err := docs.UpdateStatus(ctx, documentID, "failed", reason); err != nil {
		log.Error().Err(err).Str("document_id", documentID).Msg("failed to mark document failed")
	}
}

func savePDF(path string, src multipart.File) error {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "upload-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("atomic move upload: %w", err)
	}
	return nil
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request, libraryID, documentID string) {
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Name string `json:"name"`
			Tags string `json:"tags"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		if err := s.documents.UpdateMeta(r.Context(), libraryID, documentID, strings.TrimSpace(req.Name), req.Tags); err != nil {
			writeRepoErr(w, err)
			return
		}
		doc, err := s.documents.GetInLibrary(r.Context(), libraryID, documentID)
		if err != nil {
			writeRepoErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"detail": "Document updated", "document": doc})
	case http.MethodDelete:
		if err := s.documents.Delete(r.Context(), libraryID, documentID); err != nil {
			writeRepoErr(w, err)
			return
		}
		// stale index entries for this document are skipped at retrieval time
		_ = os.Remove(activities.DocumentPath(s.cfg.DataRoot, libraryID, documentID))
		writeJSON(w, http.StatusOK, map[string]any{"detail": "Document deleted"})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

// processingStats summarizes what extraction produced for one document.
func (s *Server) processingStats(w http.ResponseWriter, r *http.Request, libraryID, documentID string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	doc, err := s.documents.GetInLibrary(r.Context(), libraryID, documentID)
	if err != nil {
		writeRepoErr(w, err)
		return
	}
	chunks, err := s.chunks.ListByDocument(r.Context(), documentID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	totalPages := 0
	textChunks := 0
	tableChunks := 0
	totalTextLength := 0
	headings := map[string]bool{}
	tocTitles := map[string]bool{}
	for _, c := range chunks {
		if c.PageNumber > totalPages {
			totalPages = c.PageNumber
		}
		if c.Metadata.IsTable() {
			tableChunks++
		} else {
			textChunks++
			totalTextLength += len(c.Content)
		}
		if h := c.Metadata.Heading(); h != "" {
			headings[h] = true
		}
		if t := c.Metadata.TOCTitle(); t != "" {
			tocTitles[t] = true
		}
	}
	avgChunkLength := 0.0
	if textChunks > 0 {
		avgChunkLength = float64(totalTextLength) / float64(textChunks)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":          documentID,
		"name":                 doc.Name,
		"total_pages":          totalPages,
		"total_chunks":         len(chunks),
		"text_chunks":          textChunks,
		"table_chunks":         tableChunks,
		"total_text_length":    totalTextLength,
		"average_chunk_length": avgChunkLength,
		"unique_headings":      len(headings),
		"unique_toc_sections":  len(tocTitles),
		"processing_quality": map[string]any{
			"has_toc":                  len(doc.TOC) > 0,
			"has_tags":                 doc.Tags != "",
			"text_extraction_success":  totalTextLength > 0,
			"table_extraction_success": tableChunks > 0,
		},
	})
}
