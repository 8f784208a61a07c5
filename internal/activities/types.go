package activities

import (
	"librag/internal/index"
	"librag/internal/models"
)

type ListPendingDocumentsInput struct {
	LibraryID string `json:"library_id"`
}

type PendingDocument struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
}

type ListPendingDocumentsOutput struct {
	Documents []PendingDocument `json:"documents"`
}

type ParseDocumentInput struct {
	Path         string `json:"path"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type ParsedChunk struct {
	Content    string               `json:"content"`
	PageNumber int                  `json:"page_number"`
	ChunkIndex int                  `json:"chunk_index"`
	Metadata   models.ChunkMetadata `json:"metadata,omitempty"`
}

type ParseDocumentOutput struct {
	TOC    []models.TOCItem `json:"toc,omitempty"`
	Chunks []ParsedChunk    `json:"chunks"`
	Pages  int              `json:"pages"`
}

type SaveChunksInput struct {
	LibraryID  string           `json:"library_id"`
	DocumentID string           `json:"document_id"`
	TOC        []models.TOCItem `json:"toc,omitempty"`
	Chunks     []ParsedChunk    `json:"chunks"`
}

type SaveChunksOutput struct {
	Locators []index.Locator `json:"locators"`
}

type EmbedChunksInput struct {
	Texts []string `json:"texts"`
}

type EmbedChunksOutput struct {
	Vectors [][]float32 `json:"vectors"`
}

type IndexChunksInput struct {
	Locators []index.Locator `json:"locators"`
	Vectors  [][]float32     `json:"vectors"`
}

type UpdateDocumentStatusInput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
}

type RebuildIndexInput struct{}

type RebuildIndexOutput struct {
	TotalEmbeddings int `json:"total_embeddings"`
}
