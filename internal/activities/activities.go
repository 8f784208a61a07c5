// Package activities holds the Temporal activity implementations for
// document ingest and index maintenance.
package activities

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"librag/internal/config"
	"librag/internal/extract"
	"librag/internal/index"
	"librag/internal/models"
	"librag/internal/providers"
	"librag/internal/storage"
)

type Activities struct {
	cfg      config.Config
	docRepo  *storage.DocumentRepo
	chunks   *storage.ChunkRepo
	parser   *extract.Parser
	embedder *providers.EmbeddingGateway
	idx      *index.Index
	source   *storage.IndexSource
}

func New(cfg config.Config, db *storage.DB, embedder *providers.EmbeddingGateway, idx *index.Index) *Activities {
	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	return &Activities{
		cfg:      cfg,
		docRepo:  docRepo,
		chunks:   chunkRepo,
		parser:   extract.NewParser(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder: embedder,
		idx:      idx,
		source:   storage.NewIndexSource(chunkRepo, docRepo),
	}
}

// DocumentPath is where an uploaded PDF lives on disk.
func DocumentPath(dataRoot, libraryID, documentID string) string {
	return filepath.Join(dataRoot, libraryID, documentID+".pdf")
}

func (a *Activities) ListPendingDocumentsActivity(ctx context.Context, in ListPendingDocumentsInput) (ListPendingDocumentsOutput, error) {
	docs, err := a.docRepo.ListPendingByLibrary(ctx, in.LibraryID)
	if err != nil {
		return ListPendingDocumentsOutput{}, err
	}
	out := ListPendingDocumentsOutput{Documents: make([]PendingDocument, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, PendingDocument{
			DocumentID: d.DocumentID,
			Name:       d.Name,
			Path:       DocumentPath(a.cfg.DataRoot, in.LibraryID, d.DocumentID),
		})
	}
	return out, nil
}

func (a *Activities) ParseDocumentActivity(ctx context.Context, in ParseDocumentInput) (ParseDocumentOutput, error) {
	_ = ctx
	parser := a.parser
	if in.ChunkSize > 0 {
		parser = extract.NewParser(in.ChunkSize, in.ChunkOverlap)
	}
	res, err := parser.Parse(in.Path)
	if err != nil {
		return ParseDocumentOutput{}, fmt.Errorf("parse document: %w", err)
	}
	out := ParseDocumentOutput{TOC: res.TOC, Pages: res.Pages, Chunks: make([]ParsedChunk, 0, len(res.Chunks))}
	for _, c := range res.Chunks {
		out.Chunks = append(out.Chunks, ParsedChunk{
			Content:    c.Content,
			PageNumber: c.PageNumber,
			ChunkIndex: c.ChunkIndex,
			Metadata:   c.Metadata,
		})
	}
	return out, nil
}

func (a *Activities) SaveChunksActivity(ctx context.Context, in SaveChunksInput) (SaveChunksOutput, error) {
	if len(in.TOC) > 0 {
		if err := a.docRepo.SetTOC(ctx, in.DocumentID, in.TOC); err != nil {
			return SaveChunksOutput{}, err
		}
	}
	rows := make([]models.Chunk, 0, len(in.Chunks))
	locators := make([]index.Locator, 0, len(in.Chunks))
	for _, c := range in.Chunks {
		chunkID := uuid.NewString()
		rows = append(rows, models.Chunk{
			ChunkID:    chunkID,
			DocumentID: in.DocumentID,
			Content:    c.Content,
			PageNumber: c.PageNumber,
			ChunkIndex: c.ChunkIndex,
			Metadata:   c.Metadata,
		})
		locators = append(locators, index.Locator{
			LibraryID:  in.LibraryID,
			DocumentID: in.DocumentID,
			ChunkID:    chunkID,
			PageNumber: c.PageNumber,
			ChunkIndex: c.ChunkIndex,
		})
	}
	if err := a.chunks.InsertChunks(ctx, rows); err != nil {
		return SaveChunksOutput{}, err
	}
	return SaveChunksOutput{Locators: locators}, nil
}

func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	vecs, err := a.embedder.EmbedTexts(ctx, in.Texts)
	if err != nil {
		return EmbedChunksOutput{}, err
	}
	return EmbedChunksOutput{Vectors: vecs}, nil
}

func (a *Activities) IndexChunksActivity(ctx context.Context, in IndexChunksInput) error {
	_ = ctx
	return a.idx.Add(in.Vectors, in.Locators)
}

func (a *Activities) UpdateDocumentStatusActivity(ctx context.Context, in UpdateDocumentStatusInput) error {
	err := a.docRepo.UpdateStatus(ctx, in.DocumentID, in.Status, in.FailReason)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func (a *Activities) RebuildIndexActivity(ctx context.Context, in RebuildIndexInput) (RebuildIndexOutput, error) {
	_ = in
	if err := a.idx.Rebuild(ctx, a.source, a.embedder.EmbedTexts); err != nil {
		return RebuildIndexOutput{}, err
	}
	return RebuildIndexOutput{TotalEmbeddings: a.idx.Stats().TotalEmbeddings}, nil
}
