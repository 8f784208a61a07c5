package storage

import (
	"context"
	"errors"

	"librag/internal/index"
)

// IndexSource adapts the chunk and document repositories to the rebuild
// contract of the vector index.
type IndexSource struct {
	chunks *ChunkRepo
	docs   *DocumentRepo
}

func NewIndexSource(chunks *ChunkRepo, docs *DocumentRepo) *IndexSource {
	return &IndexSource{chunks: chunks, docs: docs}
}

func (s *IndexSource) AllChunks(ctx context.Context) ([]index.SourceChunk, error) {
	rows, err := s.chunks.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]index.SourceChunk, 0, len(rows))
	for _, c := range rows {
		out = append(out, index.SourceChunk{
			DocumentID: c.DocumentID,
			ChunkID:    c.ChunkID,
			Content:    c.Content,
			PageNumber: c.PageNumber,
			ChunkIndex: c.ChunkIndex,
		})
	}
	return out, nil
}

func (s *IndexSource) Document(ctx context.Context, documentID string) (index.SourceDocument, bool, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return index.SourceDocument{}, false, nil
		}
		return index.SourceDocument{}, false, err
	}
	return index.SourceDocument{LibraryID: doc.LibraryID, Name: doc.Name}, true, nil
}
