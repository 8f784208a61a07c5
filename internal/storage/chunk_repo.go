package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"librag/internal/models"

	"github.com/jackc/pgx/v5"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx insert chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, document_id, content, page_number, chunk_index, metadata)
VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ChunkID, c.DocumentID, c.Content, c.PageNumber, c.ChunkIndex, meta)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) GetByID(ctx context.Context, chunkID string) (models.Chunk, error) {
	var (
		c    models.Chunk
		meta []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
SELECT chunk_id, document_id, content, page_number, chunk_index, metadata, created_at
FROM chunks
WHERE chunk_id=$1`, chunkID).
		Scan(&c.ChunkID, &c.DocumentID, &c.Content, &c.PageNumber, &c.ChunkIndex, &meta, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Chunk{}, ErrNotFound
	}
	if err != nil {
		return models.Chunk{}, fmt.Errorf("get chunk: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return models.Chunk{}, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}
	}
	return c, nil
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id, document_id, content, page_number, chunk_index, metadata, created_at
FROM chunks
WHERE document_id=$1
ORDER BY page_number ASC, chunk_index ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks by document: %w", err)
	}
	defer rows.Close()

	out := make([]models.Chunk, 0, 64)
	for rows.Next() {
		var (
			c    models.Chunk
			meta []byte
		)
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Content, &c.PageNumber, &c.ChunkIndex, &meta, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &c.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// All streams every chunk in the store, ordered by document then position.
// Used by full index rebuilds.
func (r *ChunkRepo) All(ctx context.Context) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id, document_id, content, page_number, chunk_index, metadata, created_at
FROM chunks
ORDER BY document_id, page_number ASC, chunk_index ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all chunks: %w", err)
	}
	defer rows.Close()

	out := make([]models.Chunk, 0, 256)
	for rows.Next() {
		var (
			c    models.Chunk
			meta []byte
		)
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Content, &c.PageNumber, &c.ChunkIndex, &meta, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &c.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate all chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
