package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"librag/internal/models"

	"github.com/jackc/pgx/v5"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc models.Document) error {
	toc, err := json.Marshal(doc.TOC)
	if err != nil {
		return fmt.Errorf("marshal toc: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, library_id, name, tags, toc, status, fail_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.DocumentID, doc.LibraryID, doc.Name, doc.Tags, toc, statusOrDefault(doc.Status), doc.FailReason)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, documentID string) (models.Document, error) {
	var (
		d   models.Document
		toc []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_id, library_id, name, tags, toc, status, fail_reason, upload_date
FROM documents
WHERE document_id=$1`, documentID).
		Scan(&d.DocumentID, &d.LibraryID, &d.Name, &d.Tags, &toc, &d.Status, &d.FailReason, &d.UploadDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	if len(toc) > 0 {
		if err := json.Unmarshal(toc, &d.TOC); err != nil {
			return models.Document{}, fmt.Errorf("unmarshal toc: %w", err)
		}
	}
	return d, nil
}

// GetInLibrary is GetByID scoped to a library, for handlers that must not leak
// documents across libraries.
func (r *DocumentRepo) GetInLibrary(ctx context.Context, libraryID, documentID string) (models.Document, error) {
	d, err := r.GetByID(ctx, documentID)
	if err != nil {
		return models.Document{}, err
	}
	if d.LibraryID != libraryID {
		return models.Document{}, ErrNotFound
	}
	return d, nil
}

func (r *DocumentRepo) ListByLibrary(ctx context.Context, libraryID string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id, library_id, name, tags, toc, status, fail_reason, upload_date
FROM documents
WHERE library_id=$1
ORDER BY upload_date DESC`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		var (
			d   models.Document
			toc []byte
		)
		if err := rows.Scan(&d.DocumentID, &d.LibraryID, &d.Name, &d.Tags, &toc, &d.Status, &d.FailReason, &d.UploadDate); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if len(toc) > 0 {
			if err := json.Unmarshal(toc, &d.TOC); err != nil {
				return nil, fmt.Errorf("unmarshal toc: %w", err)
			}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// ListPendingByLibrary returns uploaded documents that have not been processed
// yet, in upload order. Used by the ingest workflow.
func (r *DocumentRepo) ListPendingByLibrary(ctx context.Context, libraryID string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id, library_id, name, tags, status, fail_reason, upload_date
FROM documents
WHERE library_id=$1 AND status='pending'
ORDER BY upload_date ASC`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list pending documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.DocumentID, &d.LibraryID, &d.Name, &d.Tags, &d.Status, &d.FailReason, &d.UploadDate); err != nil {
			return nil, fmt.Errorf("scan pending document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DocumentRepo) UpdateMeta(ctx context.Context, libraryID, documentID, name, tags string) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE documents
SET name = COALESCE(NULLIF($3,''), name),
    tags = $4
WHERE library_id=$1 AND document_id=$2`, libraryID, documentID, name, tags)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, documentID, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE documents SET status=$2, fail_reason=$3 WHERE document_id=$1`, documentID, status, failReason)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (r *DocumentRepo) SetTOC(ctx context.Context, documentID string, toc []models.TOCItem) error {
	b, err := json.Marshal(toc)
	if err != nil {
		return fmt.Errorf("marshal toc: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `UPDATE documents SET toc=$2 WHERE document_id=$1`, documentID, b)
	if err != nil {
		return fmt.Errorf("set document toc: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, libraryID, documentID string) error {
	tag, err := r.db.Pool.Exec(ctx, `
DELETE FROM documents WHERE library_id=$1 AND document_id=$2`, libraryID, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func statusOrDefault(s string) string {
	if s == "" {
		return "processed"
	}
	return s
}
