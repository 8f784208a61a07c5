package storage

import (
	"context"
	"errors"
	"fmt"

	"librag/internal/models"

	"github.com/jackc/pgx/v5"
)

type LibraryRepo struct {
	db *DB
}

func NewLibraryRepo(db *DB) *LibraryRepo {
	return &LibraryRepo{db: db}
}

func (r *LibraryRepo) Create(ctx context.Context, lib models.Library) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO libraries (library_id, name, description, tags)
VALUES ($1, $2, $3, $4)`,
		lib.LibraryID, lib.Name, lib.Description, lib.Tags)
	if err != nil {
		return fmt.Errorf("insert library: %w", err)
	}
	return nil
}

func (r *LibraryRepo) List(ctx context.Context) ([]models.Library, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT library_id, name, description, tags, created_at
FROM libraries
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	out := make([]models.Library, 0)
	for rows.Next() {
		var l models.Library
		if err := rows.Scan(&l.LibraryID, &l.Name, &l.Description, &l.Tags, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan library: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate libraries: %w", err)
	}
	return out, nil
}

func (r *LibraryRepo) GetByID(ctx context.Context, libraryID string) (models.Library, error) {
	var l models.Library
	err := r.db.Pool.QueryRow(ctx, `
SELECT library_id, name, description, tags, created_at
FROM libraries
WHERE library_id=$1`, libraryID).
		Scan(&l.LibraryID, &l.Name, &l.Description, &l.Tags, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Library{}, ErrNotFound
	}
	if err != nil {
		return models.Library{}, fmt.Errorf("get library: %w", err)
	}
	return l, nil
}

// Delete removes the library. Documents, chunks and conversations go with it
// via ON DELETE CASCADE.
func (r *LibraryRepo) Delete(ctx context.Context, libraryID string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM libraries WHERE library_id=$1`, libraryID)
	if err != nil {
		return fmt.Errorf("delete library: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
