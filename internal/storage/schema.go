package storage

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS libraries (
	library_id   TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	tags         TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS documents (
	document_id  TEXT PRIMARY KEY,
	library_id   TEXT NOT NULL REFERENCES libraries(library_id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	tags         TEXT NOT NULL DEFAULT '',
	toc          JSONB,
	status       TEXT NOT NULL DEFAULT 'processed',
	fail_reason  TEXT NOT NULL DEFAULT '',
	upload_date  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS chunks (
	chunk_id     TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
	content      TEXT NOT NULL,
	page_number  INT NOT NULL,
	chunk_index  INT NOT NULL,
	metadata     JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`,
	`CREATE TABLE IF NOT EXISTS conversations (
	conversation_id TEXT PRIMARY KEY,
	library_id      TEXT NOT NULL REFERENCES libraries(library_id) ON DELETE CASCADE,
	title           TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS messages (
	message_id      TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	sources         TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
}

// EnsureSchema creates the tables on startup. All foreign keys cascade so that
// deleting a library removes its documents, chunks and conversation history.
func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
