package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"librag/internal/models"

	"github.com/jackc/pgx/v5"
)

type ConversationRepo struct {
	db *DB
}

func NewConversationRepo(db *DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Create(ctx context.Context, conv models.Conversation) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO conversations (conversation_id, library_id, title)
VALUES ($1, $2, $3)`,
		conv.ConversationID, conv.LibraryID, conv.Title)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepo) Exists(ctx context.Context, conversationID string) (bool, error) {
	var one int
	err := r.db.Pool.QueryRow(ctx, `
SELECT 1 FROM conversations WHERE conversation_id=$1`, conversationID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check conversation: %w", err)
	}
	return true, nil
}

func (r *ConversationRepo) AddMessage(ctx context.Context, msg models.Message) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx add message: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
INSERT INTO messages (message_id, conversation_id, role, content, sources)
VALUES ($1, $2, $3, $4, $5)`,
		msg.MessageID, msg.ConversationID, msg.Role, msg.Content, strings.Join(msg.Sources, ","))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	_, err = tx.Exec(ctx, `
UPDATE conversations SET updated_at=NOW() WHERE conversation_id=$1`, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit message tx: %w", err)
	}
	return nil
}

func (r *ConversationRepo) ListByLibrary(ctx context.Context, libraryID string) ([]models.Conversation, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT conversation_id, library_id, title, created_at, updated_at
FROM conversations
WHERE library_id=$1
ORDER BY updated_at DESC`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]models.Conversation, 0)
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ConversationID, &c.LibraryID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	for i := range out {
		msgs, err := r.listMessages(ctx, out[i].ConversationID)
		if err != nil {
			return nil, err
		}
		out[i].Messages = msgs
	}
	return out, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, conversationID string) (models.Conversation, error) {
	var c models.Conversation
	err := r.db.Pool.QueryRow(ctx, `
SELECT conversation_id, library_id, title, created_at, updated_at
FROM conversations
WHERE conversation_id=$1`, conversationID).
		Scan(&c.ConversationID, &c.LibraryID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Conversation{}, ErrNotFound
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	msgs, err := r.listMessages(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	c.Messages = msgs
	return c, nil
}

func (r *ConversationRepo) Delete(ctx context.Context, conversationID string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM conversations WHERE conversation_id=$1`, conversationID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConversationRepo) listMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT message_id, conversation_id, role, content, sources, created_at
FROM messages
WHERE conversation_id=$1
ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]models.Message, 0)
	for rows.Next() {
		var (
			m       models.Message
			sources string
		)
		if err := rows.Scan(&m.MessageID, &m.ConversationID, &m.Role, &m.Content, &sources, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if sources != "" {
			m.Sources = strings.Split(sources, ",")
		} else {
			m.Sources = []string{}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}
