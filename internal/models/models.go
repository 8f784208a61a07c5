package models

import "time"

type Library struct {
	LibraryID   string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Tags        string     `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Documents   []Document `json:"documents"`
}

type Document struct {
	DocumentID string    `json:"id"`
	LibraryID  string    `json:"library_id"`
	Name       string    `json:"name"`
	Tags       string    `json:"tags,omitempty"`
	TOC        []TOCItem `json:"toc,omitempty"`
	UploadDate time.Time `json:"upload_date"`
	Status     string    `json:"status,omitempty"`
	FailReason string    `json:"fail_reason,omitempty"`
	Chunks     []Chunk   `json:"chunks,omitempty"`
}

// TOCItem is one detected table-of-contents entry of a document.
type TOCItem struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// Chunk is a contiguous span of extracted document text (or a rendered
// table) with page and position metadata. ChunkIndex restarts per page, so
// it is unique only within a document+page scope.
type Chunk struct {
	ChunkID    string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Content    string        `json:"content"`
	PageNumber int           `json:"page_number"`
	ChunkIndex int           `json:"chunk_index"`
	Metadata   ChunkMetadata `json:"metadata,omitempty"`
	CreatedAt  time.Time     `json:"created_at,omitempty"`
}

// ChunkMetadata is an open key-value map. Known keys:
//
//	toc_title, toc_page  - closest table-of-contents entry
//	heading              - last detected heading above the chunk
//	has_tables           - page contained tables (text chunks)
//	table_count          - number of tables on the page
//	is_table             - chunk is a rendered table
//	table_index          - table position on the page
//	table_rows, table_columns
//
// Values round-trip through JSON, so numeric values decode as float64.
type ChunkMetadata map[string]any

// IsTable reports whether the chunk is a rendered table.
func (m ChunkMetadata) IsTable() bool {
	v, ok := m["is_table"].(bool)
	return ok && v
}

// TOCTitle returns the toc_title key when present.
func (m ChunkMetadata) TOCTitle() string {
	v, _ := m["toc_title"].(string)
	return v
}

// Heading returns the heading key when present.
func (m ChunkMetadata) Heading() string {
	v, _ := m["heading"].(string)
	return v
}

type Conversation struct {
	ConversationID string    `json:"id"`
	LibraryID      string    `json:"library_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Messages       []Message `json:"messages"`
}

type Message struct {
	MessageID      string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Sources        []string  `json:"sources"`
	Timestamp      time.Time `json:"timestamp"`
}
