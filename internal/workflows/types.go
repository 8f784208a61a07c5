package workflows

type LibraryIngestInput struct {
	LibraryID     string `json:"library_id"`
	MaxConcurrent int    `json:"max_concurrent"`
	ChunkSize     int    `json:"chunk_size,omitempty"`
	ChunkOverlap  int    `json:"chunk_overlap,omitempty"`
}

type LibraryIngestProgress struct {
	LibraryID     string            `json:"library_id"`
	Total         int               `json:"total"`
	Done          int               `json:"done"`
	Failed        int               `json:"failed"`
	PerDocument   map[string]string `json:"per_document_status"`
	ChildWorkflow map[string]string `json:"child_workflow_ids,omitempty"`
}

type DocumentProcessInput struct {
	LibraryID    string `json:"library_id"`
	DocumentID   string `json:"document_id"`
	Path         string `json:"path"`
	ChunkSize    int    `json:"chunk_size,omitempty"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty"`
}

type DocumentProcessStatus struct {
	DocumentID  string            `json:"document_id"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	ChunkCount  int               `json:"chunk_count"`
	Steps       map[string]string `json:"steps"`
}

type IndexRebuildInput struct{}

type IndexRebuildResult struct {
	TotalEmbeddings int `json:"total_embeddings"`
}
