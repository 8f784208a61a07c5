package workflows

import (
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"librag/internal/activities"
)

const (
	QueryGetIngestProgress = "GetIngestProgress"
	QueryGetDocumentStatus = "GetDocumentStatus"

	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// LibraryIngestWorkflow processes every pending document in a library as a
// child workflow, bounded by MaxConcurrent.
func LibraryIngestWorkflow(ctx workflow.Context, input LibraryIngestInput) (string, error) {
	progress := LibraryIngestProgress{
		LibraryID:     input.LibraryID,
		PerDocument:   map[string]string{},
		ChildWorkflow: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestProgress, func() (LibraryIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var listOut activities.ListPendingDocumentsOutput
	if err := workflow.ExecuteActivity(ctx, "ListPendingDocumentsActivity", activities.ListPendingDocumentsInput{LibraryID: input.LibraryID}).Get(ctx, &listOut); err != nil {
		return "", err
	}
	docs := listOut.Documents
	progress.Total = len(docs)

	maxConcurrent := input.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	for i := 0; i < len(docs); i += maxConcurrent {
		end := i + maxConcurrent
		if end > len(docs) {
			end = len(docs)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		batch := docs[i:end]
		for _, doc := range batch {
			progress.PerDocument[doc.DocumentID] = "processing"
			workflowID := "document-" + sanitizeID(input.LibraryID) + "-" + sanitizeID(doc.DocumentID)
			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: workflowID})
			f := workflow.ExecuteChildWorkflow(childCtx, DocumentProcessWorkflow, DocumentProcessInput{
				LibraryID:    input.LibraryID,
				DocumentID:   doc.DocumentID,
				Path:         doc.Path,
				ChunkSize:    input.ChunkSize,
				ChunkOverlap: input.ChunkOverlap,
			})
			futures = append(futures, f)
			progress.ChildWorkflow[doc.DocumentID] = workflowID
		}

		for idx, f := range futures {
			var childStatus string
			err := f.Get(ctx, &childStatus)
			docID := batch[idx].DocumentID
			if err != nil {
				progress.Failed++
				progress.PerDocument[docID] = StatusFailed
				continue
			}
			if childStatus == StatusFailed {
				progress.Failed++
			}
			progress.Done++
			progress.PerDocument[docID] = childStatus
		}
	}
	return "completed", nil
}

// DocumentProcessWorkflow runs one document through parse, persist, embed,
// and index. A PDF with no extractable text marks the document failed and
// completes the workflow instead of retrying forever.
func DocumentProcessWorkflow(ctx workflow.Context, input DocumentProcessInput) (string, error) {
	status := DocumentProcessStatus{
		DocumentID:  input.DocumentID,
		CurrentStep: "init",
		Status:      "processing",
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetDocumentStatus, func() (DocumentProcessStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	status.CurrentStep = "parse"
	status.Steps[status.CurrentStep] = "processing"
	var parseOut activities.ParseDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "ParseDocumentActivity", activities.ParseDocumentInput{
		Path:         input.Path,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	}).Get(ctx, &parseOut); err != nil {
		if isNoTextError(err) {
			status.Status = StatusFailed
			status.FailReason = "no extractable text found in pdf"
			status.Steps[status.CurrentStep] = StatusFailed
			_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
				DocumentID: input.DocumentID,
				Status:     StatusFailed,
				FailReason: status.FailReason,
			}).Get(ctx, nil)
			return status.Status, nil
		}
		return "", err
	}
	status.ChunkCount = len(parseOut.Chunks)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "save_chunks"
	status.Steps[status.CurrentStep] = "processing"
	var saveOut activities.SaveChunksOutput
	if err := workflow.ExecuteActivity(ctx, "SaveChunksActivity", activities.SaveChunksInput{
		LibraryID:  input.LibraryID,
		DocumentID: input.DocumentID,
		TOC:        parseOut.TOC,
		Chunks:     parseOut.Chunks,
	}).Get(ctx, &saveOut); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "embed"
	status.Steps[status.CurrentStep] = "processing"
	texts := make([]string, 0, len(parseOut.Chunks))
	for _, c := range parseOut.Chunks {
		texts = append(texts, c.Content)
	}
	var embedOut activities.EmbedChunksOutput
	if err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", activities.EmbedChunksInput{Texts: texts}).Get(ctx, &embedOut); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "index"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "IndexChunksActivity", activities.IndexChunksInput{
		Locators: saveOut.Locators,
		Vectors:  embedOut.Vectors,
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "mark_processed"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
		DocumentID: input.DocumentID,
		Status:     StatusProcessed,
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"
	status.CurrentStep = "done"
	status.Status = StatusProcessed
	return status.Status, nil
}

// IndexRebuildWorkflow re-derives the whole vector index from persisted
// chunks. One long activity; a rebuild is atomic from the index's point of
// view.
func IndexRebuildWorkflow(ctx workflow.Context, input IndexRebuildInput) (IndexRebuildResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	var out activities.RebuildIndexOutput
	if err := workflow.ExecuteActivity(ctx, "RebuildIndexActivity", activities.RebuildIndexInput{}).Get(ctx, &out); err != nil {
		return IndexRebuildResult{}, err
	}
	return IndexRebuildResult{TotalEmbeddings: out.TotalEmbeddings}, nil
}

func isNoTextError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no extractable text")
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
