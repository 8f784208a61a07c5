package workflows

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker) {
	w.RegisterWorkflow(LibraryIngestWorkflow)
	w.RegisterWorkflow(DocumentProcessWorkflow)
	w.RegisterWorkflow(IndexRebuildWorkflow)
}
