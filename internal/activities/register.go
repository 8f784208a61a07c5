package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListPendingDocumentsActivity)
	w.RegisterActivity(a.ParseDocumentActivity)
	w.RegisterActivity(a.SaveChunksActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.IndexChunksActivity)
	w.RegisterActivity(a.UpdateDocumentStatusActivity)
	w.RegisterActivity(a.RebuildIndexActivity)
}
