package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"librag/internal/activities"
	"librag/internal/index"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerDocumentActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ParseDocumentActivity", func(context.Context, activities.ParseDocumentInput) (activities.ParseDocumentOutput, error) {
		return activities.ParseDocumentOutput{}, nil
	})
	registerActivityName(env, "SaveChunksActivity", func(context.Context, activities.SaveChunksInput) (activities.SaveChunksOutput, error) {
		return activities.SaveChunksOutput{}, nil
	})
	registerActivityName(env, "EmbedChunksActivity", func(context.Context, activities.EmbedChunksInput) (activities.EmbedChunksOutput, error) {
		return activities.EmbedChunksOutput{}, nil
	})
	registerActivityName(env, "IndexChunksActivity", func(context.Context, activities.IndexChunksInput) error { return nil })
	registerActivityName(env, "UpdateDocumentStatusActivity", func(context.Context, activities.UpdateDocumentStatusInput) error { return nil })
}

func TestDocumentProcessWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentProcessWorkflow)
	registerDocumentActivities(env)

	parsed := activities.ParseDocumentOutput{
		Chunks: []activities.ParsedChunk{{Content: "chunk one", PageNumber: 1, ChunkIndex: 0}},
		Pages:  1,
	}
	locators := []index.Locator{{LibraryID: "lib1", DocumentID: "doc1", ChunkID: "c1", PageNumber: 1}}

	env.OnActivity("ParseDocumentActivity", mock.Anything, activities.ParseDocumentInput{Path: "/data/lib1/doc1.pdf"}).Return(parsed, nil)
	env.OnActivity("SaveChunksActivity", mock.Anything, mock.Anything).Return(activities.SaveChunksOutput{Locators: locators}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, activities.EmbedChunksInput{Texts: []string{"chunk one"}}).Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1, 0.2}}}, nil)
	env.OnActivity("IndexChunksActivity", mock.Anything, activities.IndexChunksInput{Locators: locators, Vectors: [][]float32{{0.1, 0.2}}}).Return(nil)
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, activities.UpdateDocumentStatusInput{DocumentID: "doc1", Status: StatusProcessed}).Return(nil)

	env.ExecuteWorkflow(DocumentProcessWorkflow, DocumentProcessInput{LibraryID: "lib1", DocumentID: "doc1", Path: "/data/lib1/doc1.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusProcessed, out)
}

func TestDocumentProcessWorkflowNoTextFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentProcessWorkflow)
	registerDocumentActivities(env)

	env.OnActivity("ParseDocumentActivity", mock.Anything, mock.Anything).Return(activities.ParseDocumentOutput{}, errors.New("parse document: no extractable text found in pdf"))
	env.OnActivity("UpdateDocumentStatusActivity", mock.Anything, activities.UpdateDocumentStatusInput{
		DocumentID: "doc1",
		Status:     StatusFailed,
		FailReason: "no extractable text found in pdf",
	}).Return(nil)

	env.ExecuteWorkflow(DocumentProcessWorkflow, DocumentProcessInput{LibraryID: "lib1", DocumentID: "doc1", Path: "/data/lib1/doc1.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusFailed, out)
}

func TestIndexRebuildWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(IndexRebuildWorkflow)
	registerActivityName(env, "RebuildIndexActivity", func(context.Context, activities.RebuildIndexInput) (activities.RebuildIndexOutput, error) {
		return activities.RebuildIndexOutput{}, nil
	})
	env.OnActivity("RebuildIndexActivity", mock.Anything, mock.Anything).Return(activities.RebuildIndexOutput{TotalEmbeddings: 42}, nil)

	env.ExecuteWorkflow(IndexRebuildWorkflow, IndexRebuildInput{})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out IndexRebuildResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 42, out.TotalEmbeddings)
}
