package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"librag/internal/index"
	"librag/internal/models"
	"librag/internal/storage"
)

type fakeSearcher struct {
	locators []index.Locator
	calls    int
}

func (f *fakeSearcher) Search(query []float32, topK int) ([]index.Locator, error) {
	f.calls++
	if topK > len(f.locators) {
		topK = len(f.locators)
	}
	return f.locators[:topK], nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeChunks map[string]models.Chunk

func (f fakeChunks) GetByID(ctx context.Context, chunkID string) (models.Chunk, error) {
	c, ok := f[chunkID]
	if !ok {
		return models.Chunk{}, storage.ErrNotFound
	}
	return c, nil
}

type fakeDocs map[string]models.Document

func (f fakeDocs) GetByID(ctx context.Context, documentID string) (models.Document, error) {
	d, ok := f[documentID]
	if !ok {
		return models.Document{}, storage.ErrNotFound
	}
	return d, nil
}

// fixture builds two documents with three chunks each in library "lib-1",
// plus one chunk in library "lib-2".
func fixture() (*fakeSearcher, fakeChunks, fakeDocs) {
	chunks := fakeChunks{}
	docs := fakeDocs{
		"doc-a": {DocumentID: "doc-a", LibraryID: "lib-1", Name: "alpha.pdf"},
		"doc-b": {DocumentID: "doc-b", LibraryID: "lib-1", Name: "beta.pdf"},
		"doc-x": {DocumentID: "doc-x", LibraryID: "lib-2", Name: "other.pdf"},
	}
	var locs []index.Locator
	for _, doc := range []string{"doc-a", "doc-b"} {
		for i := 0; i < 3; i++ {
			id := fmt.Sprintf("%s-c%d", doc, i)
			meta := models.ChunkMetadata{}
			if i == 2 {
				meta["is_table"] = true
			}
			chunks[id] = models.Chunk{
				ChunkID:    id,
				DocumentID: doc,
				Content:    fmt.Sprintf("machine learning content for %s chunk %d with plenty of padding text", doc, i),
				PageNumber: i + 1,
				ChunkIndex: i,
				Metadata:   meta,
			}
			locs = append(locs, index.Locator{
				LibraryID: "lib-1", DocumentID: doc, ChunkID: id, PageNumber: i + 1, ChunkIndex: i,
			})
		}
	}
	chunks["x-c0"] = models.Chunk{ChunkID: "x-c0", DocumentID: "doc-x", Content: "machine learning elsewhere"}
	locs = append(locs, index.Locator{LibraryID: "lib-2", DocumentID: "doc-x", ChunkID: "x-c0"})
	return &fakeSearcher{locators: locs}, chunks, docs
}

func TestRetrieveFiltersByLibrary(t *testing.T) {
	searcher, chunks, docs := fixture()
	r := NewRetriever(searcher, fakeEmbedder{}, chunks, docs)
	out, err := r.Retrieve(context.Background(), "machine learning", "lib-1", Params{MaxBatches: 2})
	require.NoError(t, err)
	require.NotEmpty(t, out)
	for _, c := range out {
		require.NotEqual(t, "doc-x", c.DocumentID)
	}
}

func TestRetrieveDedupsAcrossBatches(t *testing.T) {
	searcher, chunks, docs := fixture()
	r := NewRetriever(searcher, fakeEmbedder{}, chunks, docs)
	// small batches force several widening rounds over the same results
	out, err := r.Retrieve(context.Background(), "machine learning", "lib-1", Params{BatchSize: 2, MaxBatches: 5})
	require.NoError(t, err)
	require.Greater(t, searcher.calls, 1)
	seen := map[string]bool{}
	for _, c := range out {
		require.False(t, seen[c.ChunkID], "chunk %s returned twice", c.ChunkID)
		seen[c.ChunkID] = true
	}
}

func TestRetrieveDiversifiesAcrossDocuments(t *testing.T) {
	searcher, chunks, docs := fixture()
	r := NewRetriever(searcher, fakeEmbedder{}, chunks, docs)
	out, err := r.Retrieve(context.Background(), "machine learning content", "lib-1", Params{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out), 2)
	require.NotEqual(t, out[0].DocumentName, out[1].DocumentName)
}

func TestRetrieveMetadataFilter(t *testing.T) {
	searcher, chunks, docs := fixture()
	r := NewRetriever(searcher, fakeEmbedder{}, chunks, docs)
	out, err := r.Retrieve(context.Background(), "machine learning", "lib-1", Params{
		MetadataFilter: map[string]any{"is_table": true},
		MaxBatches:     2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out)
	for _, c := range out {
		require.Equal(t, true, c.Metadata["is_table"])
	}
}

func TestRetrieveDocumentIDsFilter(t *testing.T) {
	searcher, chunks, docs := fixture()
	r := NewRetriever(searcher, fakeEmbedder{}, chunks, docs)
	out, err := r.Retrieve(context.Background(), "machine learning", "lib-1", Params{
		DocumentIDs: []string{"doc-b"},
		MaxBatches:  2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out)
	for _, c := range out {
		require.Equal(t, "doc-b", c.DocumentID)
	}
}

func TestRetrieveSkipsMissingRecords(t *testing.T) {
	searcher, chunks, docs := fixture()
	delete(chunks, "doc-a-c0")
	delete(docs, "doc-b")
	r := NewRetriever(searcher, fakeEmbedder{}, chunks, docs)
	out, err := r.Retrieve(context.Background(), "machine learning", "lib-1", Params{MaxBatches: 2})
	require.NoError(t, err)
	for _, c := range out {
		require.NotEqual(t, "doc-a-c0", c.ChunkID)
		require.NotEqual(t, "doc-b", c.DocumentID)
	}
}

func TestRetrieveEmptyIndexReturnsNothing(t *testing.T) {
	r := NewRetriever(&fakeSearcher{}, fakeEmbedder{}, fakeChunks{}, fakeDocs{})
	out, err := r.Retrieve(context.Background(), "anything", "lib-1", Params{})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestRetrieveShortLengthKeepsAtMostThree(t *testing.T) {
	searcher, chunks, docs := fixture()
	r := NewRetriever(searcher, fakeEmbedder{}, chunks, docs)
	out, err := r.Retrieve(context.Background(), "machine learning content", "lib-1", Params{ResponseLength: "short"})
	require.NoError(t, err)
	require.LessOrEqual(t, len(out), 3)
}
