// Package retrieval finds the chunks most relevant to a question by widening
// nearest-neighbour search over the vector index, filtering to the target
// library, and re-ranking lexically with cross-document diversification.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog/log"

	"librag/internal/index"
	"librag/internal/models"
	"librag/internal/storage"
)

// Chunk is one retrieved result, carrying everything the answer stage needs.
type Chunk struct {
	ChunkID        string               `json:"chunk_id"`
	Content        string               `json:"content"`
	DocumentID     string               `json:"document_id"`
	DocumentName   string               `json:"document_name"`
	PageNumber     int                  `json:"page_number"`
	ChunkIndex     int                  `json:"chunk_index"`
	Metadata       models.ChunkMetadata `json:"metadata,omitempty"`
	RelevanceScore float64              `json:"relevance_score"`
}

type Searcher interface {
	Search(query []float32, topK int) ([]index.Locator, error)
}

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type ChunkStore interface {
	GetByID(ctx context.Context, chunkID string) (models.Chunk, error)
}

type DocumentStore interface {
	GetByID(ctx context.Context, documentID string) (models.Document, error)
}

// Params tunes one retrieval run. Zero values fall back to the defaults.
type Params struct {
	BatchSize      int
	MinRelevant    int
	MaxBatches     int
	MetadataFilter map[string]any
	DocumentIDs    []string
	ResponseLength string // "short", "medium", or "long"
}

const (
	DefaultBatchSize   = 20
	DefaultMinRelevant = 5
	DefaultMaxBatches  = 25
)

type Retriever struct {
	searcher Searcher
	embedder Embedder
	chunks   ChunkStore
	docs     DocumentStore
}

func NewRetriever(searcher Searcher, embedder Embedder, chunks ChunkStore, docs DocumentStore) *Retriever {
	return &Retriever{searcher: searcher, embedder: embedder, chunks: chunks, docs: docs}
}

// Retrieve embeds the question once and searches with a widening top-k until
// enough in-library chunks pass the filters, then diversifies the result
// across documents. Index entries whose chunk or document no longer exists
// are skipped silently.
func (r *Retriever) Retrieve(ctx context.Context, question, libraryID string, p Params) ([]Chunk, error) {
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.MinRelevant <= 0 {
		p.MinRelevant = DefaultMinRelevant
	}
	if p.MaxBatches <= 0 {
		p.MaxBatches = DefaultMaxBatches
	}

	vecs, err := r.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed question: got %d vectors", len(vecs))
	}
	qVec := vecs[0]

	targetChunks, minRelevant := targetsForLength(p.ResponseLength, p.MinRelevant)

	seen := make(map[string]bool)
	var relevant []Chunk

	for batch := 1; batch <= p.MaxBatches; batch++ {
		k := batch * p.BatchSize
		results, err := r.searcher.Search(qVec, k)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		log.Debug().Int("batch", batch).Int("results", len(results)).Msg("retrieval batch")

		for _, loc := range results {
			if loc.LibraryID != libraryID {
				continue
			}
			if seen[loc.ChunkID] {
				continue
			}
			seen[loc.ChunkID] = true

			chunk, err := r.chunks.GetByID(ctx, loc.ChunkID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("load chunk %s: %w", loc.ChunkID, err)
			}
			doc, err := r.docs.GetByID(ctx, loc.DocumentID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("load document %s: %w", loc.DocumentID, err)
			}
			if len(p.DocumentIDs) > 0 && !contains(p.DocumentIDs, doc.DocumentID) {
				continue
			}
			if !matchesMetadata(chunk.Metadata, p.MetadataFilter) {
				continue
			}

			relevant = append(relevant, Chunk{
				ChunkID:        chunk.ChunkID,
				Content:        chunk.Content,
				DocumentID:     doc.DocumentID,
				DocumentName:   doc.Name,
				PageNumber:     chunk.PageNumber,
				ChunkIndex:     chunk.ChunkIndex,
				Metadata:       chunk.Metadata,
				RelevanceScore: Score(chunk.Content, question),
			})
			if len(relevant) >= targetChunks {
				break
			}
		}
		if len(relevant) >= targetChunks {
			break
		}
		if len(relevant) == 0 && batch > 1 {
			break
		}
	}

	out := Diversify(relevant, minRelevant)
	log.Debug().Int("candidates", len(relevant)).Int("selected", len(out)).Msg("retrieval diversified")
	return out, nil
}

// targetsForLength maps the requested answer length to how many candidates to
// gather and how many to keep after diversification.
func targetsForLength(responseLength string, minRelevant int) (target, keep int) {
	switch responseLength {
	case "short":
		return minRelevant * 2, 3
	case "long":
		return minRelevant * 4, 8
	default:
		return minRelevant * 3, 5
	}
}

func matchesMetadata(meta models.ChunkMetadata, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	for k, want := range filter {
		got, ok := meta[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
