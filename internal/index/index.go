// Package index implements the in-memory vector index used for retrieval.
// Vectors and their locators are parallel slices guarded by one lock; position
// i in both always refers to the same logical chunk. The relational store
// stays the source of truth, so the index can be rebuilt from scratch at any
// time.
package index

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrDimensionMismatch is returned when a vector does not match the index
// dimension. Vectors are never truncated or padded.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Locator identifies which library/document/chunk/page/position a vector
// entry corresponds to.
type Locator struct {
	LibraryID  string
	DocumentID string
	ChunkID    string
	PageNumber int
	ChunkIndex int
}

type Stats struct {
	TotalEmbeddings int `json:"total_embeddings"`
	IndexSize       int `json:"index_size"`
	Dimension       int `json:"dimension"`
}

// SourceChunk and SourceDocument are the store rows a rebuild works from.
type SourceChunk struct {
	DocumentID string
	ChunkID    string
	Content    string
	PageNumber int
	ChunkIndex int
}

type SourceDocument struct {
	LibraryID string
	Name      string
}

// ChunkSource supplies persisted chunks for a full rebuild.
type ChunkSource interface {
	AllChunks(ctx context.Context) ([]SourceChunk, error)
	// Document resolves a document id; found=false means the document has
	// been deleted since the chunk listing and its chunks are skipped.
	Document(ctx context.Context, documentID string) (doc SourceDocument, found bool, err error)
}

// EmbedFunc maps a batch of texts to vectors of the index dimension.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

type Index struct {
	mu sync.RWMutex
	// writeMu serializes Add against whole rebuilds. mu alone is not
	// enough: a rebuild embeds outside mu, and an Add landing between the
	// chunk listing and the swap would be dropped by the swap.
	writeMu     sync.Mutex
	dim         int
	vectors     [][]float32
	locators    []Locator
	indexPath   string
	locatorPath string
}

type indexFile struct {
	Dim     int
	Vectors [][]float32
}

// New creates an index of the given dimension, loading previously persisted
// state from indexPath/locatorPath. A missing or corrupt artifact pair starts
// the index empty rather than failing startup.
func New(dim int, indexPath, locatorPath string) *Index {
	idx := &Index{
		dim:         dim,
		indexPath:   indexPath,
		locatorPath: locatorPath,
	}
	if err := idx.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Msg("failed to load vector index, starting empty")
		}
		idx.vectors = nil
		idx.locators = nil
	} else if len(idx.locators) > 0 {
		log.Info().Int("embeddings", len(idx.locators)).Msg("loaded vector index")
	}
	return idx
}

// Add appends vectors and their locators in matching order and persists on
// success.
func (x *Index) Add(vectors [][]float32, locators []Locator) error {
	if len(vectors) != len(locators) {
		return fmt.Errorf("add: %d vectors for %d locators: %w", len(vectors), len(locators), ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("add: vector %d has %d components, want %d: %w", i, len(v), x.dim, ErrDimensionMismatch)
		}
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()
	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors = append(x.vectors, vectors...)
	x.locators = append(x.locators, locators...)
	if err := x.persistLocked(); err != nil {
		return err
	}
	return nil
}

// Search returns up to topK locators ordered by ascending squared Euclidean
// distance to the query. Ties keep insertion order. An empty index returns an
// empty slice.
func (x *Index) Search(query []float32, topK int) ([]Locator, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("search: query has %d components, want %d: %w", len(query), x.dim, ErrDimensionMismatch)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.vectors)
	if n == 0 || topK <= 0 {
		return []Locator{}, nil
	}

	type scored struct {
		pos  int
		dist float64
	}
	dists := make([]scored, n)
	for i, v := range x.vectors {
		var d float64
		for j := range v {
			diff := float64(v[j]) - float64(query[j])
			d += diff * diff
		}
		dists[i] = scored{pos: i, dist: d}
	}
	sort.SliceStable(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })

	if topK > n {
		topK = n
	}
	out := make([]Locator, 0, topK)
	for _, s := range dists[:topK] {
		out = append(out, x.locators[s.pos])
	}
	return out, nil
}

// Rebuild clears the index and repopulates it from every persisted chunk,
// grouped by document for batch embedding. The new state is built off to the
// side and swapped in atomically; a failure partway leaves the previously
// persisted state untouched. Adds block until the rebuild finishes.
func (x *Index) Rebuild(ctx context.Context, source ChunkSource, embed EmbedFunc) error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	chunks, err := source.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("rebuild: list chunks: %w", err)
	}

	var (
		newVectors  [][]float32
		newLocators []Locator
	)

	byDoc := make(map[string][]SourceChunk)
	docOrder := make([]string, 0)
	for _, c := range chunks {
		if _, ok := byDoc[c.DocumentID]; !ok {
			docOrder = append(docOrder, c.DocumentID)
		}
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c)
	}

	for _, docID := range docOrder {
		doc, found, err := source.Document(ctx, docID)
		if err != nil {
			return fmt.Errorf("rebuild: resolve document %s: %w", docID, err)
		}
		if !found {
			continue
		}
		group := byDoc[docID]
		texts := make([]string, 0, len(group))
		for _, c := range group {
			texts = append(texts, c.Content)
		}
		vectors, err := embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("rebuild: embed document %s: %w", docID, err)
		}
		if len(vectors) != len(group) {
			return fmt.Errorf("rebuild: embedded %d of %d chunks for document %s", len(vectors), len(group), docID)
		}
		for i, v := range vectors {
			if len(v) != x.dim {
				return fmt.Errorf("rebuild: vector has %d components, want %d: %w", len(v), x.dim, ErrDimensionMismatch)
			}
			newVectors = append(newVectors, v)
			newLocators = append(newLocators, Locator{
				LibraryID:  doc.LibraryID,
				DocumentID: docID,
				ChunkID:    group[i].ChunkID,
				PageNumber: group[i].PageNumber,
				ChunkIndex: group[i].ChunkIndex,
			})
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors = newVectors
	x.locators = newLocators
	if err := x.persistLocked(); err != nil {
		return err
	}
	log.Info().Int("embeddings", len(newLocators)).Int("documents", len(docOrder)).Msg("rebuilt vector index")
	return nil
}

func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Stats{
		TotalEmbeddings: len(x.locators),
		IndexSize:       len(x.vectors),
		Dimension:       x.dim,
	}
}

func (x *Index) persistLocked() error {
	if err := writeGobAtomic(x.indexPath, indexFile{Dim: x.dim, Vectors: x.vectors}); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	if err := writeGobAtomic(x.locatorPath, x.locators); err != nil {
		return fmt.Errorf("persist locators: %w", err)
	}
	return nil
}

func (x *Index) load() error {
	var file indexFile
	if err := readGob(x.indexPath, &file); err != nil {
		return err
	}
	var locators []Locator
	if err := readGob(x.locatorPath, &locators); err != nil {
		return err
	}
	if file.Dim != x.dim {
		return fmt.Errorf("persisted dimension %d does not match configured %d", file.Dim, x.dim)
	}
	if len(file.Vectors) != len(locators) {
		return fmt.Errorf("persisted index has %d vectors for %d locators", len(file.Vectors), len(locators))
	}
	x.vectors = file.Vectors
	x.locators = locators
	return nil
}

func writeGobAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "index-*.tmp")
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(tmp).Encode(v); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}
