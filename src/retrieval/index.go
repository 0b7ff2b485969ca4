package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type indexedDoc struct {
	doc       Document
	embedding []float32
}

// MemoryIndex is an in-process vector index over embedded documents. It is
// the default backend for tests and single-binary deployments.
type MemoryIndex struct {
	mu       sync.RWMutex
	embedder Embedder
	docs     []indexedDoc
}

func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	if embedder == nil {
		embedder = DummyEmbedder{}
	}
	return &MemoryIndex{embedder: embedder}
}

var (
	_ Searcher = (*MemoryIndex)(nil)
	_ Indexer  = (*MemoryIndex)(nil)
)

func (idx *MemoryIndex) Add(ctx context.Context, docs ...Document) error {
	for _, doc := range docs {
		vec, err := idx.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("embed %q: %w", doc.Source, err)
		}
		idx.mu.Lock()
		idx.docs = append(idx.docs, indexedDoc{doc: doc, embedding: vec})
		idx.mu.Unlock()
	}
	return nil
}

func (idx *MemoryIndex) Search(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if topK <= 0 {
		return nil, nil
	}
	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snippets := make([]Snippet, 0, len(idx.docs))
	for _, d := range idx.docs {
		snippets = append(snippets, Snippet{
			Text:   d.doc.Text,
			Source: d.doc.Source,
			Score:  CosineSimilarity(queryVec, d.embedding),
		})
	}
	sort.SliceStable(snippets, func(i, j int) bool { return snippets[i].Score > snippets[j].Score })
	if len(snippets) > topK {
		snippets = snippets[:topK]
	}
	return snippets, nil
}

// Len reports the number of indexed documents.
func (idx *MemoryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector is empty or zero.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
