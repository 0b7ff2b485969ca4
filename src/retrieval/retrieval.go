package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// Document is a unit of ingestable knowledge.
type Document struct {
	Text   string
	Source string
}

// Snippet is one search hit, ranked by similarity to the query.
type Snippet struct {
	Text   string
	Source string
	Score  float64
}

// Searcher answers similarity queries over an ingested corpus.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Snippet, error)
}

// Indexer is implemented by searchers that accept new documents.
type Indexer interface {
	Add(ctx context.Context, docs ...Document) error
}

const snippetPreviewLen = 200

// FormatSnippets renders hits the way they are handed to the language model,
// one block per hit separated by a rule, each prefixed with its source.
func FormatSnippets(snippets []Snippet) string {
	if len(snippets) == 0 {
		return "No relevant docs found."
	}
	blocks := make([]string, 0, len(snippets))
	for _, s := range snippets {
		text := s.Text
		if len(text) > snippetPreviewLen {
			text = text[:snippetPreviewLen] + "..."
		}
		blocks = append(blocks, fmt.Sprintf("Source: %s\n%s", s.Source, text))
	}
	return strings.Join(blocks, "\n---\n")
}
