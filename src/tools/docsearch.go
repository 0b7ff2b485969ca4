package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/turnpike-ai/turnpike"
	"github.com/turnpike-ai/turnpike/src/chat"
	"github.com/turnpike-ai/turnpike/src/retrieval"
)

const defaultDocResults = 3

type docSearchInput struct {
	Query string `json:"query" jsonschema_description:"What to look for in the document corpus."`
}

// DocSearchTool exposes a retrieval searcher as an agent tool. The orchestrator
// never talks to the index directly; retrieval happens only when the oracle
// asks for it.
type DocSearchTool struct {
	searcher retrieval.Searcher
	topK     int
}

func NewDocSearchTool(searcher retrieval.Searcher, topK int) *DocSearchTool {
	if topK <= 0 {
		topK = defaultDocResults
	}
	return &DocSearchTool{searcher: searcher, topK: topK}
}

func (d *DocSearchTool) Spec() chat.ToolSpec {
	return chat.ToolSpec{
		Name:        "retrieve_docs",
		Description: "Search the indexed documentation corpus for passages relevant to a query. Use this tool when asked about topics covered by the local documentation.",
		InputSchema: GenerateSchema[docSearchInput](),
		Examples: []map[string]any{
			{"query": "how do list comprehensions work"},
		},
	}
}

func (d *DocSearchTool) Invoke(ctx context.Context, req turnpike.ToolRequest) (turnpike.ToolResponse, error) {
	query, ok := req.Arguments["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return turnpike.ToolResponse{}, fmt.Errorf("missing or invalid 'query' argument")
	}

	snippets, err := d.searcher.Search(ctx, strings.TrimSpace(query), d.topK)
	if err != nil {
		return turnpike.ToolResponse{}, fmt.Errorf("retrieve docs: %w", err)
	}
	return turnpike.ToolResponse{
		Content:  retrieval.FormatSnippets(snippets),
		Metadata: map[string]string{"results": fmt.Sprintf("%d", len(snippets))},
	}, nil
}
