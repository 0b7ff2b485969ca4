package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/turnpike-ai/turnpike"
	"github.com/turnpike-ai/turnpike/src/cache"
	"github.com/turnpike-ai/turnpike/src/chat"
)

const (
	searchEndpoint   = "https://html.duckduckgo.com/html/"
	searchSnippetLen = 200
	defaultResults   = 3
	maxResults       = 10
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type searchResult struct {
	Title   string
	Snippet string
}

type webSearchInput struct {
	Query      string `json:"query" jsonschema_description:"The search query."`
	MaxResults int    `json:"max_results,omitempty" jsonschema_description:"Maximum number of results to return (default 3)."`
}

// WebSearchTool queries the DuckDuckGo HTML endpoint and returns a plain-text
// digest of the top hits. Responses are cached per query so repeated lookups
// inside a session do not hammer the endpoint.
type WebSearchTool struct {
	client   httpDoer
	endpoint string
	cache    *cache.LRU
}

func NewWebSearchTool(client httpDoer) *WebSearchTool {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WebSearchTool{
		client:   client,
		endpoint: searchEndpoint,
		cache:    cache.NewLRU(64, 5*time.Minute),
	}
}

func (w *WebSearchTool) Spec() chat.ToolSpec {
	return chat.ToolSpec{
		Name:        "web_search",
		Description: "Search the web for current information. Use this tool when asked about recent news, current events, or up-to-date information.",
		InputSchema: GenerateSchema[webSearchInput](),
		Examples: []map[string]any{
			{"query": "latest AI developments"},
			{"query": "Python 3.12 features", "max_results": 2},
		},
	}
}

func (w *WebSearchTool) Invoke(ctx context.Context, req turnpike.ToolRequest) (turnpike.ToolResponse, error) {
	query, ok := req.Arguments["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return turnpike.ToolResponse{}, fmt.Errorf("missing or invalid 'query' argument")
	}
	query = strings.TrimSpace(query)

	limit := defaultResults
	if raw, ok := req.Arguments["max_results"]; ok {
		if f, ok := raw.(float64); ok && f > 0 {
			limit = int(f)
		}
	}
	if limit > maxResults {
		limit = maxResults
	}

	cacheKey := fmt.Sprintf("%s|%d", strings.ToLower(query), limit)
	if cached, ok := w.cache.Get(cacheKey); ok {
		return turnpike.ToolResponse{
			Content:  cached.(string),
			Metadata: map[string]string{"cached": "true"},
		}, nil
	}

	results, err := w.search(ctx, query)
	if err != nil {
		return turnpike.ToolResponse{}, fmt.Errorf("web search: %w", err)
	}
	if len(results) == 0 {
		return turnpike.ToolResponse{Content: fmt.Sprintf("No results found for '%s'. Try different keywords.", query)}, nil
	}
	if len(results) > limit {
		results = results[:limit]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Web Search Results for: %q\n\n", query)
	for i, r := range results {
		snippet := r.Snippet
		if len(snippet) > searchSnippetLen {
			snippet = snippet[:searchSnippetLen] + "..."
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, snippet)
	}
	fmt.Fprintf(&sb, "\nFound %d relevant results.", len(results))

	content := sb.String()
	w.cache.Set(cacheKey, content)
	return turnpike.ToolResponse{Content: content}, nil
}

func (w *WebSearchTool) search(ctx context.Context, query string) ([]searchResult, error) {
	form := url.Values{"q": {query}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", "turnpike/1.0")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %s", resp.Status)
	}
	return parseSearchResults(resp.Body)
}

// parseSearchResults walks the DuckDuckGo HTML result page and extracts the
// title and snippet of each hit. The page marks titles with class
// "result__a" and snippets with "result__snippet".
func parseSearchResults(r io.Reader) ([]searchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse result page: %w", err)
	}

	var results []searchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				results = append(results, searchResult{Title: nodeText(n)})
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = nodeText(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
