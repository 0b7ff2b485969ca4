package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// qdrantStatus supports both `status: "ok"` and `status: {"error":"..."}`.
type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Time   float64      `json:"time"`
	Result T            `json:"result"`
}

type qdrantPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// QdrantIndex stores embedded documents in a Qdrant collection over its HTTP
// API and serves similarity queries from it.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	embedder   Embedder
	client     *http.Client
	mu         sync.Mutex
	rng        *rand.Rand
}

func NewQdrantIndex(baseURL, collection, apiKey string, embedder Embedder) *QdrantIndex {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	if embedder == nil {
		embedder = DummyEmbedder{}
	}
	return &QdrantIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		embedder:   embedder,
		client:     &http.Client{Timeout: 15 * time.Second},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var (
	_ Searcher = (*QdrantIndex)(nil)
	_ Indexer  = (*QdrantIndex)(nil)
)

// CreateCollection provisions the collection for the given vector size.
// Existing collections are left untouched.
func (qi *QdrantIndex) CreateCollection(ctx context.Context, vectorSize int) error {
	if qi.collection == "" {
		return errors.New("qdrant collection is empty")
	}
	req := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
	}
	var resp qdrantEnvelope[json.RawMessage]
	err := qi.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", url.PathEscape(qi.collection)), req, &resp)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil
		}
		return err
	}
	if !strings.EqualFold(resp.Status.State, "ok") && resp.Status.Error != "" {
		if strings.Contains(strings.ToLower(resp.Status.Error), "already exists") {
			return nil
		}
		return errors.New(resp.Status.Error)
	}
	return nil
}

func (qi *QdrantIndex) Add(ctx context.Context, docs ...Document) error {
	if qi.collection == "" {
		return errors.New("qdrant collection is empty")
	}
	points := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		vec, err := qi.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("embed %q: %w", doc.Source, err)
		}
		points = append(points, map[string]any{
			"id":     qi.generateID(),
			"vector": vec,
			"payload": map[string]any{
				"text":   doc.Text,
				"source": doc.Source,
			},
		})
	}
	req := map[string]any{"points": points}
	var resp qdrantEnvelope[json.RawMessage]
	if err := qi.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points", url.PathEscape(qi.collection)), req, &resp); err != nil {
		return err
	}
	if !strings.EqualFold(resp.Status.State, "ok") && resp.Status.Error != "" {
		return errors.New(resp.Status.Error)
	}
	return nil
}

func (qi *QdrantIndex) Search(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if topK <= 0 {
		return nil, nil
	}
	queryVec, err := qi.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	req := map[string]any{
		"vector":       queryVec,
		"limit":        topK,
		"with_payload": true,
	}
	var resp qdrantEnvelope[[]qdrantPoint]
	if err := qi.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", url.PathEscape(qi.collection)), req, &resp); err != nil {
		return nil, err
	}
	snippets := make([]Snippet, 0, len(resp.Result))
	for _, point := range resp.Result {
		snippets = append(snippets, Snippet{
			Text:   stringFromAny(point.Payload["text"]),
			Source: stringFromAny(point.Payload["source"]),
			Score:  point.Score,
		})
	}
	return snippets, nil
}

func (qi *QdrantIndex) do(ctx context.Context, method, path string, body any, out any) error {
	u := qi.baseURL + path

	var buf io.ReadWriter
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewBuffer(b)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if qi.apiKey != "" {
		req.Header.Set("api-key", qi.apiKey)
	}
	resp, err := qi.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("qdrant %s %s -> http %d: %s",
			method, u, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return err
		}
	}
	return nil
}

func (qi *QdrantIndex) generateID() int64 {
	qi.mu.Lock()
	defer qi.mu.Unlock()
	v := time.Now().UnixNano() ^ qi.rng.Int63()
	if v < 0 {
		v = -v
	}
	return v
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return s
}
