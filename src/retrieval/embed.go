package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
)

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNotSupported is returned by providers that do not offer embeddings.
var ErrNotSupported = errors.New("embeddings not supported by this provider")

// FastEmbedOptions configure the ONNX-backed local embedder. It is only
// functional when built with -tags fastembed.
type FastEmbedOptions struct {
	Model     string
	CacheDir  string
	MaxLength int
	BatchSize int
}

type DummyEmbedder struct{}

func (DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return DummyEmbedding(text), nil
}

// DummyEmbedding folds the input bytes into a fixed 768-dimensional vector.
// It is deterministic and keyword-sensitive, which is enough for tests and
// offline runs.
func DummyEmbedding(text string) []float32 {
	vec := make([]float32, 768)
	for i, ch := range []byte(text) {
		vec[i%768] += float32(ch) / 255.0
	}
	return vec
}

// AutoEmbedder chooses a provider from env:
// TURNPIKE_EMBED_PROVIDER=openai|ollama|voyage|fastembed
// TURNPIKE_EMBED_MODEL=<model string>
// Unset or unavailable providers fall back to the dummy embedder.
func AutoEmbedder() Embedder {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("TURNPIKE_EMBED_PROVIDER")))
	model := strings.TrimSpace(os.Getenv("TURNPIKE_EMBED_MODEL"))

	switch provider {
	case "":
		return DummyEmbedder{}
	case "openai":
		if e, err := NewOpenAIEmbedder(model); err == nil {
			return e
		}
	case "ollama":
		if e, err := NewOllamaEmbedder(model); err == nil {
			return e
		}
	case "voyage", "claude", "anthropic":
		if e, err := NewVoyageEmbedder(model); err == nil {
			return e
		}
	case "fastembed":
		if opts := defaultFastEmbedOptions(); opts != nil {
			if e, err := NewFastEmbedder(context.Background(), opts); err == nil {
				return e
			}
		}
	}

	slog.Warn("embedder: falling back to dummy provider", "provider", provider)
	return DummyEmbedder{}
}
