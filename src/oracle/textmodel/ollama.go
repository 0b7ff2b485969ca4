package textmodel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaModel runs completions against a locally served model. The host
// comes from OLLAMA_HOST and defaults to the standard local port.
type OllamaModel struct {
	client *ollama.Client
	model  string
}

func NewOllamaModel(model string) (*OllamaModel, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}
	httpClient := &http.Client{Timeout: 120 * time.Second}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaModel{client: ollama.NewClient(u, httpClient), model: model}, nil
}

var _ TextModel = (*OllamaModel)(nil)

func (m *OllamaModel) Generate(ctx context.Context, prompt string) (string, error) {
	var text strings.Builder
	req := &ollama.GenerateRequest{
		Model:  m.model,
		Prompt: prompt,
	}
	err := m.client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		if gr.Response != "" {
			text.WriteString(gr.Response)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text.String(), nil
}
