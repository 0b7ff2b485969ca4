// Package textmodel wraps plain prompt-in, text-out language models. It
// backs the JSON-protocol oracle for providers without a native tool-call
// API.
package textmodel

import "context"

// TextModel generates a completion for a single prompt.
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
