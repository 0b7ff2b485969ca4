// Package turnpike implements a tool-routing conversation loop: a language
// model decides each step, tools execute outside the model, and every turn is
// committed to an append-only session transcript.
package turnpike

import (
	"context"

	"github.com/turnpike-ai/turnpike/src/chat"
)

// ToolRequest captures an invocation request for a tool.
type ToolRequest struct {
	SessionID string
	Arguments map[string]any
}

// ToolResponse is the structured response returned by a tool.
type ToolResponse struct {
	Content  string
	Metadata map[string]string
}

// Tool exposes structured metadata and an invocation handler.
type Tool interface {
	Spec() chat.ToolSpec
	Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

// ToolCatalog maintains an ordered set of tools and provides lookup by name.
type ToolCatalog interface {
	Register(tool Tool) error
	Lookup(name string) (Tool, chat.ToolSpec, bool)
	Specs() []chat.ToolSpec
	Tools() []Tool
}
