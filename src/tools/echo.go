package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/turnpike-ai/turnpike"
	"github.com/turnpike-ai/turnpike/src/chat"
)

type echoInput struct {
	Text string `json:"text" jsonschema_description:"The text to echo back."`
}

// EchoTool repeats the provided input. Useful for testing tool wiring.
type EchoTool struct{}

func (e *EchoTool) Spec() chat.ToolSpec {
	return chat.ToolSpec{
		Name:        "echo",
		Description: "Echoes the provided text back to the caller.",
		InputSchema: GenerateSchema[echoInput](),
	}
}

func (e *EchoTool) Invoke(_ context.Context, req turnpike.ToolRequest) (turnpike.ToolResponse, error) {
	text, ok := req.Arguments["text"].(string)
	if !ok {
		return turnpike.ToolResponse{}, fmt.Errorf("missing or invalid 'text' argument")
	}
	return turnpike.ToolResponse{Content: strings.TrimSpace(text)}, nil
}
