package tools

import (
	"context"
	"time"

	"github.com/turnpike-ai/turnpike"
	"github.com/turnpike-ai/turnpike/src/chat"
)

// TimeTool reports the current UTC time in RFC3339 format.
type TimeTool struct {
	nowFn func() time.Time
}

func (t *TimeTool) Spec() chat.ToolSpec {
	return chat.ToolSpec{
		Name:        "current_time",
		Description: "Returns the current UTC time in RFC3339 format. Use this tool when asked about the current date or time.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}
}

func (t *TimeTool) Invoke(_ context.Context, _ turnpike.ToolRequest) (turnpike.ToolResponse, error) {
	now := time.Now
	if t.nowFn != nil {
		now = t.nowFn
	}
	return turnpike.ToolResponse{Content: now().UTC().Format(time.RFC3339)}, nil
}
