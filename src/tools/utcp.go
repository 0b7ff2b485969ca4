package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	utcpTools "github.com/universal-tool-calling-protocol/go-utcp/src/tools"

	"github.com/turnpike-ai/turnpike"
	"github.com/turnpike-ai/turnpike/src/chat"
)

// UTCPCaller is the narrow slice of the UTCP client the remote bridge needs.
type UTCPCaller interface {
	CallTool(ctx context.Context, toolName string, args map[string]any) (any, error)
	SearchTools(query string, limit int) ([]utcpTools.Tool, error)
}

// RemoteTool proxies invocations to a tool hosted behind a UTCP client. The
// remote result is flattened to text so it can travel in a transcript entry.
type RemoteTool struct {
	client UTCPCaller
	name   string
	desc   string
	schema map[string]any
}

func NewRemoteTool(client UTCPCaller, def utcpTools.Tool) *RemoteTool {
	return &RemoteTool{
		client: client,
		name:   def.Name,
		desc:   def.Description,
		schema: remoteSchema(def),
	}
}

func (r *RemoteTool) Spec() chat.ToolSpec {
	return chat.ToolSpec{
		Name:        r.name,
		Description: r.desc,
		InputSchema: r.schema,
	}
}

func (r *RemoteTool) Invoke(ctx context.Context, req turnpike.ToolRequest) (turnpike.ToolResponse, error) {
	out, err := r.client.CallTool(ctx, r.name, req.Arguments)
	if err != nil {
		return turnpike.ToolResponse{}, fmt.Errorf("remote tool %s: %w", r.name, err)
	}
	return turnpike.ToolResponse{
		Content:  flattenResult(out),
		Metadata: map[string]string{"remote": "true"},
	}, nil
}

// DiscoverRemoteTools searches the UTCP registry and wraps each hit so it can
// be registered alongside local tools.
func DiscoverRemoteTools(client UTCPCaller, query string, limit int) ([]turnpike.Tool, error) {
	if client == nil {
		return nil, fmt.Errorf("utcp client is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	defs, err := client.SearchTools(query, limit)
	if err != nil {
		return nil, fmt.Errorf("search remote tools: %w", err)
	}

	wrapped := make([]turnpike.Tool, 0, len(defs))
	for _, def := range defs {
		if strings.TrimSpace(def.Name) == "" {
			continue
		}
		wrapped = append(wrapped, NewRemoteTool(client, def))
	}
	return wrapped, nil
}

func remoteSchema(def utcpTools.Tool) map[string]any {
	schema := map[string]any{"type": "object"}
	if def.Inputs.Type != "" {
		schema["type"] = def.Inputs.Type
	}
	if len(def.Inputs.Properties) > 0 {
		schema["properties"] = def.Inputs.Properties
	}
	if len(def.Inputs.Required) > 0 {
		schema["required"] = def.Inputs.Required
	}
	return schema
}

func flattenResult(out any) string {
	switch v := out.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}
