package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/turnpike-ai/turnpike/src/chat"
)

// GeminiOracle drives native function calling on the Gemini API.
type GeminiOracle struct {
	client *genai.Client
	model  string
}

func NewGeminiOracle(ctx context.Context, apiKey, model string) (*GeminiOracle, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiOracle{client: client, model: model}, nil
}

var _ Oracle = (*GeminiOracle)(nil)

func (o *GeminiOracle) Close() error {
	return o.client.Close()
}

func (o *GeminiOracle) Decide(ctx context.Context, history []chat.Message, specs []chat.ToolSpec) (chat.Decision, error) {
	model := o.client.GenerativeModel(o.model)
	system, contents := geminiContents(history)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(specs) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(specs)}}
	}
	if len(contents) == 0 {
		return chat.Decision{}, fmt.Errorf("gemini: empty conversation")
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return chat.Decision{}, fmt.Errorf("gemini send message: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return chat.Decision{}, fmt.Errorf("gemini: no candidates returned")
	}

	var (
		texts    []string
		requests []chat.ToolRequest
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			if v != "" {
				texts = append(texts, string(v))
			}
		case genai.FunctionCall:
			// Gemini does not assign call ids; mint one so results can be
			// paired back to their request.
			requests = append(requests, chat.ToolRequest{
				ID:        chat.NewRequestID(),
				Name:      v.Name,
				Arguments: v.Args,
			})
		}
	}
	if len(requests) > 0 {
		return chat.ToolCallBatch(requests...), nil
	}
	return chat.FinalAnswer(strings.Join(texts, "\n")), nil
}

func geminiContents(history []chat.Message) (string, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	appendParts := func(role string, parts ...genai.Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	for _, msg := range history {
		switch msg.Kind {
		case chat.KindSystem:
			system = append(system, msg.Text)
		case chat.KindUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Text)}})
		case chat.KindAssistant:
			var parts []genai.Part
			if msg.Text != "" {
				parts = append(parts, genai.Text(msg.Text))
			}
			for _, req := range msg.ToolRequests {
				parts = append(parts, genai.FunctionCall{Name: req.Name, Args: req.Arguments})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case chat.KindTool:
			appendParts("user", genai.FunctionResponse{
				Name: msg.ToolName,
				Response: map[string]any{
					"content":  msg.Text,
					"is_error": msg.IsError,
				},
			})
		}
	}
	return strings.Join(system, "\n"), contents
}

func geminiDeclarations(specs []chat.ToolSpec) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		out = append(out, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  geminiSchema(spec.InputSchema),
		})
	}
	return out
}

// geminiSchema converts a JSON-schema map into the SDK's schema type. Only
// the subset the tool specs use is mapped.
func geminiSchema(schema map[string]any) *genai.Schema {
	if len(schema) == 0 {
		return &genai.Schema{Type: genai.TypeObject}
	}
	out := &genai.Schema{Type: geminiType(stringValue(schema["type"]))}
	out.Description = stringValue(schema["description"])
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				out.Properties[name] = geminiSchema(sub)
			}
		}
	}
	switch req := schema["required"].(type) {
	case []string:
		out.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = geminiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	return out
}

func geminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
