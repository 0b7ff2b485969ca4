package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/turnpike-ai/turnpike/src/chat"
	"github.com/turnpike-ai/turnpike/src/oracle/textmodel"
)

const promptProtocol = `Decide the next step. Respond ONLY with valid JSON in one of these two shapes:

{"action": "final", "answer": "<your reply to the user>"}

{"action": "tools", "calls": [{"name": "<tool name>", "arguments": {<tool arguments>}}]}

Rules:
- Use tools only when the conversation needs information a tool provides.
- Request every tool you need for this step in a single "calls" array.
- After tool results arrive you will be asked again; finish with "final" once you can answer.
- No prose outside the JSON object.`

// PromptOracle speaks a JSON protocol over a plain text model, for providers
// without a native tool-call API.
type PromptOracle struct {
	model textmodel.TextModel
}

func NewPromptOracle(model textmodel.TextModel) *PromptOracle {
	return &PromptOracle{model: model}
}

var _ Oracle = (*PromptOracle)(nil)

func (o *PromptOracle) Decide(ctx context.Context, history []chat.Message, specs []chat.ToolSpec) (chat.Decision, error) {
	prompt := buildPrompt(history, specs)
	resp, err := o.model.Generate(ctx, prompt)
	if err != nil {
		return chat.Decision{}, fmt.Errorf("text model: %w", err)
	}
	return parseDecision(resp)
}

func buildPrompt(history []chat.Message, specs []chat.ToolSpec) string {
	var b strings.Builder

	for _, msg := range history {
		if msg.Kind == chat.KindSystem {
			b.WriteString(msg.Text)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("AVAILABLE TOOLS:\n")
	if len(specs) == 0 {
		b.WriteString("(none)\n")
	}
	for _, spec := range specs {
		fmt.Fprintf(&b, "- %s: %s\n", spec.Name, spec.Description)
		if len(spec.InputSchema) > 0 {
			schema, _ := json.Marshal(spec.InputSchema)
			fmt.Fprintf(&b, "  input schema: %s\n", schema)
		}
		for _, ex := range spec.Examples {
			example, _ := json.Marshal(ex)
			fmt.Fprintf(&b, "  example: %s\n", example)
		}
	}

	b.WriteString("\nCONVERSATION:\n")
	for _, msg := range history {
		switch msg.Kind {
		case chat.KindUser:
			fmt.Fprintf(&b, "user: %s\n", msg.Text)
		case chat.KindAssistant:
			if len(msg.ToolRequests) > 0 {
				calls, _ := json.Marshal(msg.ToolRequests)
				fmt.Fprintf(&b, "assistant requested tools: %s\n", calls)
			} else {
				fmt.Fprintf(&b, "assistant: %s\n", msg.Text)
			}
		case chat.KindTool:
			label := "result"
			if msg.IsError {
				label = "error"
			}
			fmt.Fprintf(&b, "tool %s %s: %s\n", msg.ToolName, label, msg.Text)
		}
	}

	b.WriteString("\n")
	b.WriteString(promptProtocol)
	return b.String()
}

func parseDecision(resp string) (chat.Decision, error) {
	jsonStr := extractJSON(resp)
	if jsonStr == "" {
		return chat.Decision{}, fmt.Errorf("no JSON found in model response")
	}
	var parsed struct {
		Action string `json:"action"`
		Answer string `json:"answer"`
		Calls  []struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		} `json:"calls"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return chat.Decision{}, fmt.Errorf("parse model response: %w", err)
	}
	switch parsed.Action {
	case "final":
		return chat.FinalAnswer(parsed.Answer), nil
	case "tools":
		requests := make([]chat.ToolRequest, 0, len(parsed.Calls))
		for _, call := range parsed.Calls {
			if call.Name == "" {
				return chat.Decision{}, fmt.Errorf("model requested a tool without a name")
			}
			requests = append(requests, chat.ToolRequest{
				ID:        chat.NewRequestID(),
				Name:      call.Name,
				Arguments: call.Arguments,
			})
		}
		return chat.ToolCallBatch(requests...), nil
	default:
		return chat.Decision{}, fmt.Errorf("unknown action %q in model response", parsed.Action)
	}
}

// extractJSON returns the first balanced top-level JSON object in s.
func extractJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, ch := range s {
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}
	return ""
}
