package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/turnpike-ai/turnpike/src/chat"
)

// AnthropicOracle drives native tool use on the Anthropic messages API.
type AnthropicOracle struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

func NewAnthropicOracle(apiKey, model string) *AnthropicOracle {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &AnthropicOracle{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: 1024,
	}
}

var _ Oracle = (*AnthropicOracle)(nil)

func (o *AnthropicOracle) Decide(ctx context.Context, history []chat.Message, specs []chat.ToolSpec) (chat.Decision, error) {
	system, messages := anthropicMessages(history)
	params := anthropic.MessageNewParams{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages:  messages,
		Tools:     anthropicTools(specs),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	msg, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return chat.Decision{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var (
		texts    []string
		requests []chat.ToolRequest
	)
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			if v.Text != "" {
				texts = append(texts, v.Text)
			}
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			raw := json.RawMessage(v.JSON.Input.Raw())
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return chat.Decision{}, fmt.Errorf("anthropic tool call %s: bad arguments: %w", v.Name, err)
				}
			}
			requests = append(requests, chat.ToolRequest{ID: v.ID, Name: v.Name, Arguments: args})
		}
	}
	if len(requests) > 0 {
		return chat.ToolCallBatch(requests...), nil
	}
	return chat.FinalAnswer(strings.Join(texts, "\n")), nil
}

// anthropicMessages converts a transcript into messages params. System text
// is lifted out since the API carries it separately, and consecutive tool
// results are grouped into a single user message so each tool_use block is
// answered directly by the following message.
func anthropicMessages(history []chat.Message) (string, []anthropic.MessageParam) {
	var (
		system   []string
		messages []anthropic.MessageParam
		results  []anthropic.ContentBlockParamUnion
	)
	flushResults := func() {
		if len(results) > 0 {
			messages = append(messages, anthropic.NewUserMessage(results...))
			results = nil
		}
	}
	for _, msg := range history {
		if msg.Kind != chat.KindTool {
			flushResults()
		}
		switch msg.Kind {
		case chat.KindSystem:
			system = append(system, msg.Text)
		case chat.KindUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
		case chat.KindAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
			}
			for _, req := range msg.ToolRequests {
				args := req.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    req.ID,
						Name:  req.Name,
						Input: args,
					},
				})
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case chat.KindTool:
			results = append(results, anthropic.NewToolResultBlock(msg.RequestID, msg.Text, msg.IsError))
		}
	}
	flushResults()
	return strings.Join(system, "\n"), messages
}

func anthropicTools(specs []chat.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := spec.InputSchema["properties"]; ok {
			schema.Properties = props
		}
		if req, ok := spec.InputSchema["required"].([]string); ok {
			schema.Required = req
		} else if reqAny, ok := spec.InputSchema["required"].([]any); ok {
			for _, r := range reqAny {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
			InputSchema: schema,
		}})
	}
	return out
}
