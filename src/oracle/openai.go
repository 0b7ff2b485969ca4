package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/turnpike-ai/turnpike/src/chat"
)

// OpenAIOracle drives native function calling on the OpenAI chat API.
type OpenAIOracle struct {
	client *openai.Client
	model  string
}

func NewOpenAIOracle(apiKey, model string) *OpenAIOracle {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIOracle{client: openai.NewClient(apiKey), model: model}
}

var _ Oracle = (*OpenAIOracle)(nil)

func (o *OpenAIOracle) Decide(ctx context.Context, history []chat.Message, specs []chat.ToolSpec) (chat.Decision, error) {
	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: openAIMessages(history),
		Tools:    openAITools(specs),
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return chat.Decision{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return chat.Decision{}, fmt.Errorf("openai chat completion: no choices returned")
	}
	msg := resp.Choices[0].Message

	if len(msg.ToolCalls) == 0 {
		return chat.FinalAnswer(msg.Content), nil
	}
	requests := make([]chat.ToolRequest, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return chat.Decision{}, fmt.Errorf("openai tool call %s: bad arguments: %w", tc.Function.Name, err)
			}
		}
		id := tc.ID
		if id == "" {
			id = chat.NewRequestID()
		}
		requests = append(requests, chat.ToolRequest{ID: id, Name: tc.Function.Name, Arguments: args})
	}
	return chat.ToolCallBatch(requests...), nil
}

func openAIMessages(history []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		switch msg.Kind {
		case chat.KindSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Text,
			})
		case chat.KindUser:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Text,
			})
		case chat.KindAssistant:
			m := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Text,
			}
			for _, req := range msg.ToolRequests {
				args, _ := json.Marshal(req.Arguments)
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   req.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      req.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, m)
		case chat.KindTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Text,
				Name:       msg.ToolName,
				ToolCallID: msg.RequestID,
			})
		}
	}
	return out
}

func openAITools(specs []chat.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.InputSchema,
			},
		})
	}
	return out
}
