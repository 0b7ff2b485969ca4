package chat

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind discriminates the message variants in a transcript.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindTool      Kind = "tool"
	KindSystem    Kind = "system"
)

// ToolRequest is a single tool invocation requested by the oracle.
type ToolRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is one entry in a session transcript. The Kind field selects the
// variant; only an assistant message carries ToolRequests, and only a tool
// message carries RequestID/ToolName.
type Message struct {
	Kind         Kind          `json:"kind"`
	Text         string        `json:"text,omitempty"`
	ToolRequests []ToolRequest `json:"tool_requests,omitempty"`
	RequestID    string        `json:"request_id,omitempty"`
	ToolName     string        `json:"tool_name,omitempty"`
	IsError      bool          `json:"is_error,omitempty"`
}

// NewRequestID returns a fresh identifier for a ToolRequest.
func NewRequestID() string {
	return uuid.NewString()
}

func UserMessage(text string) Message {
	return Message{Kind: KindUser, Text: text}
}

func SystemMessage(text string) Message {
	return Message{Kind: KindSystem, Text: text}
}

func AssistantMessage(text string) Message {
	return Message{Kind: KindAssistant, Text: text}
}

// AssistantToolCalls builds the assistant message that opens a tool batch.
func AssistantToolCalls(requests []ToolRequest) Message {
	return Message{Kind: KindAssistant, ToolRequests: CloneRequests(requests)}
}

func ToolResultMessage(requestID, toolName, text string) Message {
	return Message{Kind: KindTool, RequestID: requestID, ToolName: toolName, Text: text}
}

// ToolErrorMessage records a failed tool invocation so the oracle can react
// to it on the next round-trip instead of the turn aborting.
func ToolErrorMessage(requestID, toolName string, err error) Message {
	return Message{
		Kind:      KindTool,
		RequestID: requestID,
		ToolName:  toolName,
		Text:      fmt.Sprintf("tool %s failed: %v", toolName, err),
		IsError:   true,
	}
}

// CloneRequests deep-copies a request slice so callers cannot mutate a
// transcript after it was appended.
func CloneRequests(requests []ToolRequest) []ToolRequest {
	if len(requests) == 0 {
		return nil
	}
	out := make([]ToolRequest, len(requests))
	for i, req := range requests {
		out[i] = req
		if req.Arguments != nil {
			args := make(map[string]any, len(req.Arguments))
			for k, v := range req.Arguments {
				args[k] = v
			}
			out[i].Arguments = args
		}
	}
	return out
}

// CloneMessages copies a transcript slice (requests included).
func CloneMessages(messages []Message) []Message {
	if len(messages) == 0 {
		return nil
	}
	out := make([]Message, len(messages))
	for i, msg := range messages {
		out[i] = msg
		out[i].ToolRequests = CloneRequests(msg.ToolRequests)
	}
	return out
}

func (m Message) String() string {
	switch m.Kind {
	case KindAssistant:
		if len(m.ToolRequests) > 0 {
			names := make([]string, len(m.ToolRequests))
			for i, req := range m.ToolRequests {
				names[i] = req.Name
			}
			return fmt.Sprintf("assistant calls [%s]", strings.Join(names, ", "))
		}
		return "assistant: " + m.Text
	case KindTool:
		return fmt.Sprintf("tool %s: %s", m.ToolName, m.Text)
	default:
		return string(m.Kind) + ": " + m.Text
	}
}
