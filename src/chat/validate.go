package chat

import (
	"errors"
	"fmt"
)

var ErrTranscriptInvalid = errors.New("transcript invalid")

// ValidateTranscript checks the request/result pairing invariant: every tool
// message must answer a request emitted by the nearest preceding assistant
// message, and all requests of an assistant message must be answered before
// another assistant message appears. Result order within a batch is free.
func ValidateTranscript(messages []Message) error {
	pending := map[string]string{} // request id -> tool name
	for i, msg := range messages {
		switch msg.Kind {
		case KindAssistant:
			if len(pending) > 0 {
				return fmt.Errorf("%w: message %d: assistant message while %d tool requests unanswered", ErrTranscriptInvalid, i, len(pending))
			}
			for _, req := range msg.ToolRequests {
				if req.ID == "" {
					return fmt.Errorf("%w: message %d: tool request %q has no id", ErrTranscriptInvalid, i, req.Name)
				}
				if _, dup := pending[req.ID]; dup {
					return fmt.Errorf("%w: message %d: duplicate tool request id %q", ErrTranscriptInvalid, i, req.ID)
				}
				pending[req.ID] = req.Name
			}
		case KindTool:
			name, ok := pending[msg.RequestID]
			if !ok {
				return fmt.Errorf("%w: message %d: tool result %q answers no pending request", ErrTranscriptInvalid, i, msg.RequestID)
			}
			if name != msg.ToolName {
				return fmt.Errorf("%w: message %d: tool result names %q, request %q was for %q", ErrTranscriptInvalid, i, msg.ToolName, msg.RequestID, name)
			}
			delete(pending, msg.RequestID)
		case KindUser, KindSystem:
			if len(pending) > 0 {
				return fmt.Errorf("%w: message %d: %s message while tool requests unanswered", ErrTranscriptInvalid, i, msg.Kind)
			}
		default:
			return fmt.Errorf("%w: message %d: unknown kind %q", ErrTranscriptInvalid, i, msg.Kind)
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: transcript ends with %d tool requests unanswered", ErrTranscriptInvalid, len(pending))
	}
	return nil
}
