// Package oracle adapts language-model providers to a single decision
// interface: given the transcript so far and the advertised tools, produce
// either a final answer or a batch of tool calls.
package oracle

import (
	"context"

	"github.com/turnpike-ai/turnpike/src/chat"
)

// Oracle is the decision maker of the orchestration loop. Implementations
// never execute tools themselves; they only choose.
type Oracle interface {
	Decide(ctx context.Context, history []chat.Message, specs []chat.ToolSpec) (chat.Decision, error)
}
