package chat

// ToolSpec describes how a tool is presented to the oracle.
type ToolSpec struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema map[string]any   `json:"input_schema"`
	Examples    []map[string]any `json:"examples,omitempty"`
}

// Decision is the oracle's verdict for one round-trip: either a final answer
// (empty Calls) or an ordered batch of tool requests.
type Decision struct {
	Answer string
	Calls  []ToolRequest
}

// IsFinal reports whether the decision terminates the turn. An empty batch is
// treated as a final answer so a confused oracle cannot spin the loop.
func (d Decision) IsFinal() bool {
	return len(d.Calls) == 0
}

// FinalAnswer builds a terminal decision.
func FinalAnswer(text string) Decision {
	return Decision{Answer: text}
}

// ToolCallBatch builds a non-terminal decision requesting the given calls.
func ToolCallBatch(calls ...ToolRequest) Decision {
	return Decision{Calls: calls}
}
