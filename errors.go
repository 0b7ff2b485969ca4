package turnpike

import "errors"

var (
	// ErrUnknownTool marks a request for a tool the catalog does not have.
	// It is surfaced to the model as an error result, never to the caller.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrLoopExceeded is returned when a single turn uses up its decision
	// budget without reaching a final answer.
	ErrLoopExceeded = errors.New("loop iteration limit exceeded")

	// ErrOracleUnavailable wraps a decision-maker failure. The turn is
	// aborted and the transcript keeps only the user message.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrToolExecution wraps a tool failure inside a batch. Like unknown
	// tools it is folded into an error result for the model.
	ErrToolExecution = errors.New("tool execution failed")
)
