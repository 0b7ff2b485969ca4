package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/turnpike-ai/turnpike"
	"github.com/turnpike-ai/turnpike/src/chat"
)

type calculatorInput struct {
	Expression string `json:"expression" jsonschema_description:"Expression in the form '<number> <operator> <number>'."`
}

// CalculatorTool evaluates basic arithmetic expressions in the form "a op b".
type CalculatorTool struct{}

func (c *CalculatorTool) Spec() chat.ToolSpec {
	return chat.ToolSpec{
		Name:        "calculator",
		Description: "Evaluates simple math expressions such as '2 + 2' or '5 * 3'.",
		InputSchema: GenerateSchema[calculatorInput](),
		Examples: []map[string]any{
			{"expression": "2 + 2"},
			{"expression": "17 / 4"},
		},
	}
}

func (c *CalculatorTool) Invoke(_ context.Context, req turnpike.ToolRequest) (turnpike.ToolResponse, error) {
	exprRaw, ok := req.Arguments["expression"]
	if !ok {
		return turnpike.ToolResponse{}, fmt.Errorf("missing 'expression' argument")
	}
	expression := strings.TrimSpace(fmt.Sprint(exprRaw))
	fields := strings.Fields(expression)
	if len(fields) != 3 {
		return turnpike.ToolResponse{}, fmt.Errorf("expected format '<number> <op> <number>'")
	}

	left, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return turnpike.ToolResponse{}, fmt.Errorf("invalid left operand: %w", err)
	}
	right, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return turnpike.ToolResponse{}, fmt.Errorf("invalid right operand: %w", err)
	}

	var result float64
	switch fields[1] {
	case "+":
		result = left + right
	case "-":
		result = left - right
	case "*", "x", "X":
		result = left * right
	case "/":
		if math.Abs(right) < 1e-12 {
			return turnpike.ToolResponse{}, fmt.Errorf("division by zero")
		}
		result = left / right
	default:
		return turnpike.ToolResponse{}, fmt.Errorf("unsupported operator %q", fields[1])
	}

	return turnpike.ToolResponse{Content: strconv.FormatFloat(result, 'f', -1, 64)}, nil
}
