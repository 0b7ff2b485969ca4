package chat

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidateTranscriptPairing(t *testing.T) {
	req := ToolRequest{ID: "r1", Name: "weather_checker", Arguments: map[string]any{"city": "Lagos"}}
	good := []Message{
		UserMessage("weather in Lagos?"),
		AssistantToolCalls([]ToolRequest{req}),
		ToolResultMessage("r1", "weather_checker", "28C, partly cloudy"),
		AssistantMessage("It is 28C in Lagos."),
	}
	if err := ValidateTranscript(good); err != nil {
		t.Fatalf("valid transcript rejected: %v", err)
	}
}

func TestValidateTranscriptOrphanedResult(t *testing.T) {
	bad := []Message{
		UserMessage("hi"),
		ToolResultMessage("ghost", "weather_checker", "nope"),
	}
	err := ValidateTranscript(bad)
	if !errors.Is(err, ErrTranscriptInvalid) {
		t.Fatalf("expected ErrTranscriptInvalid, got %v", err)
	}
}

func TestValidateTranscriptUnansweredRequest(t *testing.T) {
	bad := []Message{
		UserMessage("hi"),
		AssistantToolCalls([]ToolRequest{{ID: "r1", Name: "echo"}}),
	}
	if err := ValidateTranscript(bad); !errors.Is(err, ErrTranscriptInvalid) {
		t.Fatalf("expected ErrTranscriptInvalid, got %v", err)
	}
}

func TestValidateTranscriptResultOrderIsFree(t *testing.T) {
	msgs := []Message{
		UserMessage("both please"),
		AssistantToolCalls([]ToolRequest{
			{ID: "a", Name: "weather_checker"},
			{ID: "b", Name: "dictionary_lookup"},
		}),
		ToolResultMessage("b", "dictionary_lookup", "def"),
		ToolResultMessage("a", "weather_checker", "rain"),
		AssistantMessage("done"),
	}
	if err := ValidateTranscript(msgs); err != nil {
		t.Fatalf("out-of-order results should be valid: %v", err)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	original := []Message{
		SystemMessage("be helpful"),
		UserMessage("weather?"),
		AssistantToolCalls([]ToolRequest{{ID: "r1", Name: "weather_checker", Arguments: map[string]any{"city": "Tokyo"}}}),
		ToolErrorMessage("r1", "weather_checker", errors.New("upstream down")),
		AssistantMessage("Sorry, the weather service is down."),
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("got %d messages, want %d", len(decoded), len(original))
	}
	if decoded[2].ToolRequests[0].ID != "r1" {
		t.Fatalf("request id lost: %+v", decoded[2])
	}
	if !decoded[3].IsError {
		t.Fatalf("error flag lost: %+v", decoded[3])
	}
	if err := ValidateTranscript(decoded); err != nil {
		t.Fatalf("decoded transcript invalid: %v", err)
	}
}

func TestCloneMessagesIsDeep(t *testing.T) {
	msgs := []Message{AssistantToolCalls([]ToolRequest{{ID: "r1", Name: "echo", Arguments: map[string]any{"input": "x"}}})}
	cloned := CloneMessages(msgs)
	cloned[0].ToolRequests[0].Arguments["input"] = "mutated"
	if msgs[0].ToolRequests[0].Arguments["input"] != "x" {
		t.Fatalf("clone shares argument map")
	}
}

func TestDecisionIsFinal(t *testing.T) {
	if !FinalAnswer("hello").IsFinal() {
		t.Fatalf("final answer must be terminal")
	}
	if !(Decision{}).IsFinal() {
		t.Fatalf("empty batch must be treated as terminal")
	}
	if ToolCallBatch(ToolRequest{ID: "r", Name: "echo"}).IsFinal() {
		t.Fatalf("non-empty batch must not be terminal")
	}
}
