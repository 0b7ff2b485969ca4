package turnpike

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/turnpike-ai/turnpike/src/chat"
	"github.com/turnpike-ai/turnpike/src/oracle"
	"github.com/turnpike-ai/turnpike/src/session"
)

type stubTool struct {
	name string
	err  error
	// delay lets ordering tests make early requests finish last.
	delay time.Duration

	mu    sync.Mutex
	calls []ToolRequest
}

func (t *stubTool) Spec() chat.ToolSpec {
	return chat.ToolSpec{
		Name:        t.name,
		Description: "stub tool for loop tests",
		InputSchema: map[string]any{"type": "object"},
	}
}

func (t *stubTool) Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	t.mu.Lock()
	t.calls = append(t.calls, req)
	t.mu.Unlock()

	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return ToolResponse{}, ctx.Err()
		}
	}
	if t.err != nil {
		return ToolResponse{}, t.err
	}
	return ToolResponse{Content: fmt.Sprintf("%s ran with %v", t.name, req.Arguments)}, nil
}

type blockingTool struct {
	name    string
	started chan struct{}
	once    sync.Once
}

func (t *blockingTool) Spec() chat.ToolSpec {
	return chat.ToolSpec{Name: t.name, InputSchema: map[string]any{"type": "object"}}
}

func (t *blockingTool) Invoke(ctx context.Context, _ ToolRequest) (ToolResponse, error) {
	t.once.Do(func() { close(t.started) })
	<-ctx.Done()
	return ToolResponse{}, ctx.Err()
}

func newTestAgent(t *testing.T, script *oracle.Scripted, tools ...Tool) *Agent {
	t.Helper()
	agent, err := New(Options{
		Oracle: script,
		Store:  session.NewMemoryStore(session.MemoryOptions{}),
		Tools:  tools,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return agent
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{Store: session.NewMemoryStore(session.MemoryOptions{})}); err == nil {
		t.Fatalf("expected error for missing oracle")
	}
	if _, err := New(Options{Oracle: &oracle.Scripted{}}); err == nil {
		t.Fatalf("expected error for missing store")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	agent := newTestAgent(t, &oracle.Scripted{})
	if agent.maxSteps != defaultMaxSteps {
		t.Fatalf("expected default max steps %d, got %d", defaultMaxSteps, agent.maxSteps)
	}
	if agent.toolWorkers != defaultToolWorkers {
		t.Fatalf("expected default tool workers %d, got %d", defaultToolWorkers, agent.toolWorkers)
	}
	if agent.systemPrompt == "" {
		t.Fatalf("expected default system prompt to be applied")
	}
}

func TestSendFinalAnswer(t *testing.T) {
	script := &oracle.Scripted{Steps: []chat.Decision{chat.FinalAnswer("Hello!")}}
	agent := newTestAgent(t, script)

	answer, err := agent.Send(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if answer != "Hello!" {
		t.Fatalf("unexpected answer: %q", answer)
	}

	history, err := agent.Store().History(context.Background(), "s1")
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 transcript entries, got %d: %v", len(history), history)
	}
	if history[0].Kind != chat.KindUser || history[0].Text != "hello" {
		t.Fatalf("unexpected first entry: %+v", history[0])
	}
	if history[1].Kind != chat.KindAssistant || history[1].Text != "Hello!" {
		t.Fatalf("unexpected second entry: %+v", history[1])
	}

	// The oracle sees the system prompt but the store never does.
	seen := script.HistoryAt(0)
	if len(seen) != 2 || seen[0].Kind != chat.KindSystem {
		t.Fatalf("oracle should see system prompt plus user message, got %v", seen)
	}
}

func TestSendToolBatchRoundTrip(t *testing.T) {
	weather := &stubTool{name: "weather_checker"}
	script := &oracle.Scripted{Steps: []chat.Decision{
		chat.ToolCallBatch(chat.ToolRequest{ID: "call-1", Name: "weather_checker", Arguments: map[string]any{"city": "Tokyo"}}),
		chat.FinalAnswer("It is clear in Tokyo."),
	}}
	agent := newTestAgent(t, script, weather)

	answer, err := agent.Send(context.Background(), "s1", "weather in tokyo?")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if answer != "It is clear in Tokyo." {
		t.Fatalf("unexpected answer: %q", answer)
	}

	history, _ := agent.Store().History(context.Background(), "s1")
	if len(history) != 4 {
		t.Fatalf("expected 4 transcript entries, got %d: %v", len(history), history)
	}
	if history[1].Kind != chat.KindAssistant || len(history[1].ToolRequests) != 1 {
		t.Fatalf("expected assistant tool-call entry, got %+v", history[1])
	}
	if history[2].Kind != chat.KindTool || history[2].RequestID != "call-1" || history[2].IsError {
		t.Fatalf("expected tool result paired with call-1, got %+v", history[2])
	}
	if history[3].Kind != chat.KindAssistant || history[3].Text != "It is clear in Tokyo." {
		t.Fatalf("unexpected final entry: %+v", history[3])
	}

	// The second decision must have seen the committed tool result.
	seen := script.HistoryAt(1)
	var sawResult bool
	for _, msg := range seen {
		if msg.Kind == chat.KindTool && msg.RequestID == "call-1" {
			sawResult = true
		}
	}
	if !sawResult {
		t.Fatalf("second decision did not see the tool result: %v", seen)
	}

	if len(weather.calls) != 1 || weather.calls[0].SessionID != "s1" {
		t.Fatalf("tool saw unexpected requests: %+v", weather.calls)
	}
}

func TestSendBatchResultsKeepRequestOrder(t *testing.T) {
	slow := &stubTool{name: "slow", delay: 30 * time.Millisecond}
	fast := &stubTool{name: "fast"}
	script := &oracle.Scripted{Steps: []chat.Decision{
		chat.ToolCallBatch(
			chat.ToolRequest{ID: "r1", Name: "slow"},
			chat.ToolRequest{ID: "r2", Name: "fast"},
			chat.ToolRequest{ID: "r3", Name: "fast"},
		),
		chat.FinalAnswer("done"),
	}}
	agent := newTestAgent(t, script, slow, fast)

	if _, err := agent.Send(context.Background(), "s1", "go"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	history, _ := agent.Store().History(context.Background(), "s1")
	if len(history) != 6 {
		t.Fatalf("expected 6 transcript entries, got %d", len(history))
	}
	wantIDs := []string{"r1", "r2", "r3"}
	for i, want := range wantIDs {
		got := history[2+i]
		if got.Kind != chat.KindTool || got.RequestID != want {
			t.Fatalf("result %d should pair with %s, got %+v", i, want, got)
		}
	}
}

func TestSendUnknownToolBecomesErrorResult(t *testing.T) {
	script := &oracle.Scripted{Steps: []chat.Decision{
		chat.ToolCallBatch(chat.ToolRequest{ID: "r1", Name: "bogus_tool"}),
		chat.FinalAnswer("that tool does not exist"),
	}}
	agent := newTestAgent(t, script)

	answer, err := agent.Send(context.Background(), "s1", "use bogus_tool")
	if err != nil {
		t.Fatalf("unknown tool should not abort the turn: %v", err)
	}
	if answer != "that tool does not exist" {
		t.Fatalf("unexpected answer: %q", answer)
	}

	history, _ := agent.Store().History(context.Background(), "s1")
	if len(history) != 4 {
		t.Fatalf("expected 4 transcript entries, got %d", len(history))
	}
	result := history[2]
	if !result.IsError || result.RequestID != "r1" {
		t.Fatalf("expected error result for r1, got %+v", result)
	}
	if !strings.Contains(result.Text, "unknown tool") {
		t.Fatalf("error result should name the failure: %q", result.Text)
	}
}

func TestSendToolFailureIsContained(t *testing.T) {
	broken := &stubTool{name: "broken", err: errors.New("backend exploded")}
	script := &oracle.Scripted{Steps: []chat.Decision{
		chat.ToolCallBatch(chat.ToolRequest{ID: "r1", Name: "broken"}),
		chat.FinalAnswer("the tool is down"),
	}}
	agent := newTestAgent(t, script, broken)

	answer, err := agent.Send(context.Background(), "s1", "try it")
	if err != nil {
		t.Fatalf("tool failure should not abort the turn: %v", err)
	}
	if answer != "the tool is down" {
		t.Fatalf("unexpected answer: %q", answer)
	}

	history, _ := agent.Store().History(context.Background(), "s1")
	result := history[2]
	if !result.IsError {
		t.Fatalf("expected error result, got %+v", result)
	}
	if !strings.Contains(result.Text, "backend exploded") {
		t.Fatalf("error result should carry the tool error: %q", result.Text)
	}
}

func TestSendStepBudgetExhausted(t *testing.T) {
	echo := &stubTool{name: "echo"}
	script := &oracle.Scripted{Steps: []chat.Decision{
		chat.ToolCallBatch(chat.ToolRequest{ID: "r1", Name: "echo"}),
		chat.ToolCallBatch(chat.ToolRequest{ID: "r2", Name: "echo"}),
		chat.ToolCallBatch(chat.ToolRequest{ID: "r3", Name: "echo"}),
	}}
	agent, err := New(Options{
		Oracle:   script,
		Store:    session.NewMemoryStore(session.MemoryOptions{}),
		Tools:    []Tool{echo},
		MaxSteps: 2,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := agent.Send(context.Background(), "s1", "loop forever"); !errors.Is(err, ErrLoopExceeded) {
		t.Fatalf("expected ErrLoopExceeded, got %v", err)
	}

	// Completed round-trips stay committed: user message plus two batches.
	history, _ := agent.Store().History(context.Background(), "s1")
	if len(history) != 5 {
		t.Fatalf("expected 5 transcript entries, got %d: %v", len(history), history)
	}
}

func TestSendOracleFailureLeavesOnlyUserMessage(t *testing.T) {
	script := &oracle.Scripted{Err: errors.New("provider down")}
	agent := newTestAgent(t, script)

	_, err := agent.Send(context.Background(), "s1", "hello")
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}

	history, _ := agent.Store().History(context.Background(), "s1")
	if len(history) != 1 || history[0].Kind != chat.KindUser {
		t.Fatalf("expected only the user message, got %v", history)
	}
}

func TestSendCancellationAbortsBatchUncommitted(t *testing.T) {
	blocker := &blockingTool{name: "blocker", started: make(chan struct{})}
	script := &oracle.Scripted{Steps: []chat.Decision{
		chat.ToolCallBatch(chat.ToolRequest{ID: "r1", Name: "blocker"}),
	}}
	agent := newTestAgent(t, script, blocker)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-blocker.started
		cancel()
	}()

	if _, err := agent.Send(ctx, "s1", "block"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The aborted batch left nothing behind.
	history, _ := agent.Store().History(context.Background(), "s1")
	if len(history) != 1 || history[0].Kind != chat.KindUser {
		t.Fatalf("expected only the user message, got %v", history)
	}
}

func TestSendSessionsAreIsolated(t *testing.T) {
	script := &oracle.Scripted{Steps: []chat.Decision{
		chat.FinalAnswer("answer for A"),
		chat.FinalAnswer("answer for B"),
	}}
	agent := newTestAgent(t, script)

	if _, err := agent.Send(context.Background(), "session-a", "question A"); err != nil {
		t.Fatalf("Send A returned error: %v", err)
	}
	if _, err := agent.Send(context.Background(), "session-b", "question B"); err != nil {
		t.Fatalf("Send B returned error: %v", err)
	}

	histA, _ := agent.Store().History(context.Background(), "session-a")
	histB, _ := agent.Store().History(context.Background(), "session-b")
	if len(histA) != 2 || len(histB) != 2 {
		t.Fatalf("expected 2 entries each, got %d and %d", len(histA), len(histB))
	}
	if histA[0].Text != "question A" || histB[0].Text != "question B" {
		t.Fatalf("sessions leaked into each other: %v / %v", histA, histB)
	}
	if histA[1].Text != "answer for A" || histB[1].Text != "answer for B" {
		t.Fatalf("answers crossed sessions: %v / %v", histA, histB)
	}
}

func TestSendConcurrentSessions(t *testing.T) {
	const sessions = 8
	steps := make([]chat.Decision, sessions)
	for i := range steps {
		steps[i] = chat.FinalAnswer("done")
	}
	agent := newTestAgent(t, &oracle.Scripted{Steps: steps})

	var wg sync.WaitGroup
	errs := make(chan error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			if _, err := agent.Send(context.Background(), id, "hello"); err != nil {
				errs <- fmt.Errorf("session %s: %w", id, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	ids, err := agent.Store().Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions returned error: %v", err)
	}
	if len(ids) != sessions {
		t.Fatalf("expected %d sessions, got %d", sessions, len(ids))
	}
	for _, id := range ids {
		history, _ := agent.Store().History(context.Background(), id)
		if len(history) != 2 {
			t.Fatalf("session %s has %d entries, want 2", id, len(history))
		}
	}
}

func TestSendPrunesIdleSessionLocks(t *testing.T) {
	script := &oracle.Scripted{Steps: []chat.Decision{
		chat.FinalAnswer("one"),
		chat.FinalAnswer("two"),
	}}
	agent := newTestAgent(t, script)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := agent.Send(context.Background(), "shared", "hello"); err != nil {
				t.Errorf("Send: %v", err)
			}
		}()
	}
	wg.Wait()

	// Both turns landed intact, serialized on the same session.
	history, _ := agent.Store().History(context.Background(), "shared")
	if len(history) != 4 {
		t.Fatalf("expected 4 transcript entries, got %d: %v", len(history), history)
	}

	agent.mu.Lock()
	live := len(agent.turns)
	agent.mu.Unlock()
	if live != 0 {
		t.Fatalf("idle session locks should be pruned, %d remain", live)
	}
}

func TestSendEmptyBatchIsFinal(t *testing.T) {
	script := &oracle.Scripted{Steps: []chat.Decision{chat.ToolCallBatch()}}
	agent := newTestAgent(t, script)

	answer, err := agent.Send(context.Background(), "s1", "hmm")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if answer != "" {
		t.Fatalf("empty batch should finish with an empty answer, got %q", answer)
	}
	if script.Calls() != 1 {
		t.Fatalf("expected a single decision, got %d", script.Calls())
	}
}
