package turnpike

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/turnpike-ai/turnpike/src/chat"
	"github.com/turnpike-ai/turnpike/src/concurrent"
	"github.com/turnpike-ai/turnpike/src/oracle"
	"github.com/turnpike-ai/turnpike/src/session"
)

const defaultSystemPrompt = "You are a versatile assistant with access to tools. Use a tool only when the conversation needs it; answer simple questions directly. Be concise."

const (
	defaultMaxSteps    = 10
	defaultToolWorkers = 4
)

// Agent owns the conversation loop: it feeds the transcript to the oracle,
// executes requested tool batches, and commits every round-trip to the
// session store.
type Agent struct {
	oracle       oracle.Oracle
	store        session.Store
	catalog      ToolCatalog
	systemPrompt string

	maxSteps      int
	toolWorkers   int
	oracleTimeout time.Duration
	toolTimeout   time.Duration

	logger *slog.Logger

	mu    sync.Mutex
	turns map[string]*turnLock
}

// turnLock serializes turns on one session. The waiter count lets the lock
// be dropped from the map once nobody holds or wants it, so the map does not
// grow with every session id the process has ever seen.
type turnLock struct {
	mu      sync.Mutex
	waiters int
}

// Options configure a new Agent.
type Options struct {
	Oracle       oracle.Oracle
	Store        session.Store
	SystemPrompt string
	Tools        []Tool
	Catalog      ToolCatalog

	// MaxSteps bounds oracle round-trips per turn. 0 uses the default.
	MaxSteps int
	// ToolWorkers bounds concurrent tool executions within a batch.
	ToolWorkers int
	// OracleTimeout and ToolTimeout bound a single decision and a single
	// tool invocation. 0 means no bound beyond the caller's context.
	OracleTimeout time.Duration
	ToolTimeout   time.Duration

	Logger *slog.Logger
}

// New creates an Agent with the provided options.
func New(opts Options) (*Agent, error) {
	if opts.Oracle == nil {
		return nil, errors.New("agent requires an oracle")
	}
	if opts.Store == nil {
		return nil, errors.New("agent requires a session store")
	}

	catalog := opts.Catalog
	tolerant := false
	if catalog == nil {
		catalog = NewStaticToolCatalog(nil)
		tolerant = true
	}
	for _, tool := range opts.Tools {
		if tool == nil {
			continue
		}
		if err := catalog.Register(tool); err != nil {
			if tolerant {
				continue
			}
			return nil, err
		}
	}

	systemPrompt := opts.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	toolWorkers := opts.ToolWorkers
	if toolWorkers <= 0 {
		toolWorkers = defaultToolWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		oracle:        opts.Oracle,
		store:         opts.Store,
		catalog:       catalog,
		systemPrompt:  systemPrompt,
		maxSteps:      maxSteps,
		toolWorkers:   toolWorkers,
		oracleTimeout: opts.OracleTimeout,
		toolTimeout:   opts.ToolTimeout,
		logger:        logger,
	}, nil
}

// Catalog exposes the agent's tool catalog.
func (a *Agent) Catalog() ToolCatalog { return a.catalog }

// Store exposes the agent's session store.
func (a *Agent) Store() session.Store { return a.store }

// Send runs one full turn for the session: the user message is committed,
// then the loop alternates oracle decisions and tool batches until the
// oracle answers or the step budget runs out. Turns on the same session are
// serialized; distinct sessions run concurrently.
func (a *Agent) Send(ctx context.Context, sessionID, text string) (string, error) {
	unlock := a.lockSession(sessionID)
	defer unlock()

	if err := a.store.GetOrCreate(ctx, sessionID); err != nil {
		return "", fmt.Errorf("session %s: %w", sessionID, err)
	}
	if err := a.store.Append(ctx, sessionID, chat.UserMessage(text)); err != nil {
		return "", fmt.Errorf("append user message: %w", err)
	}

	specs := a.catalog.Specs()
	for step := 0; step < a.maxSteps; step++ {
		history, err := a.store.History(ctx, sessionID)
		if err != nil {
			return "", fmt.Errorf("load history: %w", err)
		}

		decision, err := a.decide(ctx, history, specs)
		if err != nil {
			a.logger.Error("oracle decision failed", "session", sessionID, "step", step, "error", err)
			return "", fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
		}

		if decision.IsFinal() {
			if err := a.store.Append(ctx, sessionID, chat.AssistantMessage(decision.Answer)); err != nil {
				return "", fmt.Errorf("append assistant message: %w", err)
			}
			a.logger.Info("turn complete", "session", sessionID, "steps", step+1)
			return decision.Answer, nil
		}

		a.logger.Info("executing tool batch", "session", sessionID, "step", step, "calls", len(decision.Calls))
		staged, err := a.runBatch(ctx, sessionID, decision.Calls)
		if err != nil {
			// Nothing from this round-trip was committed; the transcript
			// still ends at the last completed exchange.
			return "", err
		}
		if err := a.store.Append(ctx, sessionID, staged...); err != nil {
			return "", fmt.Errorf("commit tool batch: %w", err)
		}
	}

	a.logger.Warn("turn exceeded step budget", "session", sessionID, "max_steps", a.maxSteps)
	return "", ErrLoopExceeded
}

func (a *Agent) decide(ctx context.Context, history []chat.Message, specs []chat.ToolSpec) (chat.Decision, error) {
	if a.oracleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.oracleTimeout)
		defer cancel()
	}
	// The system prompt rides along on every decision but is never stored,
	// so transcripts hold only the actual exchange.
	withSystem := make([]chat.Message, 0, len(history)+1)
	withSystem = append(withSystem, chat.SystemMessage(a.systemPrompt))
	withSystem = append(withSystem, history...)
	return a.oracle.Decide(ctx, withSystem, specs)
}

// runBatch executes every request concurrently and returns the staged
// messages for one atomic commit: the assistant's request message followed
// by one result per request, in request order. Tool failures and unknown
// tools become error results; only context cancellation aborts the batch.
func (a *Agent) runBatch(ctx context.Context, sessionID string, calls []chat.ToolRequest) ([]chat.Message, error) {
	results, err := concurrent.ParallelMap(ctx, calls, func(call chat.ToolRequest) (chat.Message, error) {
		return a.invokeTool(ctx, sessionID, call)
	}, a.toolWorkers)
	if err != nil {
		return nil, err
	}

	staged := make([]chat.Message, 0, len(calls)+1)
	staged = append(staged, chat.AssistantToolCalls(chat.CloneRequests(calls)))
	staged = append(staged, results...)
	return staged, nil
}

func (a *Agent) invokeTool(ctx context.Context, sessionID string, call chat.ToolRequest) (chat.Message, error) {
	tool, _, ok := a.catalog.Lookup(call.Name)
	if !ok {
		a.logger.Warn("unknown tool requested", "session", sessionID, "tool", call.Name)
		return chat.ToolErrorMessage(call.ID, call.Name, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)), nil
	}

	callCtx := ctx
	if a.toolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.toolTimeout)
		defer cancel()
	}

	resp, err := tool.Invoke(callCtx, ToolRequest{SessionID: sessionID, Arguments: call.Arguments})
	if err != nil {
		if ctx.Err() != nil {
			// The caller is gone; abandon the batch instead of feeding a
			// cancellation back to the model.
			return chat.Message{}, ctx.Err()
		}
		a.logger.Warn("tool failed", "session", sessionID, "tool", call.Name, "error", err)
		return chat.ToolErrorMessage(call.ID, call.Name, fmt.Errorf("%w: %v", ErrToolExecution, err)), nil
	}
	return chat.ToolResultMessage(call.ID, call.Name, resp.Content), nil
}

func (a *Agent) lockSession(sessionID string) func() {
	a.mu.Lock()
	if a.turns == nil {
		a.turns = make(map[string]*turnLock)
	}
	lock, ok := a.turns[sessionID]
	if !ok {
		lock = &turnLock{}
		a.turns[sessionID] = lock
	}
	lock.waiters++
	a.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		a.mu.Lock()
		lock.waiters--
		if lock.waiters == 0 {
			delete(a.turns, sessionID)
		}
		a.mu.Unlock()
	}
}
