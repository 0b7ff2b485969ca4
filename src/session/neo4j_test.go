package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/turnpike-ai/turnpike/src/chat"
)

// fakeGraph is a minimal in-process stand-in for the graph database. It
// understands only the queries the store issues and applies transactional
// writes on commit, so append atomicity is observable.
type fakeGraph struct {
	sessions map[string][]fakeMessage
}

type fakeMessage struct {
	seq     int64
	payload string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{sessions: make(map[string][]fakeMessage)}
}

type fakeDriver struct {
	graph  *fakeGraph
	closed bool
}

func (d *fakeDriver) NewSession(_ context.Context, _ Neo4jSessionConfig) (neo4jSession, error) {
	if d.closed {
		return nil, errors.New("driver closed")
	}
	return &fakeSession{graph: d.graph}, nil
}

func (d *fakeDriver) Close(context.Context) error {
	d.closed = true
	return nil
}

type fakeSession struct {
	graph *fakeGraph
}

func (s *fakeSession) BeginTransaction(context.Context) (neo4jTransaction, error) {
	return &fakeTx{graph: s.graph, pending: make(map[string][]fakeMessage)}, nil
}

func (s *fakeSession) Run(_ context.Context, query string, params map[string]any) (neo4jResult, error) {
	return runFakeQuery(s.graph, s.graph.sessions, query, params)
}

func (s *fakeSession) Close(context.Context) error { return nil }

type fakeTx struct {
	graph   *fakeGraph
	pending map[string][]fakeMessage
	created []string
	done    bool
}

func (t *fakeTx) Run(_ context.Context, query string, params map[string]any) (neo4jResult, error) {
	if strings.Contains(query, "CREATE (m:Message") {
		id := params["id"].(string)
		t.created = append(t.created, id)
		t.pending[id] = append(t.pending[id], fakeMessage{
			seq:     params["seq"].(int64),
			payload: params["payload"].(string),
		})
		return &fakeResult{}, nil
	}
	// Reads inside the transaction see committed state plus pending writes.
	merged := make(map[string][]fakeMessage, len(t.graph.sessions))
	for id, msgs := range t.graph.sessions {
		merged[id] = append(merged[id], msgs...)
	}
	for id, msgs := range t.pending {
		merged[id] = append(merged[id], msgs...)
	}
	return runFakeQuery(t.graph, merged, query, params)
}

func (t *fakeTx) Commit(context.Context) error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	for _, id := range t.created {
		if _, ok := t.graph.sessions[id]; !ok {
			t.graph.sessions[id] = nil
		}
	}
	for id, msgs := range t.pending {
		t.graph.sessions[id] = append(t.graph.sessions[id], msgs...)
	}
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.done = true
	t.pending = nil
	return nil
}

func (t *fakeTx) Close(context.Context) error { return nil }

func runFakeQuery(graph *fakeGraph, view map[string][]fakeMessage, query string, params map[string]any) (neo4jResult, error) {
	switch {
	case strings.Contains(query, "coalesce(max(m.seq)"):
		id := params["id"].(string)
		max := int64(-1)
		for _, m := range view[id] {
			if m.seq > max {
				max = m.seq
			}
		}
		return &fakeResult{rows: []fakeRecord{{"max_seq": max}}}, nil
	case strings.Contains(query, "RETURN m.seq AS seq"):
		id := params["id"].(string)
		msgs := append([]fakeMessage(nil), view[id]...)
		sort.Slice(msgs, func(i, j int) bool { return msgs[i].seq < msgs[j].seq })
		rows := make([]fakeRecord, 0, len(msgs))
		for _, m := range msgs {
			rows = append(rows, fakeRecord{"seq": m.seq, "payload": m.payload})
		}
		return &fakeResult{rows: rows}, nil
	case strings.Contains(query, "RETURN s.id AS id"):
		ids := make([]string, 0, len(view))
		for id := range view {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		rows := make([]fakeRecord, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, fakeRecord{"id": id})
		}
		return &fakeResult{rows: rows}, nil
	case strings.Contains(query, "MERGE (s:Session"):
		id := params["id"].(string)
		if _, ok := graph.sessions[id]; !ok {
			graph.sessions[id] = nil
		}
		return &fakeResult{}, nil
	default:
		return nil, errors.New("unrecognized query: " + query)
	}
}

type fakeRecord map[string]any

func (r fakeRecord) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

type fakeResult struct {
	rows []fakeRecord
	pos  int
}

func (r *fakeResult) Next(context.Context) bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeResult) Record() neo4jRecord {
	if r.pos == 0 || r.pos > len(r.rows) {
		return nil
	}
	return r.rows[r.pos-1]
}

func (r *fakeResult) Err() error                  { return nil }
func (r *fakeResult) Close(context.Context) error { return nil }

func TestNeo4jStoreAppendAndHistory(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{graph: newFakeGraph()}
	store, err := NewNeo4jStore(driver, "neo4j")
	if err != nil {
		t.Fatalf("NewNeo4jStore: %v", err)
	}

	if err := store.GetOrCreate(ctx, "alpha"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	err = store.Append(ctx, "alpha",
		chat.UserMessage("what now"),
		chat.AssistantMessage("done"),
	)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, "alpha", chat.UserMessage("more")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	history, err := store.History(ctx, "alpha")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	if history[0].Text != "what now" || history[1].Text != "done" || history[2].Text != "more" {
		t.Fatalf("unexpected order: %v", history)
	}
	if history[1].Kind != chat.KindAssistant {
		t.Fatalf("expected assistant message, got %s", history[1].Kind)
	}
}

func TestNeo4jStoreSessions(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{graph: newFakeGraph()}
	store, err := NewNeo4jStore(driver, "")
	if err != nil {
		t.Fatalf("NewNeo4jStore: %v", err)
	}

	if err := store.Append(ctx, "b", chat.UserMessage("x")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, "a", chat.UserMessage("y")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	ids, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestNeo4jStoreFailedBatchLeavesNothing(t *testing.T) {
	ctx := context.Background()
	graph := newFakeGraph()
	driver := &failingTxDriver{graph: graph}
	store, err := NewNeo4jStore(driver, "")
	if err != nil {
		t.Fatalf("NewNeo4jStore: %v", err)
	}

	err = store.Append(ctx, "alpha", chat.UserMessage("a"), chat.AssistantMessage("b"))
	if err == nil {
		t.Fatal("expected append to fail")
	}
	if len(graph.sessions["alpha"]) != 0 {
		t.Fatalf("partial batch committed: %d messages", len(graph.sessions["alpha"]))
	}
}

func TestNewNeo4jStoreRequiresDriver(t *testing.T) {
	if _, err := NewNeo4jStore(nil, ""); !errors.Is(err, ErrNeo4jUnavailable) {
		t.Fatalf("expected ErrNeo4jUnavailable, got %v", err)
	}
}

// failingTxDriver fails the second message write inside a transaction.
type failingTxDriver struct {
	graph *fakeGraph
}

func (d *failingTxDriver) NewSession(_ context.Context, _ Neo4jSessionConfig) (neo4jSession, error) {
	return &failingTxSession{graph: d.graph}, nil
}

func (d *failingTxDriver) Close(context.Context) error { return nil }

type failingTxSession struct {
	graph *fakeGraph
}

func (s *failingTxSession) BeginTransaction(context.Context) (neo4jTransaction, error) {
	return &countingTx{fakeTx: fakeTx{graph: s.graph, pending: make(map[string][]fakeMessage)}}, nil
}

func (s *failingTxSession) Run(_ context.Context, query string, params map[string]any) (neo4jResult, error) {
	return runFakeQuery(s.graph, s.graph.sessions, query, params)
}

func (s *failingTxSession) Close(context.Context) error { return nil }

type countingTx struct {
	fakeTx
	writes int
}

func (t *countingTx) Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error) {
	if strings.Contains(query, "CREATE (m:Message") {
		t.writes++
		if t.writes == 2 {
			return nil, errors.New("injected write failure")
		}
	}
	return t.fakeTx.Run(ctx, query, params)
}
