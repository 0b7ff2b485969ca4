package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/turnpike-ai/turnpike/src/chat"
)

// Neo4jAccessMode controls whether a session is opened for read or write.
type Neo4jAccessMode string

const (
	AccessModeWrite Neo4jAccessMode = "write"
	AccessModeRead  Neo4jAccessMode = "read"
)

// Neo4jSessionConfig mirrors the minimal subset of driver session
// configuration the store requires.
type Neo4jSessionConfig struct {
	AccessMode   Neo4jAccessMode
	DatabaseName string
}

// neo4jDriver abstracts the capabilities used by the store so tests can run
// against a fake without the real driver, which is guarded behind the neo4j
// build tag.
type neo4jDriver interface {
	NewSession(ctx context.Context, config Neo4jSessionConfig) (neo4jSession, error)
	Close(ctx context.Context) error
}

type neo4jSession interface {
	BeginTransaction(ctx context.Context) (neo4jTransaction, error)
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Close(ctx context.Context) error
}

type neo4jTransaction interface {
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

type neo4jResult interface {
	Next(ctx context.Context) bool
	Record() neo4jRecord
	Err() error
	Close(ctx context.Context) error
}

type neo4jRecord interface {
	Get(key string) (any, bool)
}

// ErrNeo4jUnavailable is returned when operations are attempted without a
// configured driver.
var ErrNeo4jUnavailable = errors.New("neo4j driver not configured")

// Neo4jStore persists each transcript as a Session node owning a sequence of
// Message nodes ordered by a seq property. A batch append runs in one
// explicit transaction.
type Neo4jStore struct {
	driver   neo4jDriver
	database string
}

func NewNeo4jStore(driver neo4jDriver, database string) (*Neo4jStore, error) {
	if driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	return &Neo4jStore{driver: driver, database: database}, nil
}

var _ Store = (*Neo4jStore)(nil)

func (s *Neo4jStore) GetOrCreate(ctx context.Context, sessionID string) error {
	sess, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close(ctx) }()
	res, err := sess.Run(ctx, `MERGE (s:Session {id: $id})`, map[string]any{"id": sessionID})
	if err != nil {
		return err
	}
	defer func() { _ = res.Close(ctx) }()
	return res.Err()
}

func (s *Neo4jStore) Append(ctx context.Context, sessionID string, messages ...chat.Message) error {
	if len(messages) == 0 {
		return nil
	}
	sess, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close(ctx) }()

	tx, err := sess.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Close(ctx) }()

	next, err := s.nextSeq(ctx, tx, sessionID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	for i, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("encode message: %w", err)
		}
		res, err := tx.Run(ctx, `
                        MERGE (s:Session {id: $id})
                        CREATE (m:Message {seq: $seq, payload: $payload})
                        CREATE (s)-[:HAS_MESSAGE]->(m)
                `, map[string]any{
			"id":      sessionID,
			"seq":     next + int64(i),
			"payload": string(payload),
		})
		if err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err := drainResult(ctx, res); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Neo4jStore) History(ctx context.Context, sessionID string) ([]chat.Message, error) {
	sess, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeRead, DatabaseName: s.database})
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close(ctx) }()

	res, err := sess.Run(ctx, `
                MATCH (:Session {id: $id})-[:HAS_MESSAGE]->(m:Message)
                RETURN m.seq AS seq, m.payload AS payload
                ORDER BY m.seq
        `, map[string]any{"id": sessionID})
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Close(ctx) }()

	type row struct {
		seq     int64
		payload string
	}
	var rows []row
	for res.Next(ctx) {
		rec := res.Record()
		if rec == nil {
			continue
		}
		seqVal, _ := rec.Get("seq")
		payloadVal, ok := rec.Get("payload")
		if !ok {
			continue
		}
		rows = append(rows, row{seq: int64FromAny(seqVal), payload: fmt.Sprint(payloadVal)})
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	messages := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		var msg chat.Message
		if err := json.Unmarshal([]byte(r.payload), &msg); err != nil {
			return nil, fmt.Errorf("decode message seq %d: %w", r.seq, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *Neo4jStore) Sessions(ctx context.Context) ([]string, error) {
	sess, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeRead, DatabaseName: s.database})
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close(ctx) }()

	res, err := sess.Run(ctx, `MATCH (s:Session) RETURN s.id AS id ORDER BY s.id`, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Close(ctx) }()

	var ids []string
	for res.Next(ctx) {
		rec := res.Record()
		if rec == nil {
			continue
		}
		if v, ok := rec.Get("id"); ok {
			ids = append(ids, fmt.Sprint(v))
		}
	}
	return ids, res.Err()
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) nextSeq(ctx context.Context, tx neo4jTransaction, sessionID string) (int64, error) {
	res, err := tx.Run(ctx, `
                MATCH (:Session {id: $id})-[:HAS_MESSAGE]->(m:Message)
                RETURN coalesce(max(m.seq), -1) AS max_seq
        `, map[string]any{"id": sessionID})
	if err != nil {
		return 0, err
	}
	defer func() { _ = res.Close(ctx) }()

	if res.Next(ctx) {
		if rec := res.Record(); rec != nil {
			if v, ok := rec.Get("max_seq"); ok {
				return int64FromAny(v) + 1, res.Err()
			}
		}
	}
	return 0, res.Err()
}

func drainResult(ctx context.Context, res neo4jResult) error {
	defer func() { _ = res.Close(ctx) }()
	for res.Next(ctx) {
	}
	return res.Err()
}

func int64FromAny(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
