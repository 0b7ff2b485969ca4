package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnpike-ai/turnpike/src/chat"
)

// PostgresStore persists transcripts append-only in Postgres. Batches are
// inserted inside a single transaction so a partially written tool batch can
// never become visible.
type PostgresStore struct {
	DB    *pgxpool.Pool
	table string
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to Postgres: %w", err)
	}
	return &PostgresStore{DB: db, table: "turn_messages"}, nil
}

var _ Store = (*PostgresStore)(nil)

// CreateSchema bootstraps the transcript table.
func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	_, err := ps.DB.Exec(ctx, `
                CREATE TABLE IF NOT EXISTS turn_messages (
                        id BIGSERIAL PRIMARY KEY,
                        session_id TEXT NOT NULL,
                        payload JSONB NOT NULL,
                        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
                );
                CREATE INDEX IF NOT EXISTS turn_messages_session_idx ON turn_messages (session_id, id);
        `)
	return err
}

func (ps *PostgresStore) GetOrCreate(ctx context.Context, sessionID string) error {
	// Sessions are implicit rows; nothing to materialize.
	return nil
}

func (ps *PostgresStore) Append(ctx context.Context, sessionID string, messages ...chat.Message) error {
	if ps == nil || ps.DB == nil || len(messages) == 0 {
		return nil
	}
	tx, err := ps.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO turn_messages (session_id, payload) VALUES ($1, $2::jsonb)`,
			sessionID, payload,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (ps *PostgresStore) History(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if ps == nil || ps.DB == nil {
		return nil, nil
	}
	rows, err := ps.DB.Query(ctx,
		`SELECT payload::text FROM turn_messages WHERE session_id = $1 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var msg chat.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (ps *PostgresStore) Sessions(ctx context.Context) ([]string, error) {
	if ps == nil || ps.DB == nil {
		return nil, nil
	}
	rows, err := ps.DB.Query(ctx, `SELECT DISTINCT session_id FROM turn_messages ORDER BY session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (ps *PostgresStore) Close() {
	if ps != nil && ps.DB != nil {
		ps.DB.Close()
	}
}
