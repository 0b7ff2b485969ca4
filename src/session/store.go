package session

import (
	"context"
	"errors"

	"github.com/turnpike-ai/turnpike/src/chat"
)

// ErrSessionEvicted is returned when a session was dropped by the eviction
// policy and a caller still holds its id.
var ErrSessionEvicted = errors.New("session evicted")

// Store owns every session transcript. Transcripts are append-only and the
// store is the single source of truth: the orchestration loop always reads
// history back from here and never keeps its own copy across round-trips.
//
// Append with multiple messages must be atomic: either the whole batch
// becomes visible or none of it, so the request/result pairing invariant
// holds at every observable point.
type Store interface {
	// GetOrCreate materializes an empty transcript for an unseen id.
	GetOrCreate(ctx context.Context, sessionID string) error
	Append(ctx context.Context, sessionID string, messages ...chat.Message) error
	History(ctx context.Context, sessionID string) ([]chat.Message, error)
	// Sessions lists every known session id, for snapshots and inspection.
	Sessions(ctx context.Context) ([]string, error)
}
