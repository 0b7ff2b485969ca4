package turnpike

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/turnpike-ai/turnpike/src/chat"
	"github.com/turnpike-ai/turnpike/src/session"
)

// checkpointFile is the durable snapshot format. Messages keep their tagged
// JSON encoding so a snapshot taken by one store can be restored into
// another.
type checkpointFile struct {
	Version  int                       `json:"version"`
	Sessions map[string][]chat.Message `json:"sessions"`
}

const checkpointVersion = 1

// Checkpoint serializes every session transcript in the store.
func Checkpoint(ctx context.Context, store session.Store) ([]byte, error) {
	ids, err := store.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	snapshot := checkpointFile{
		Version:  checkpointVersion,
		Sessions: make(map[string][]chat.Message, len(ids)),
	}
	for _, id := range ids {
		history, err := store.History(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", id, err)
		}
		snapshot.Sessions[id] = history
	}
	return json.MarshalIndent(snapshot, "", "  ")
}

// Restore loads a snapshot into the store. Transcripts are validated before
// anything is written; sessions already present in the store are appended
// to, so restoring into a fresh store is the expected use.
func Restore(ctx context.Context, store session.Store, data []byte) error {
	var snapshot checkpointFile
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}
	if snapshot.Version != checkpointVersion {
		return fmt.Errorf("unsupported checkpoint version %d", snapshot.Version)
	}
	for id, history := range snapshot.Sessions {
		if err := chat.ValidateTranscript(history); err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}
	}
	for id, history := range snapshot.Sessions {
		if err := store.GetOrCreate(ctx, id); err != nil {
			return fmt.Errorf("create session %s: %w", id, err)
		}
		if len(history) == 0 {
			continue
		}
		if err := store.Append(ctx, id, history...); err != nil {
			return fmt.Errorf("restore session %s: %w", id, err)
		}
	}
	return nil
}
