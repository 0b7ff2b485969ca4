package textmodel

import (
	"context"
	"errors"
	"sync"
)

// StaticModel replays canned responses in order. It exists for tests and
// offline runs.
type StaticModel struct {
	mu        sync.Mutex
	Responses []string
	next      int
}

var _ TextModel = (*StaticModel)(nil)

func (m *StaticModel) Generate(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next >= len(m.Responses) {
		return "", errors.New("static model: no responses left")
	}
	resp := m.Responses[m.next]
	m.next++
	return resp, nil
}
