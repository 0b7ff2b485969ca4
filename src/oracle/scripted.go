package oracle

import (
	"context"
	"errors"
	"sync"

	"github.com/turnpike-ai/turnpike/src/chat"
)

// Scripted replays a fixed sequence of decisions. It exists so loop behavior
// can be tested without a live provider.
type Scripted struct {
	mu    sync.Mutex
	Steps []chat.Decision
	// Err, when set, is returned once the script is exhausted. When nil an
	// exhausted script is an error too, since a test asking for more
	// decisions than it scripted is a bug.
	Err error

	calls []scriptedCall
	next  int
}

type scriptedCall struct {
	History []chat.Message
	Specs   []chat.ToolSpec
}

var _ Oracle = (*Scripted)(nil)

func (s *Scripted) Decide(_ context.Context, history []chat.Message, specs []chat.ToolSpec) (chat.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, scriptedCall{
		History: chat.CloneMessages(history),
		Specs:   append([]chat.ToolSpec(nil), specs...),
	})
	if s.next >= len(s.Steps) {
		if s.Err != nil {
			return chat.Decision{}, s.Err
		}
		return chat.Decision{}, errors.New("scripted oracle: no decisions left")
	}
	step := s.Steps[s.next]
	s.next++
	return step, nil
}

// Calls reports how many decisions were requested.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// HistoryAt returns the transcript the oracle saw on call i.
func (s *Scripted) HistoryAt(i int) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.calls) {
		return nil
	}
	return s.calls[i].History
}
