package chat

import (
	"context"
	"sync"

	"github.com/forestpark/assistant/backend/internal/model/chat"
)

// State 表示一轮对话所处的阶段。
type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateStreaming State = "streaming"
	StateCommitted State = "committed"
	StateFailed    State = "failed"
)

// Failure classifies why a turn ended in StateFailed.
type Failure string

const (
	FailureNone      Failure = ""
	FailureEmpty     Failure = "empty_response"
	FailureUpstream  Failure = "upstream"
	FailureNetwork   Failure = "network"
	FailureCancelled Failure = "cancelled"
)

// Snapshot is a render-safe copy of a conversation at one point of a turn.
type Snapshot struct {
	State    State             `json:"state"`
	Messages chat.Conversation `json:"messages"`
	Failure  Failure           `json:"failure,omitempty"`
}

// Busy reports whether a turn is still in flight.
func (s Snapshot) Busy() bool {
	return s.State == StateSending || s.State == StateStreaming
}

// Session is the admission gate for one storage key. At most one turn runs
// per session.
type Session struct {
	key string

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

func newSession(key string) *Session {
	return &Session{key: key, state: StateIdle}
}

// begin flips the session into Sending, or reports false when a turn is
// already running.
func (s *Session) begin(cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return false
	}
	s.state = StateSending
	s.cancel = cancel
	return true
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) finish() {
	s.mu.Lock()
	s.state = StateIdle
	s.cancel = nil
	s.mu.Unlock()
}

func (s *Session) current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}
