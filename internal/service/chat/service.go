package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/forestpark/assistant/backend/internal/model/auth"
	"github.com/forestpark/assistant/backend/internal/model/chat"
	"github.com/forestpark/assistant/backend/internal/service/conversation"
	"github.com/forestpark/assistant/backend/internal/service/relay"
)

var (
	ErrEmptyMessage   = errors.New("message text is required")
	ErrTurnInProgress = errors.New("a reply is still being generated")
)

// Archiver receives the messages of every committed turn.
type Archiver interface {
	SaveMessage(ctx context.Context, userID string, msg chat.Message) error
}

// Observer is notified with a fresh snapshot after every conversation change.
type Observer func(Snapshot)

// Service orchestrates chat turns: at most one running session per storage
// key, a relay for the upstream exchange and a conversation store for
// persistence.
type Service struct {
	store     *conversation.Store
	relay     relay.Relay
	archive   Archiver
	namespace string
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session // 仅保存进行中的轮次
}

type Option func(*Service)

// WithArchive 为已完成的对话轮次启用数据库归档。
func WithArchive(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithNamespace overrides the storage key prefix.
func WithNamespace(ns string) Option {
	return func(s *Service) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store *conversation.Store, r relay.Relay, opts ...Option) *Service {
	s := &Service{
		store:     store,
		relay:     r,
		namespace: conversation.DefaultNamespace,
		now:       func() time.Time { return time.Now().UTC() },
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KeyFor returns the storage key used for p.
func (s *Service) KeyFor(p *auth.Principal) string {
	return conversation.KeyFor(s.namespace, p)
}

// acquire admits a turn for key and registers its session. Only busy
// sessions live in the map; anonymous callers get a throwaway one.
func (s *Service) acquire(key string, cancel context.CancelFunc) (*Session, bool) {
	if key == "" {
		sess := newSession("")
		return sess, sess.begin(cancel)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.sessions[key]; busy {
		return nil, false
	}
	sess := newSession(key)
	sess.begin(cancel)
	s.sessions[key] = sess
	return sess, true
}

// release returns sess to idle and drops it from the map.
func (s *Service) release(sess *Session) {
	sess.finish()
	if sess.key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.key] == sess {
		delete(s.sessions, sess.key)
	}
}

func (s *Service) lookup(key string) (*Session, bool) {
	if key == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	return sess, ok
}

// Conversation returns the stored transcript of p along with the session state.
func (s *Service) Conversation(ctx context.Context, p *auth.Principal) Snapshot {
	key := s.KeyFor(p)
	state := StateIdle
	if sess, ok := s.lookup(key); ok {
		state = sess.current()
	}
	return Snapshot{State: state, Messages: s.store.Load(ctx, key)}
}

// Clear resets p's conversation to the welcome message. It is rejected while
// a turn is running.
func (s *Service) Clear(ctx context.Context, p *auth.Principal) (Snapshot, error) {
	key := s.KeyFor(p)
	sess, ok := s.acquire(key, nil)
	if !ok {
		return Snapshot{}, ErrTurnInProgress
	}
	defer s.release(sess)

	conv := s.store.Clear(ctx, key)
	return Snapshot{State: StateIdle, Messages: conv.Clone()}, nil
}

// Cancel aborts the in-flight turn of p, if any.
func (s *Service) Cancel(p *auth.Principal) bool {
	sess, ok := s.lookup(s.KeyFor(p))
	if !ok {
		return false
	}
	return sess.abort()
}

// Send runs one turn for p and blocks until it is committed or failed. Relay
// errors are folded into the returned snapshot; the only errors returned are
// ErrEmptyMessage and ErrTurnInProgress.
func (s *Service) Send(ctx context.Context, p *auth.Principal, text string, observer Observer) (Snapshot, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Snapshot{}, ErrEmptyMessage
	}

	key := s.KeyFor(p)
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess, ok := s.acquire(key, cancel)
	if !ok {
		return Snapshot{}, ErrTurnInProgress
	}
	defer s.release(sess)

	t := &turn{
		svc:      s,
		key:      key,
		persist:  context.WithoutCancel(ctx),
		observer: observer,
	}

	// Sending
	conv, err := s.store.Fetch(ctx, key)
	if err != nil {
		// 读取失败时不能覆盖已有记录，本轮只推送不落盘。
		log.Printf("[chat] history unavailable key=%s, turn will not be saved: %v", key, err)
		t.readOnly = true
	}
	t.conv = conv
	question := chat.NewMessage(chat.RoleUser, text, s.now())
	placeholder := chat.NewMessage(chat.RoleAssistant, "", s.now())
	t.conv = append(t.conv, question, placeholder)
	t.slot = len(t.conv) - 1
	t.emit(StateSending, FailureNone)

	// Streaming
	sess.setState(StateStreaming)
	reader := relay.Stream(turnCtx, s.relay, relay.Request{
		UserID:   relay.OutboundUserID(p),
		Question: text,
	})
	defer reader.Close()

	var streamErr error
	for {
		cumulative, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		if turnCtx.Err() != nil {
			streamErr = turnCtx.Err()
			break
		}
		t.conv[t.slot].Content = cumulative
		t.emit(StateStreaming, FailureNone)
	}
	if streamErr == nil && turnCtx.Err() != nil {
		streamErr = turnCtx.Err()
	}
	if streamErr == nil && t.conv[t.slot].Content == "" {
		streamErr = relay.ErrEmptyResponse
	}

	if streamErr != nil {
		failure := classify(streamErr)
		log.Printf("[chat] turn failed key=%s failure=%s: %v", key, failure, streamErr)
		t.conv[t.slot].Content = fallbackText(failure)
		return t.emit(StateFailed, failure), nil
	}

	snap := t.emit(StateCommitted, FailureNone)
	s.archiveTurn(t.persist, p, question, t.conv[t.slot])
	return snap, nil
}

func (s *Service) archiveTurn(ctx context.Context, p *auth.Principal, msgs ...chat.Message) {
	if s.archive == nil || p == nil || p.ID == "" {
		return
	}
	for _, msg := range msgs {
		if err := s.archive.SaveMessage(ctx, p.ID, msg); err != nil {
			log.Printf("[chat] archive failed user=%s: %v", p.ID, err)
			return
		}
	}
}

// turn is the working copy of one exchange.
type turn struct {
	svc      *Service
	key      string
	persist  context.Context
	observer Observer
	conv     chat.Conversation
	slot     int
	readOnly bool
}

// emit persists the working copy and notifies the observer, in that order.
func (t *turn) emit(state State, failure Failure) Snapshot {
	if !t.readOnly {
		if err := t.svc.store.Save(t.persist, t.key, t.conv); err != nil {
			log.Printf("[chat] persist failed key=%s: %v", t.key, err)
		}
	}
	snap := Snapshot{State: state, Messages: t.conv.Clone(), Failure: failure}
	if t.observer != nil {
		t.observer(snap)
	}
	return snap
}

func classify(err error) Failure {
	var upstream *relay.UpstreamError
	switch {
	case errors.Is(err, relay.ErrEmptyResponse):
		return FailureEmpty
	case errors.Is(err, context.Canceled):
		return FailureCancelled
	case errors.As(err, &upstream):
		return FailureUpstream
	default:
		return FailureNetwork
	}
}

func fallbackText(f Failure) string {
	if f == FailureEmpty {
		return chat.EmptyReplyText
	}
	return chat.UpstreamErrorText
}
