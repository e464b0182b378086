package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/forestpark/assistant/backend/internal/model/auth"
	"github.com/forestpark/assistant/backend/internal/model/chat"
	"github.com/forestpark/assistant/backend/internal/storage"
)

// DefaultNamespace 是会话记录的存储键前缀。
const DefaultNamespace = "forest-park-chat-history"

// KeyFor 返回主体对应的存储键，匿名用户返回空字符串。
func KeyFor(namespace string, p *auth.Principal) string {
	if p == nil || p.Username == "" {
		return ""
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return namespace + "-" + p.Username
}

// Store persists conversations in a key-value backend, one slot per key.
type Store struct {
	kv  storage.KeyValue
	now func() time.Time
}

func NewStore(kv storage.KeyValue) *Store {
	return &Store{kv: kv, now: func() time.Time { return time.Now().UTC() }}
}

// Load restores the conversation stored under key. An empty key, a missing
// slot or an unreadable value all yield a fresh welcome conversation.
func (s *Store) Load(ctx context.Context, key string) chat.Conversation {
	conv, err := s.Fetch(ctx, key)
	if err != nil {
		log.Printf("[conversation] read failed key=%s: %v", key, err)
	}
	return conv
}

// Fetch is Load without the fail-open on read errors: when the backend cannot
// be read it returns a welcome conversation together with the error, so a
// caller can avoid overwriting a slot it never saw. Corrupt values still fall
// back to a welcome conversation without error.
func (s *Store) Fetch(ctx context.Context, key string) (chat.Conversation, error) {
	if key == "" {
		return chat.NewWelcomeConversation(s.now()), nil
	}

	raw, ok, err := s.kv.GetItem(ctx, key)
	if err != nil {
		return chat.NewWelcomeConversation(s.now()), fmt.Errorf("read conversation: %w", err)
	}
	if !ok {
		return chat.NewWelcomeConversation(s.now()), nil
	}

	var conv chat.Conversation
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		log.Printf("[conversation] discarding malformed value key=%s: %v", key, err)
		return chat.NewWelcomeConversation(s.now()), nil
	}
	if len(conv) == 0 {
		return chat.NewWelcomeConversation(s.now()), nil
	}
	return conv, nil
}

// Save overwrites the slot for key. Callers log the error and carry on.
func (s *Store) Save(ctx context.Context, key string, conv chat.Conversation) error {
	if key == "" {
		return nil
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if err := s.kv.SetItem(ctx, key, string(data)); err != nil {
		return fmt.Errorf("store conversation: %w", err)
	}
	return nil
}

// Clear drops the stored conversation and immediately saves a new welcome
// conversation under the same key.
func (s *Store) Clear(ctx context.Context, key string) chat.Conversation {
	fresh := chat.NewWelcomeConversation(s.now())
	if key == "" {
		return fresh
	}

	if err := s.kv.RemoveItem(ctx, key); err != nil {
		log.Printf("[conversation] remove failed key=%s: %v", key, err)
	}
	if err := s.Save(ctx, key, fresh); err != nil {
		log.Printf("[conversation] save after clear failed key=%s: %v", key, err)
	}
	return fresh
}
