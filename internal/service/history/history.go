package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forestpark/assistant/backend/internal/database"
	"github.com/forestpark/assistant/backend/internal/model/chat"
)

const (
	DefaultHistoryLimit = 20
	DefaultPromptLimit  = 10
)

var ErrUserRequired = errors.New("user id is required")

// Service archives committed chat messages in the chat_messages table.
type Service struct {
	exec *database.Executor
}

func NewService(exec *database.Executor) *Service {
	return &Service{exec: exec}
}

// SaveMessage 写入一条聊天记录。
func (s *Service) SaveMessage(ctx context.Context, userID string, msg chat.Message) error {
	if userID == "" {
		return ErrUserRequired
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.exec.Exec(ctx,
		"INSERT INTO chat_messages (user_id, content, role, created_at) VALUES (?, ?, ?, ?)",
		userID, msg.Content, string(msg.Role), ts)
	if err != nil {
		return fmt.Errorf("save chat message: %w", err)
	}
	return nil
}

// UserHistory returns the newest limit messages of a user, oldest first.
func (s *Service) UserHistory(ctx context.Context, userID string, limit int) ([]chat.Message, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var rows []database.ChatMessage
	err := s.exec.Query(ctx, &rows, `
		SELECT id, user_id, content, role, created_at
		FROM chat_messages
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}

	messages := make([]chat.Message, len(rows))
	for i, row := range rows {
		messages[len(rows)-1-i] = chat.Message{
			ID:        fmt.Sprintf("%d", row.ID),
			Content:   row.Content,
			Role:      chat.Role(row.Role),
			Timestamp: row.CreatedAt,
		}
	}
	return messages, nil
}

// ClearUserHistory 删除用户的全部聊天记录。
func (s *Service) ClearUserHistory(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrUserRequired
	}
	n, err := s.exec.Exec(ctx, "DELETE FROM chat_messages WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("clear chat history: %w", err)
	}
	return n, nil
}

// APIMessage is the bot wire shape of one transcript entry.
type APIMessage struct {
	Role    string `json:"role"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

func FormatMessagesForAPI(messages []chat.Message) []APIMessage {
	out := make([]APIMessage, 0, len(messages))
	for _, msg := range messages {
		kind := "answer"
		if msg.Role == chat.RoleUser {
			kind = "question"
		}
		out = append(out, APIMessage{Role: string(msg.Role), Type: kind, Content: msg.Content})
	}
	return out
}

// LimitMessageHistory keeps the first message (usually the welcome text) and
// the most recent limit-1 messages.
func LimitMessageHistory(messages []chat.Message, limit int) []chat.Message {
	if limit <= 0 {
		limit = DefaultPromptLimit
	}
	if len(messages) <= limit {
		return messages
	}
	out := make([]chat.Message, 0, limit)
	out = append(out, messages[0])
	return append(out, messages[len(messages)-(limit-1):]...)
}
