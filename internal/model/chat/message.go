package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role 标识消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// 固定展示文案。
const (
	WelcomeText       = "您好！我是国家森林公园智能助手，有什么可以帮助您的吗？"
	EmptyReplyText    = "抱歉，我无法处理您的请求，请稍后再试。"
	UpstreamErrorText = "抱歉，发生了一个错误，请稍后再试。"
)

// Message is a single chat bubble. Assistant content grows while a turn streams.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage stamps a fresh id and creation time.
func NewMessage(role Role, content string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Role:      role,
		Timestamp: now,
	}
}

// Conversation is the ordered transcript owned by one principal.
type Conversation []Message

// NewWelcomeConversation 返回只包含欢迎语的新会话。
func NewWelcomeConversation(now time.Time) Conversation {
	return Conversation{NewMessage(RoleAssistant, WelcomeText, now)}
}

// Clone returns a copy that does not share backing storage.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	return append(Conversation(nil), c...)
}

// IndexOf finds a message by id, or -1.
func (c Conversation) IndexOf(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}
