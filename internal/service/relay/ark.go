package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ParkSystemPrompt 是直接调用大模型时使用的系统提示词。
const ParkSystemPrompt = `你是国家森林公园的智能助手，负责解答游客与工作人员关于公园规范、游览活动、生态保护和服务申请的问题。
回答要求：
- 使用简体中文，语气礼貌、简洁。
- 涉及规范条文时尽量给出出处，不确定时明确说明。
- 不编造开放时间、票价等具体数据，建议用户以公园公告为准。`

var _ Relay = (*Ark)(nil)

// Ark answers questions with an eino chat model instead of a hosted bot.
type Ark struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArk compiles a system-prompt + question chain around chatModel.
func NewArk(ctx context.Context, chatModel model.BaseChatModel) (*Ark, error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &Ark{chain: runnable}, nil
}

func (a *Ark) Run(ctx context.Context, req Request, onUpdate func(string)) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", ErrEmptyQuestion
	}

	stream, err := a.chain.Stream(ctx, map[string]any{
		"system": ParkSystemPrompt,
		"query":  req.Question,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", &NetworkError{Err: ctx.Err()}
		}
		return "", &NetworkError{Err: err}
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Printf("[relay] chat model stream failed user=%s: %v", req.UserID, err)
			if ctx.Err() != nil {
				return answer.String(), &NetworkError{Err: ctx.Err()}
			}
			return answer.String(), &NetworkError{Err: err}
		}
		if ctx.Err() != nil {
			return answer.String(), &NetworkError{Err: ctx.Err()}
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		answer.WriteString(chunk.Content)
		if onUpdate != nil {
			onUpdate(answer.String())
		}
	}

	if answer.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return answer.String(), nil
}
