package relay

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/schema"

	"github.com/forestpark/assistant/backend/internal/model/auth"
)

// Request 描述一次对外提问。
type Request struct {
	UserID   string
	Question string
}

// Relay performs one exchange with a conversational backend. onUpdate receives
// the cumulative answer after every fragment, in arrival order, and is never
// called once ctx is done.
type Relay interface {
	Run(ctx context.Context, req Request, onUpdate func(cumulative string)) (string, error)
}

// OutboundUserID 生成上游使用的用户标识。
func OutboundUserID(p *auth.Principal) string {
	if p == nil || p.Username == "" {
		return "V0_anonymous"
	}
	return "V0_" + p.Username
}

// Stream exposes a Run as a lazy, single-use sequence of cumulative strings.
// The reader yields io.EOF after a successful answer or exactly one terminal
// error. Closing the reader early cancels the exchange.
func Stream(ctx context.Context, r Relay, req Request) *schema.StreamReader[string] {
	reader, writer := schema.Pipe[string](1)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer cancel()
		defer writer.Close()

		_, err := r.Run(ctx, req, func(cumulative string) {
			if closed := writer.Send(cumulative, nil); closed {
				cancel()
			}
		})
		if err != nil && !errors.Is(err, io.EOF) {
			writer.Send("", err)
		}
	}()

	return reader
}
