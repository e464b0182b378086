package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	doneSentinel   = "[DONE]"
	maxErrorBody   = 64 * 1024
	roleAssistant  = "assistant"
	typeAnswer     = "answer"
	defaultTimeout = 60 * time.Second
)

// Config 是机器人接口的注入配置。
type Config struct {
	Endpoint    string
	BotID       string
	AuthToken   string
	IdleTimeout time.Duration
}

var _ Relay = (*Coze)(nil)

// Coze relays questions to a Coze v3 style chat endpoint and parses its
// event stream.
type Coze struct {
	cfg    Config
	client *resty.Client
}

// NewCoze builds a relay. A zero IdleTimeout falls back to 60s; a negative
// one disables the idle watchdog.
func NewCoze(cfg Config) *Coze {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaultTimeout
	}
	return &Coze{
		cfg:    cfg,
		client: resty.New(),
	}
}

type additionalMessage struct {
	Role        string `json:"role"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

type chatPayload struct {
	BotID              string              `json:"bot_id"`
	UserID             string              `json:"user_id"`
	Stream             bool                `json:"stream"`
	AdditionalMessages []additionalMessage `json:"additional_messages"`
}

type streamRecord struct {
	Role    string `json:"role"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (c *Coze) Run(ctx context.Context, req Request, onUpdate func(string)) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", ErrEmptyQuestion
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchdog := newIdleWatchdog(c.cfg.IdleTimeout, cancel)
	defer watchdog.stop()

	// Only the latest question is forwarded; the bot keeps its own
	// conversation state keyed by user_id.
	payload := chatPayload{
		BotID:  c.cfg.BotID,
		UserID: req.UserID,
		Stream: true,
		AdditionalMessages: []additionalMessage{{
			Role:        "user",
			Type:        "question",
			Content:     req.Question,
			ContentType: "text",
		}},
	}

	resp, err := c.client.R().
		SetContext(reqCtx).
		SetAuthToken(c.cfg.AuthToken).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetBody(payload).
		SetDoNotParseResponse(true).
		Post(c.cfg.Endpoint)
	if err != nil {
		return "", c.networkError(ctx, watchdog, err)
	}

	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		log.Printf("[relay] bot endpoint returned status=%d body=%s", resp.StatusCode(), data)
		return "", &UpstreamError{StatusCode: resp.StatusCode(), Body: string(data)}
	}

	var answer strings.Builder
	reader := bufio.NewReader(watchdog.wrap(body))
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" && ctx.Err() == nil {
			// A final line without a newline is still a complete record.
			if fragment, ok := parseLine(line); ok {
				answer.WriteString(fragment)
				if onUpdate != nil && reqCtx.Err() == nil {
					onUpdate(answer.String())
				}
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		return answer.String(), c.networkError(ctx, watchdog, readErr)
	}

	if ctx.Err() != nil || watchdog.fired() {
		return answer.String(), c.networkError(ctx, watchdog, io.ErrUnexpectedEOF)
	}
	if answer.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return answer.String(), nil
}

func (c *Coze) networkError(ctx context.Context, watchdog *idleWatchdog, err error) error {
	switch {
	case watchdog.fired():
		return &NetworkError{Err: ErrIdleTimeout}
	case ctx.Err() != nil:
		return &NetworkError{Err: ctx.Err()}
	default:
		return &NetworkError{Err: err}
	}
}

// parseLine extracts an answer fragment from one stream line.
func parseLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		// event: annotations and blank separators carry nothing we use.
		return "", false
	}
	data = strings.TrimSpace(data)
	if data == "" || data == doneSentinel || data == `"`+doneSentinel+`"` {
		return "", false
	}

	var record streamRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		decodeErr := &DecodeError{Line: data, Err: err}
		log.Printf("[relay] skipping malformed stream record: %v", decodeErr)
		return "", false
	}
	if record.Role != roleAssistant || record.Type != typeAnswer || record.Content == "" {
		return "", false
	}
	return record.Content, true
}

// idleWatchdog cancels the request when no byte arrives within the window.
type idleWatchdog struct {
	timeout time.Duration
	timer   *time.Timer
	mu      sync.Mutex
	expired atomic.Bool
}

func newIdleWatchdog(timeout time.Duration, cancel context.CancelFunc) *idleWatchdog {
	w := &idleWatchdog{timeout: timeout}
	if timeout <= 0 {
		return w
	}
	w.timer = time.AfterFunc(timeout, func() {
		w.expired.Store(true)
		cancel()
	})
	return w
}

func (w *idleWatchdog) wrap(r io.Reader) io.Reader {
	return &idleReader{r: r, watchdog: w}
}

func (w *idleWatchdog) touch() {
	if w.timer == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.expired.Load() {
		w.timer.Reset(w.timeout)
	}
}

func (w *idleWatchdog) fired() bool {
	return w.expired.Load()
}

func (w *idleWatchdog) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

type idleReader struct {
	r        io.Reader
	watchdog *idleWatchdog
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.watchdog.touch()
	}
	return n, err
}
