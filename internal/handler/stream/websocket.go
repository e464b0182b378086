package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forestpark/assistant/backend/internal/model/auth"
	chatService "github.com/forestpark/assistant/backend/internal/service/chat"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// WebSocketHandler 通过 WebSocket 提供对话能力。
type WebSocketHandler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器，allowedOrigins 为空时不限制来源。
func NewWebSocketHandler(chatSvc *chatService.Service, allowedOrigins []string) *WebSocketHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// socket serializes writes; gorilla allows one concurrent writer.
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *socket) send(msgType string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().Unix()}
	if err := s.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", msgType, err)
	}
}

func (s *socket) sendError(message string) {
	s.send("error", map[string]string{"message": message})
}

// ServeHTTP 处理WebSocket连接
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	sock := &socket{conn: conn}
	go pingLoop(ctx, conn)

	var turns sync.WaitGroup
	defer func() {
		// Closing the socket abandons the turn it started.
		cancel()
		turns.Wait()
	}()

	sock.send("connected", h.chatSvc.Conversation(ctx, p))

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		h.handleMessage(ctx, sock, p, &msg, &turns)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, sock *socket, p *auth.Principal, msg *inboundMessage, turns *sync.WaitGroup) {
	switch msg.Type {
	case "text":
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			sock.sendError("invalid text payload")
			return
		}
		turns.Add(1)
		go func() {
			defer turns.Done()
			h.runTurn(ctx, sock, p, text.Text)
		}()
	case "cancel":
		h.chatSvc.Cancel(p)
	case "clear":
		snap, err := h.chatSvc.Clear(ctx, p)
		if err != nil {
			sock.sendError(err.Error())
			return
		}
		sock.send("snapshot", snap)
	case "load":
		sock.send("snapshot", h.chatSvc.Conversation(ctx, p))
	default:
		sock.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *WebSocketHandler) runTurn(ctx context.Context, sock *socket, p *auth.Principal, text string) {
	final, err := h.chatSvc.Send(ctx, p, text, func(snap chatService.Snapshot) {
		sock.send("snapshot", snap)
	})
	if errors.Is(err, chatService.ErrTurnInProgress) || errors.Is(err, chatService.ErrEmptyMessage) {
		sock.sendError(err.Error())
		return
	}
	if err != nil {
		log.Printf("[websocket] turn failed: %v", err)
		sock.sendError("chat failed")
		return
	}
	sock.send("done", final)
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
