package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/forestpark/assistant/backend/internal/model/auth"
	"github.com/forestpark/assistant/backend/internal/model/chat"
	chatService "github.com/forestpark/assistant/backend/internal/service/chat"
	"github.com/forestpark/assistant/backend/pkg/utils"
)

const maxHistoryLimit = 200

// HistoryStore 是数据库聊天归档的读写接口。
type HistoryStore interface {
	UserHistory(ctx context.Context, userID string, limit int) ([]chat.Message, error)
	ClearUserHistory(ctx context.Context, userID string) (int64, error)
}

// Handler 聊天记录相关的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	history HistoryStore
}

// New 创建聊天处理器，history 可以为空。
func New(chatSvc *chatService.Service, history HistoryStore) *Handler {
	return &Handler{chatSvc: chatSvc, history: history}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversation", h.handleGetConversation)
	r.Delete("/conversation", h.handleClearConversation)
	r.Delete("/turn", h.handleCancelTurn)
	r.Get("/history", h.handleGetHistory)
	r.Delete("/history", h.handleClearHistory)
}

func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.Conversation(r.Context(), p))
}

func (h *Handler) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	snap, err := h.chatSvc.Clear(r.Context(), p)
	if errors.Is(err, chatService.ErrTurnInProgress) {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to clear conversation")
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleCancelTurn(w http.ResponseWriter, r *http.Request) {
	cancelled := h.chatSvc.Cancel(auth.FromContext(r.Context()))
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.historyUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			utils.RespondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	messages, err := h.history.UserHistory(r.Context(), userID, limit)
	if err != nil {
		log.Printf("[chat] load history failed user=%s: %v", userID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch chat history")
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.historyUser(w, r)
	if !ok {
		return
	}

	removed, err := h.history.ClearUserHistory(r.Context(), userID)
	if err != nil {
		log.Printf("[chat] clear history failed user=%s: %v", userID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to clear chat history")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (h *Handler) historyUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.history == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "chat history unavailable")
		return "", false
	}
	p := auth.FromContext(r.Context())
	if p == nil || p.ID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "未登录")
		return "", false
	}
	return p.ID, true
}
