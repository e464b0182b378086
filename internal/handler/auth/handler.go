package auth

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forestpark/assistant/backend/internal/middleware"
	"github.com/forestpark/assistant/backend/internal/model/auth"
	authService "github.com/forestpark/assistant/backend/internal/service/auth"
	"github.com/forestpark/assistant/backend/pkg/utils"
)

// Accounts 是处理器依赖的账号能力。
type Accounts interface {
	Login(ctx context.Context, email, password string) (*auth.Principal, error)
	Register(ctx context.Context, in authService.NewUser) (*auth.Principal, error)
	StartSession(w http.ResponseWriter, p *auth.Principal) error
	EndSession(w http.ResponseWriter)
}

// Handler 登录相关的HTTP处理器
type Handler struct {
	accounts Accounts
}

func New(accounts Accounts) *Handler {
	return &Handler{accounts: accounts}
}

// RegisterRoutes 注册登录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/register", h.handleRegister)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	p, err := h.accounts.Login(r.Context(), payload.Email, payload.Password)
	if errors.Is(err, authService.ErrInvalidCredentials) {
		utils.RespondError(w, http.StatusUnauthorized, "邮箱或密码错误")
		return
	}
	if err != nil {
		log.Printf("[auth] login failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "登录失败")
		return
	}

	if err := h.accounts.StartSession(w, p); err != nil {
		log.Printf("[auth] start session failed user=%s: %v", p.ID, err)
		utils.RespondError(w, http.StatusInternalServerError, "登录失败")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"user": p})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.accounts.EndSession(w)
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if p == nil {
		utils.RespondError(w, http.StatusUnauthorized, "未登录")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"user": p})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload authService.NewUser
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	p, err := h.accounts.Register(r.Context(), payload)
	switch {
	case errors.Is(err, authService.ErrInvalidUser), errors.Is(err, authService.ErrInvalidRole):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, authService.ErrUserExists):
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		log.Printf("[auth] register failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "注册失败")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]any{"user": p})
}
