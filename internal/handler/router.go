package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/forestpark/assistant/backend/internal/handler/auth"
	"github.com/forestpark/assistant/backend/internal/handler/chat"
	"github.com/forestpark/assistant/backend/internal/handler/preset"
	"github.com/forestpark/assistant/backend/internal/handler/stream"
	middlewarePkg "github.com/forestpark/assistant/backend/internal/middleware"
	presetModel "github.com/forestpark/assistant/backend/internal/model/preset"
	authService "github.com/forestpark/assistant/backend/internal/service/auth"
	chatService "github.com/forestpark/assistant/backend/internal/service/chat"
	"github.com/forestpark/assistant/backend/pkg/utils"
)

// Deps 汇总路由所需的服务。
type Deps struct {
	Auth           *authService.Service
	Chat           *chatService.Service
	History        chat.HistoryStore
	Presets        presetModel.Store
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.Authenticate(deps.Auth))

	chatHandler := chat.New(deps.Chat, deps.History)
	streamHandler := stream.New(deps.Chat)
	wsHandler := stream.NewWebSocketHandler(deps.Chat, deps.AllowedOrigins)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.RequireAuth)

		api.Get("/health", handleHealth)

		api.Route("/auth", authHandler.New(deps.Auth).RegisterRoutes)

		api.Route("/chat", func(cr chi.Router) {
			preset.New(deps.Presets).RegisterRoutes(cr)
			chatHandler.RegisterRoutes(cr)
			cr.Post("/messages", streamHandler.HandleSend)
			cr.Get("/ws", wsHandler.ServeHTTP)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
