package preset

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forestpark/assistant/backend/internal/model/preset"
	"github.com/forestpark/assistant/backend/pkg/utils"
)

// Handler 预设问题的HTTP处理器
type Handler struct {
	questions preset.Store
}

// New 创建预设问题处理器
func New(questions preset.Store) *Handler {
	return &Handler{questions: questions}
}

// RegisterRoutes 注册预设问题相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/presets", h.handleListPresets)
	r.Get("/presets/{presetID}", h.handleGetPreset)
}

func (h *Handler) handleListPresets(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.questions.List())
}

func (h *Handler) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	q, ok := h.questions.FindByID(chi.URLParam(r, "presetID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "preset not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, q)
}
