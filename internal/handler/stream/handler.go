package stream

import (
	"errors"
	"log"
	"net/http"

	"github.com/forestpark/assistant/backend/internal/model/auth"
	chatService "github.com/forestpark/assistant/backend/internal/service/chat"
	"github.com/forestpark/assistant/backend/pkg/utils"
)

// SSE event names.
const (
	EventSnapshot = "snapshot"
	EventDone     = "done"
)

// Handler streams chat turns to the browser via Server-Sent Events.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

type sendRequest struct {
	Text string `json:"text"`
}

// HandleSend runs one turn and emits a snapshot frame per update followed by
// a done frame carrying the final snapshot. Admission errors are answered as
// plain JSON before any frame is written.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		utils.RespondError(w, http.StatusInternalServerError, utils.ErrStreamingUnsupported.Error())
		return
	}

	var payload sendRequest
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	p := auth.FromContext(r.Context())
	var (
		sse      *utils.SSEWriter
		writeErr error
	)
	observer := func(snap chatService.Snapshot) {
		if writeErr != nil {
			return
		}
		if sse == nil {
			if sse, writeErr = utils.NewSSEWriter(w); writeErr != nil {
				return
			}
		}
		writeErr = sse.Event(EventSnapshot, snap)
	}

	final, err := h.chatSvc.Send(r.Context(), p, payload.Text, observer)
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, "消息内容不能为空")
		return
	case errors.Is(err, chatService.ErrTurnInProgress):
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		log.Printf("[stream] chat turn rejected: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "chat failed")
		return
	}

	if writeErr != nil {
		log.Printf("[stream] client went away state=%s: %v", final.State, writeErr)
		return
	}
	if sse == nil {
		sse, err = utils.NewSSEWriter(w)
		if err != nil {
			return
		}
	}
	if err := sse.Event(EventDone, final); err != nil {
		log.Printf("[stream] write final frame failed: %v", err)
	}
}
