package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"chatrelay/internal/core/domain"
	"chatrelay/internal/core/services"
	"chatrelay/pkg/middleware"
)

// MessageHandler exposes the delivery-receipt endpoints used by provider
// callbacks and operator tooling.
type MessageHandler struct {
	router *services.RouterService
}

func NewMessageHandler(router *services.RouterService) *MessageHandler {
	return &MessageHandler{router: router}
}

func (h *MessageHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, domain.StatusDelivered)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, domain.StatusRead)
}

func (h *MessageHandler) mark(w http.ResponseWriter, r *http.Request, status domain.Status) {
	log := middleware.LoggerFrom(r.Context())
	msgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid message id"})
		return
	}
	var msg *domain.Message
	if status == domain.StatusDelivered {
		msg, err = h.router.MarkDelivered(r.Context(), msgID)
	} else {
		msg, err = h.router.MarkRead(r.Context(), msgID)
	}
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrMessageNotFound):
			code = http.StatusNotFound
		case errors.Is(err, domain.ErrBadTransition):
			code = http.StatusConflict
		}
		log.ErrorContext(r.Context(), "message handler - mark status failed", "message_id", msgID, "err", err)
		writeJSON(w, code, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     string(msg.Status),
		"message_id": msg.ID,
	})
}
