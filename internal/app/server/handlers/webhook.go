package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"chatrelay/internal/core/domain"
	"chatrelay/internal/core/services"
	"chatrelay/pkg/middleware"
)

const maxWebhookBody = 1 << 20

// WebhookHandler accepts provider webhook documents and hands them to the
// webhook service. Malformed documents get a structured 4xx; already
// persisted state is never corrupted by a failure.
type WebhookHandler struct {
	svc *services.WebhookService
}

func NewWebhookHandler(svc *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

func (h *WebhookHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "empty request body",
		})
		return
	}

	if err := h.svc.ProcessEvent(r.Context(), body); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrMalformedEvent):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrAppNotFound):
			status = http.StatusNotFound
		}
		log.ErrorContext(r.Context(), "webhook handler - event rejected", "status", status, "err", err)
		writeJSON(w, status, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
