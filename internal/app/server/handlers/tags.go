package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"chatrelay/internal/core/domain"
	"chatrelay/internal/core/services"
	"chatrelay/pkg/middleware"
)

// TagHandler exposes the tag management endpoints.
type TagHandler struct {
	svc *services.TagService
}

func NewTagHandler(svc *services.TagService) *TagHandler {
	return &TagHandler{svc: svc}
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	appID, ok := pathUUID(w, r, "app_id")
	if !ok {
		return
	}
	tags, err := h.svc.ListTags(r.Context(), appID)
	if err != nil {
		tagError(w, r, err)
		return
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	appID, ok := pathUUID(w, r, "app_id")
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid request body"})
		return
	}
	tag, err := h.svc.CreateTag(r.Context(), appID, body.Name)
	if err != nil {
		tagError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *TagHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	tagID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "enabled field required"})
		return
	}
	if err := h.svc.SetTagEnabled(r.Context(), tagID, *body.Enabled); err != nil {
		tagError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tagID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteTag(r.Context(), tagID); err != nil {
		tagError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *TagHandler) Assign(w http.ResponseWriter, r *http.Request) {
	appID, waID, tagID, ok := contactTagPath(w, r)
	if !ok {
		return
	}
	if err := h.svc.AssignTag(r.Context(), appID, waID, tagID); err != nil {
		tagError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *TagHandler) Remove(w http.ResponseWriter, r *http.Request) {
	appID, waID, tagID, ok := contactTagPath(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveTag(r.Context(), appID, waID, tagID); err != nil {
		tagError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func contactTagPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, uuid.UUID, bool) {
	appID, ok := pathUUID(w, r, "app_id")
	if !ok {
		return uuid.Nil, "", uuid.Nil, false
	}
	tagID, ok := pathUUID(w, r, "tag_id")
	if !ok {
		return uuid.Nil, "", uuid.Nil, false
	}
	waID := r.PathValue("wa_id")
	if waID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "wa_id required"})
		return uuid.Nil, "", uuid.Nil, false
	}
	return appID, waID, tagID, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func tagError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAppNotFound),
		errors.Is(err, domain.ErrTagNotFound),
		errors.Is(err, domain.ErrContactNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrTagExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidPayload):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		middleware.LoggerFrom(r.Context()).ErrorContext(r.Context(), "tag handler - request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"status": "error", "message": err.Error()})
}
