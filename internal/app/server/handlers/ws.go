package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatrelay/internal/app/server/ws"
	"chatrelay/internal/core/contracts"
	"chatrelay/internal/core/domain"
	"chatrelay/internal/core/services"
	"chatrelay/pkg/middleware"
)

// WSHandler owns one client socket end to end: accept, resolve the routing
// key, register, run the receive loop, and guarantee unregistration on
// every exit path.
type WSHandler struct {
	hub    contracts.Registry
	router *services.RouterService
	apps   domain.AppRepository
}

func NewWSHandler(hub contracts.Registry, router *services.RouterService, apps domain.AppRepository) *WSHandler {
	return &WSHandler{hub: hub, router: router, apps: apps}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // tighten later
	},
}

func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r.Context())
	span := trace.SpanFromContext(r.Context())

	// The session outlives the HTTP request context.
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade failed", "err", err)
		return
	}
	socket := ws.NewWebSocket(ctx, conn)
	defer socket.Close()

	// Resolve the routing key. No valid app id means no registration:
	// the session goes straight to closing.
	appID, err := h.resolveApp(ctx, r)
	if err != nil {
		log.WarnContext(r.Context(), "ws handler - routing key rejected", "err", err)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid app_id")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return
	}
	key := appID.String()
	span.SetAttributes(attribute.String("app_id", key))

	client := ws.NewClient(ctx, socket, key)
	h.hub.Register(key, client)
	defer h.hub.Unregister(key, client)
	defer client.Close()
	log.InfoContext(r.Context(), "ws handler - session registered", "app_id", key, "conn_id", client.ID())

	socket.ReadLoop(func(data []byte) {
		h.dispatch(ctx, log, client, appID, data)
	})
	log.InfoContext(r.Context(), "ws handler - session closed", "app_id", key, "conn_id", client.ID())
}

func (h *WSHandler) resolveApp(ctx context.Context, r *http.Request) (uuid.UUID, error) {
	raw := r.URL.Query().Get("app_id")
	if raw == "" {
		return uuid.Nil, errors.New("missing app_id")
	}
	appID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := h.apps.GetApp(ctx, appID); err != nil {
		return uuid.Nil, err
	}
	return appID, nil
}

// dispatch routes one client frame. Malformed or failing requests answer
// with a structured error on the same connection; only transport failures
// end the session.
func (h *WSHandler) dispatch(ctx context.Context, log *slog.Logger, client *ws.RuntimeClient, appID uuid.UUID, data []byte) {
	var req domain.ClientRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.reply(ctx, client, domain.NewErrorEvent(domain.ErrInvalidPayload))
		return
	}

	var resp any
	var err error
	switch req.Type {
	case domain.RequestConversations:
		var summaries []domain.ConversationSummary
		if summaries, err = h.router.Conversations(ctx, appID); err == nil {
			resp = domain.ConversationsEvent{Type: domain.EventConversations, Conversations: summaries}
		}
	case domain.RequestGetContact:
		if req.WaID == "" {
			err = domain.ErrInvalidPayload
			break
		}
		var contact *domain.Contact
		if contact, err = h.router.GetContact(ctx, appID, req.WaID); err == nil {
			resp = domain.ContactEvent{Type: domain.EventContact, Contact: contact}
		}
	case domain.RequestGetMessages:
		if req.WaID == "" {
			err = domain.ErrInvalidPayload
			break
		}
		var page []domain.Message
		var total int
		if page, total, err = h.router.GetMessages(ctx, appID, req.WaID, req.Offset, req.Limit); err == nil {
			resp = domain.MessagesEvent{
				Type:     domain.EventMessages,
				WaID:     req.WaID,
				Messages: page,
				Count:    len(page),
				Total:    total,
			}
		}
	case domain.RequestSendMessage:
		if req.Send == nil {
			err = domain.ErrInvalidPayload
			break
		}
		var msg *domain.Message
		var delivered bool
		if msg, delivered, err = h.router.SendMessage(ctx, appID, *req.Send); err == nil {
			resp = domain.MessageSentEvent{
				Type:      domain.EventMessageSent,
				WaID:      req.Send.To,
				Message:   msg,
				Delivered: delivered,
			}
		}
	default:
		err = domain.ErrInvalidPayload
	}

	if err != nil {
		log.ErrorContext(ctx, "ws handler - dispatch - request failed", "type", req.Type, "err", err)
		h.reply(ctx, client, domain.NewErrorEvent(err))
		return
	}
	h.reply(ctx, client, resp)
}

// reply pushes a response through the client's outbound queue so request
// answers and broadcasts stay in one ordered stream.
func (h *WSHandler) reply(ctx context.Context, client *ws.RuntimeClient, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = client.Send(ctx, data)
}
