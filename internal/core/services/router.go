package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chatrelay/internal/core/contracts"
	"chatrelay/internal/core/domain"
)

var routerTracer = otel.Tracer("router-service")

const defaultPageLimit = 30

// RouterService translates structured client requests into storage and
// provider calls: conversation listing, contact lookup, message paging and
// outbound sends. One instance serves every session.
type RouterService struct {
	log       *slog.Logger
	apps      domain.AppRepository
	contacts  domain.ContactRepository
	messages  domain.MessageRepository
	provider  contracts.Provider
	presence  contracts.PresenceStore
	broadcast contracts.Broadcaster
}

func NewRouterService(
	log *slog.Logger,
	apps domain.AppRepository,
	contacts domain.ContactRepository,
	messages domain.MessageRepository,
	provider contracts.Provider,
	presence contracts.PresenceStore,
	broadcast contracts.Broadcaster,
) *RouterService {
	return &RouterService{
		log:       log,
		apps:      apps,
		contacts:  contacts,
		messages:  messages,
		provider:  provider,
		presence:  presence,
		broadcast: broadcast,
	}
}

// Conversations returns the inbox view for an app: the most recent message
// per contact, newest first, with the presence flag filled in.
func (r *RouterService) Conversations(ctx context.Context, appID uuid.UUID) ([]domain.ConversationSummary, error) {
	ctx, span := routerTracer.Start(ctx, "RouterService.Conversations", trace.WithAttributes(
		attribute.String("app_id", appID.String()),
	))
	defer span.End()

	if _, err := r.apps.GetApp(ctx, appID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	summaries, err := r.messages.RecentConversations(ctx, appID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "conversation query failed")
		r.log.ErrorContext(ctx, "router - conversations - query failed", "app_id", appID, "err", err)
		return nil, err
	}
	// Presence enrichment is best effort; the inbox is still served when
	// the presence store is down.
	online, err := r.presence.OnlineContacts(ctx, appID.String())
	if err != nil {
		r.log.WarnContext(ctx, "router - conversations - presence lookup failed", "app_id", appID, "err", err)
	} else {
		onlineSet := make(map[string]struct{}, len(online))
		for _, waID := range online {
			onlineSet[waID] = struct{}{}
		}
		for i := range summaries {
			_, summaries[i].Online = onlineSet[summaries[i].WaID]
		}
	}
	span.SetAttributes(attribute.Int("conversations", len(summaries)))
	return summaries, nil
}

// GetContact returns one contact profile by external id.
func (r *RouterService) GetContact(ctx context.Context, appID uuid.UUID, waID string) (*domain.Contact, error) {
	ctx, span := routerTracer.Start(ctx, "RouterService.GetContact", trace.WithAttributes(
		attribute.String("app_id", appID.String()),
		attribute.String("wa_id", waID),
	))
	defer span.End()

	if _, err := r.apps.GetApp(ctx, appID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	contact, err := r.contacts.GetByWaID(ctx, appID, waID)
	if err != nil {
		span.RecordError(err)
		r.log.ErrorContext(ctx, "router - get contact - lookup failed", "app_id", appID, "wa_id", waID, "err", err)
		return nil, err
	}
	return contact, nil
}

// GetMessages returns one ascending page of a contact's history. Paging
// walks backward from the newest message: offset 0 yields the most recent
// limit messages, oldest of that window first.
func (r *RouterService) GetMessages(ctx context.Context, appID uuid.UUID, waID string, offset, limit int) ([]domain.Message, int, error) {
	ctx, span := routerTracer.Start(ctx, "RouterService.GetMessages", trace.WithAttributes(
		attribute.String("app_id", appID.String()),
		attribute.String("wa_id", waID),
		attribute.Int("offset", offset),
		attribute.Int("limit", limit),
	))
	defer span.End()

	if limit <= 0 {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	if _, err := r.apps.GetApp(ctx, appID); err != nil {
		span.RecordError(err)
		return nil, 0, err
	}
	contact, err := r.contacts.GetByWaID(ctx, appID, waID)
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}
	total, err := r.messages.Count(ctx, appID, contact.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return nil, 0, err
	}
	start := total - offset - limit
	if start < 0 {
		start = 0
	}
	page, err := r.messages.Page(ctx, appID, contact.ID, start, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page query failed")
		r.log.ErrorContext(ctx, "router - get messages - page failed", "app_id", appID, "wa_id", waID, "err", err)
		return nil, 0, err
	}
	span.SetAttributes(attribute.Int("messages", len(page)))
	return page, total, nil
}

// SendMessage validates and persists one outbound message, forwards it to
// the provider, and mirrors it to every live session of the app. Provider
// failure is recorded as status failed on the persisted record; it does not
// roll persistence back and does not fail the request. The returned bool is
// the delivery hint.
func (r *RouterService) SendMessage(ctx context.Context, appID uuid.UUID, req domain.SendRequest) (*domain.Message, bool, error) {
	ctx, span := routerTracer.Start(ctx, "RouterService.SendMessage", trace.WithAttributes(
		attribute.String("app_id", appID.String()),
		attribute.String("to", req.To),
		attribute.String("message_type", string(req.Type)),
	))
	defer span.End()

	app, err := r.apps.GetApp(ctx, appID)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	contact, err := r.contacts.GetByWaID(ctx, appID, req.To)
	if err != nil {
		span.RecordError(err)
		r.log.ErrorContext(ctx, "router - send message - unknown destination", "app_id", appID, "to", req.To, "err", err)
		return nil, false, err
	}
	// Validate before persisting: a malformed payload must leave no row.
	if _, err := domain.ParsePayload(req.Type, req.Payload); err != nil {
		span.RecordError(err)
		r.log.ErrorContext(ctx, "router - send message - payload rejected", "app_id", appID, "to", req.To, "err", err)
		return nil, false, err
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		ID:         uuid.New(),
		AppID:      app.ID,
		ContactID:  contact.ID,
		FromNumber: app.WhatsappNumber,
		ToNumber:   contact.WaID,
		Type:       req.Type,
		Payload:    req.Payload,
		Direction:  domain.DirectionOutbound,
		Status:     domain.StatusSent,
		SentAt:     &now,
		CreatedAt:  now,
	}
	if err := r.messages.Create(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		r.log.ErrorContext(ctx, "router - send message - persist failed", "app_id", appID, "to", req.To, "err", err)
		return nil, false, fmt.Errorf("persist outbound message: %w", err)
	}

	delivered := true
	if err := r.provider.Send(ctx, msg); err != nil {
		delivered = false
		span.RecordError(err)
		r.log.ErrorContext(ctx, "router - send message - provider send failed",
			"app_id", appID, "to", req.To, "message_id", msg.ID, "err", err)
		if updated, uerr := r.messages.UpdateStatus(ctx, msg.ID, domain.StatusFailed, time.Now().UTC()); uerr != nil {
			r.log.ErrorContext(ctx, "router - send message - mark failed errored", "message_id", msg.ID, "err", uerr)
		} else {
			msg = updated
		}
	}

	// Mirror to every live session of the app, whatever the send outcome.
	r.broadcast.Broadcast(ctx, app.ID.String(), domain.NewMessageEvent{
		Type:    domain.EventNewMessage,
		WaID:    contact.WaID,
		Message: msg,
	})
	r.broadcast.Broadcast(ctx, app.ID.String(), domain.ConversationEvent{
		Type: domain.EventConversation,
		Conversation: domain.ConversationSummary{
			WaID:            contact.WaID,
			ContactName:     displayName(contact),
			LastMessageType: msg.Type,
			LastMessageAt:   now,
		},
	})
	span.SetAttributes(attribute.Bool("delivered", delivered))
	return msg, delivered, nil
}

// MarkDelivered applies the delivered status to a message.
func (r *RouterService) MarkDelivered(ctx context.Context, msgID uuid.UUID) (*domain.Message, error) {
	return r.markStatus(ctx, msgID, domain.StatusDelivered)
}

// MarkRead applies the read status to a message.
func (r *RouterService) MarkRead(ctx context.Context, msgID uuid.UUID) (*domain.Message, error) {
	return r.markStatus(ctx, msgID, domain.StatusRead)
}

func (r *RouterService) markStatus(ctx context.Context, msgID uuid.UUID, status domain.Status) (*domain.Message, error) {
	ctx, span := routerTracer.Start(ctx, "RouterService.markStatus", trace.WithAttributes(
		attribute.String("message_id", msgID.String()),
		attribute.String("status", string(status)),
	))
	defer span.End()

	msg, err := r.messages.UpdateStatus(ctx, msgID, status, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, domain.ErrMessageNotFound) && !errors.Is(err, domain.ErrBadTransition) {
			r.log.ErrorContext(ctx, "router - mark status - update failed", "message_id", msgID, "status", status, "err", err)
		}
		return nil, err
	}
	return msg, nil
}

func displayName(c *domain.Contact) string {
	if c.Name != "" {
		return c.Name
	}
	if c.ProfileName != "" {
		return c.ProfileName
	}
	return c.WaID
}
