package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"

	"chatrelay/internal/core/contracts"
	"chatrelay/internal/core/domain"
)

var webhookTracer = otel.Tracer("webhook-service")

// WebhookService turns provider-shaped webhook documents into contact and
// message records and notifies the app's live sessions.
type WebhookService struct {
	log         *slog.Logger
	apps        domain.AppRepository
	contacts    domain.ContactRepository
	messages    domain.MessageRepository
	presence    contracts.PresenceStore
	broadcast   contracts.Broadcaster
	tx          contracts.Transactor
	presenceTTL time.Duration
}

func NewWebhookService(
	log *slog.Logger,
	apps domain.AppRepository,
	contacts domain.ContactRepository,
	messages domain.MessageRepository,
	presence contracts.PresenceStore,
	broadcast contracts.Broadcaster,
	tx contracts.Transactor,
	presenceTTL time.Duration,
) *WebhookService {
	return &WebhookService{
		log:         log,
		apps:        apps,
		contacts:    contacts,
		messages:    messages,
		presence:    presence,
		broadcast:   broadcast,
		tx:          tx,
		presenceTTL: presenceTTL,
	}
}

// webhookDoc mirrors the provider's nested event shape. Only the fields the
// relay consumes are declared.
type webhookDoc struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
				} `json:"metadata"`
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []map[string]json.RawMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Normalize extracts sender, destination number, message type, payload and
// timestamp from a raw provider document. Any missing required field yields
// ErrMalformedEvent.
func (s *WebhookService) Normalize(raw []byte) (*domain.NormalizedEvent, error) {
	var doc webhookDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if len(doc.Entry) == 0 || len(doc.Entry[0].Changes) == 0 {
		return nil, fmt.Errorf("%w: missing entry or changes", domain.ErrMalformedEvent)
	}
	value := doc.Entry[0].Changes[0].Value
	if value.Metadata.DisplayPhoneNumber == "" {
		return nil, fmt.Errorf("%w: missing destination number", domain.ErrMalformedEvent)
	}
	if len(value.Contacts) == 0 || value.Contacts[0].WaID == "" {
		return nil, fmt.Errorf("%w: missing sender contact", domain.ErrMalformedEvent)
	}
	if len(value.Messages) == 0 {
		return nil, fmt.Errorf("%w: missing messages", domain.ErrMalformedEvent)
	}
	entry := value.Messages[0]

	var msgType string
	if raw, ok := entry["type"]; ok {
		if err := json.Unmarshal(raw, &msgType); err != nil || msgType == "" {
			return nil, fmt.Errorf("%w: bad message type", domain.ErrMalformedEvent)
		}
	} else {
		return nil, fmt.Errorf("%w: missing message type", domain.ErrMalformedEvent)
	}
	// The type-specific body lives under a field named after the type
	// (text, image, location, ...).
	payload, ok := entry[msgType]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s payload", domain.ErrMalformedEvent, msgType)
	}

	var tsRaw string
	if raw, ok := entry["timestamp"]; ok {
		if err := json.Unmarshal(raw, &tsRaw); err != nil {
			return nil, fmt.Errorf("%w: bad timestamp", domain.ErrMalformedEvent)
		}
	}
	if tsRaw == "" {
		return nil, fmt.Errorf("%w: missing timestamp", domain.ErrMalformedEvent)
	}
	unix, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q", domain.ErrMalformedEvent, tsRaw)
	}

	return &domain.NormalizedEvent{
		SenderWaID:    value.Contacts[0].WaID,
		SenderName:    value.Contacts[0].Profile.Name,
		DisplayNumber: value.Metadata.DisplayPhoneNumber,
		MessageType:   domain.MessageType(msgType),
		Payload:       payload,
		Timestamp:     time.Unix(unix, 0).UTC(),
	}, nil
}

// ProcessEvent normalizes one webhook document, persists the contact and
// message atomically, refreshes the sender's presence and fans the new
// message out to the owning app's sessions. Fan-out happens after the
// transaction commits; a webhook failure never corrupts persisted state.
func (s *WebhookService) ProcessEvent(ctx context.Context, raw []byte) error {
	ctx, span := webhookTracer.Start(ctx, "WebhookService.ProcessEvent", trace.WithAttributes(
		attribute.Int("payload_size", len(raw)),
	))
	defer span.End()

	ev, err := s.Normalize(raw)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "webhook - process event - normalize failed", "err", err)
		return err
	}
	span.SetAttributes(
		attribute.String("sender_wa_id", ev.SenderWaID),
		attribute.String("message_type", string(ev.MessageType)),
	)

	app, err := s.apps.GetAppByNumber(ctx, ev.DisplayNumber)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "webhook - process event - app lookup failed", "display_number", ev.DisplayNumber, "err", err)
		return err
	}

	now := time.Now().UTC()
	var contact *domain.Contact
	msg := &domain.Message{
		ID:         uuid.New(),
		AppID:      app.ID,
		FromNumber: ev.SenderWaID,
		ToNumber:   app.WhatsappNumber,
		Type:       ev.MessageType,
		Payload:    ev.Payload,
		Direction:  domain.DirectionInbound,
		Status:     domain.StatusSent,
		SentAt:     &ev.Timestamp,
		ReceivedAt: &now,
		CreatedAt:  now,
	}
	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		contact, txErr = s.contacts.GetOrCreate(txCtx, app.ID, ev.SenderWaID, domain.ContactAttrs{
			Name:         ev.SenderName,
			ProfileName:  ev.SenderName,
			MobileNumber: ev.SenderWaID,
			Source:       "whatsapp",
			LastActiveAt: ev.Timestamp,
		})
		if txErr != nil {
			return txErr
		}
		msg.ContactID = contact.ID
		return s.messages.Create(txCtx, msg)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.log.ErrorContext(ctx, "webhook - process event - persist failed",
			"app_id", app.ID, "sender_wa_id", ev.SenderWaID, "err", err)
		return err
	}
	s.log.InfoContext(ctx, "webhook - process event - message stored",
		"app_id", app.ID, "sender_wa_id", ev.SenderWaID, "message_id", msg.ID)

	if err := s.presence.MarkOnline(ctx, app.ID.String(), contact.WaID, s.presenceTTL); err != nil {
		s.log.WarnContext(ctx, "webhook - process event - presence update failed",
			"app_id", app.ID, "wa_id", contact.WaID, "err", err)
	}

	key := app.ID.String()
	s.broadcast.Broadcast(ctx, key, domain.NewMessageEvent{
		Type:    domain.EventNewMessage,
		WaID:    contact.WaID,
		Message: msg,
	})
	s.broadcast.Broadcast(ctx, key, domain.ConversationEvent{
		Type: domain.EventConversation,
		Conversation: domain.ConversationSummary{
			WaID:            contact.WaID,
			ContactName:     displayName(contact),
			LastMessageType: msg.Type,
			LastMessageAt:   ev.Timestamp,
			Online:          true,
		},
	})
	return nil
}
