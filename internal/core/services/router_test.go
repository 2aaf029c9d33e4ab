package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/core/domain"
)

type routerFixture struct {
	app       *domain.App
	contacts  *fakeContactRepo
	messages  *fakeMessageRepo
	provider  *fakeProvider
	presence  *fakePresence
	broadcast *fakeBroadcaster
	svc       *RouterService
}

func newRouterFixture() *routerFixture {
	app := &domain.App{
		ID:             uuid.New(),
		BusinessName:   "Acme",
		WhatsappNumber: "14155550000",
		Active:         true,
	}
	f := &routerFixture{
		app:       app,
		contacts:  &fakeContactRepo{},
		messages:  &fakeMessageRepo{},
		provider:  &fakeProvider{},
		presence:  &fakePresence{},
		broadcast: &fakeBroadcaster{},
	}
	f.svc = NewRouterService(discardLogger(), newFakeAppRepo(app), f.contacts, f.messages, f.provider, f.presence, f.broadcast)
	return f
}

func (f *routerFixture) addContact(waID, name string) *domain.Contact {
	c := &domain.Contact{
		ID:     uuid.New(),
		AppID:  f.app.ID,
		WaID:   waID,
		Name:   name,
		Active: true,
	}
	f.contacts.contacts = append(f.contacts.contacts, c)
	return c
}

func (f *routerFixture) seedMessages(contact *domain.Contact, n int) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		body, _ := json.Marshal(map[string]string{"body": fmt.Sprintf("msg %d", i)})
		f.messages.messages = append(f.messages.messages, &domain.Message{
			ID:         uuid.New(),
			AppID:      f.app.ID,
			ContactID:  contact.ID,
			FromNumber: contact.WaID,
			ToNumber:   f.app.WhatsappNumber,
			Type:       domain.TypeText,
			Payload:    body,
			Direction:  domain.DirectionInbound,
			Status:     domain.StatusSent,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func bodyOf(t *testing.T, m domain.Message) string {
	t.Helper()
	var p domain.TextPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return p.Body
}

func TestGetMessagesPagesBackwardFromNewest(t *testing.T) {
	f := newRouterFixture()
	contact := f.addContact("14155550111", "Ada")
	f.seedMessages(contact, 45)
	ctx := context.Background()

	page, total, err := f.svc.GetMessages(ctx, f.app.ID, contact.WaID, 0, 20)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if total != 45 {
		t.Fatalf("expected total 45, got %d", total)
	}
	if len(page) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(page))
	}
	// Offset 0 is the newest window, oldest of that window first.
	if got := bodyOf(t, page[0]); got != "msg 26" {
		t.Fatalf("expected first message of page to be msg 26, got %q", got)
	}
	if got := bodyOf(t, page[19]); got != "msg 45" {
		t.Fatalf("expected last message of page to be msg 45, got %q", got)
	}

	// The next page walks further back in history.
	page, _, err = f.svc.GetMessages(ctx, f.app.ID, contact.WaID, 20, 20)
	if err != nil {
		t.Fatalf("get messages offset 20: %v", err)
	}
	if len(page) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(page))
	}
	if got := bodyOf(t, page[0]); got != "msg 6" {
		t.Fatalf("expected first message to be msg 6, got %q", got)
	}
	if got := bodyOf(t, page[19]); got != "msg 25" {
		t.Fatalf("expected last message to be msg 25, got %q", got)
	}
}

func TestGetMessagesClampsAtOldestHistory(t *testing.T) {
	f := newRouterFixture()
	contact := f.addContact("14155550111", "Ada")
	f.seedMessages(contact, 5)

	page, total, err := f.svc.GetMessages(context.Background(), f.app.ID, contact.WaID, 0, 20)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(page) != 5 {
		t.Fatalf("expected the whole history, got %d", len(page))
	}
	if got := bodyOf(t, page[0]); got != "msg 1" {
		t.Fatalf("expected msg 1 first, got %q", got)
	}
}

func TestGetMessagesDefaultsLimit(t *testing.T) {
	f := newRouterFixture()
	contact := f.addContact("14155550111", "Ada")
	f.seedMessages(contact, 45)

	page, _, err := f.svc.GetMessages(context.Background(), f.app.ID, contact.WaID, 0, 0)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(page) != defaultPageLimit {
		t.Fatalf("expected default limit %d, got %d", defaultPageLimit, len(page))
	}
}

func TestSendMessagePersistsAndForwards(t *testing.T) {
	f := newRouterFixture()
	contact := f.addContact("14155550111", "Ada")

	msg, delivered, err := f.svc.SendMessage(context.Background(), f.app.ID, domain.SendRequest{
		To:      contact.WaID,
		Type:    domain.TypeText,
		Payload: json.RawMessage(`{"body":"hello"}`),
	})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if !delivered {
		t.Fatal("expected delivered hint")
	}
	if msg.Status != domain.StatusSent {
		t.Fatalf("expected status sent, got %s", msg.Status)
	}
	if msg.Direction != domain.DirectionOutbound {
		t.Fatalf("expected outbound direction, got %s", msg.Direction)
	}
	if msg.FromNumber != f.app.WhatsappNumber || msg.ToNumber != contact.WaID {
		t.Fatalf("unexpected endpoints: from %q to %q", msg.FromNumber, msg.ToNumber)
	}
	if len(f.provider.sent) != 1 {
		t.Fatalf("expected 1 provider send, got %d", len(f.provider.sent))
	}
	if f.messages.byID(msg.ID) == nil {
		t.Fatal("expected the message persisted")
	}

	recs := f.broadcast.records()
	if len(recs) != 2 {
		t.Fatalf("expected new_message and conversation broadcasts, got %d", len(recs))
	}
	if recs[0].key != f.app.ID.String() {
		t.Fatalf("expected broadcast under app id, got %q", recs[0].key)
	}
	if _, ok := recs[0].event.(domain.NewMessageEvent); !ok {
		t.Fatalf("expected first broadcast to be NewMessageEvent, got %T", recs[0].event)
	}
	if _, ok := recs[1].event.(domain.ConversationEvent); !ok {
		t.Fatalf("expected second broadcast to be ConversationEvent, got %T", recs[1].event)
	}
}

func TestSendMessageInvalidPayloadLeavesNoRow(t *testing.T) {
	f := newRouterFixture()
	contact := f.addContact("14155550111", "Ada")

	_, _, err := f.svc.SendMessage(context.Background(), f.app.ID, domain.SendRequest{
		To:      contact.WaID,
		Type:    domain.TypeText,
		Payload: json.RawMessage(`{}`),
	})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if len(f.messages.messages) != 0 {
		t.Fatalf("expected no persisted rows, got %d", len(f.messages.messages))
	}
	if len(f.provider.sent) != 0 {
		t.Fatal("expected nothing forwarded to the provider")
	}
	if len(f.broadcast.records()) != 0 {
		t.Fatal("expected no broadcasts")
	}
}

func TestSendMessageUnknownDestination(t *testing.T) {
	f := newRouterFixture()

	_, _, err := f.svc.SendMessage(context.Background(), f.app.ID, domain.SendRequest{
		To:      "19999999999",
		Type:    domain.TypeText,
		Payload: json.RawMessage(`{"body":"hello"}`),
	})
	if !errors.Is(err, domain.ErrContactNotFound) {
		t.Fatalf("expected ErrContactNotFound, got %v", err)
	}
	if len(f.messages.messages) != 0 {
		t.Fatal("expected no persisted rows")
	}
}

func TestSendMessageProviderFailureKeepsRecord(t *testing.T) {
	f := newRouterFixture()
	contact := f.addContact("14155550111", "Ada")
	f.provider.err = fmt.Errorf("%w: gateway timeout", domain.ErrSendFailed)

	msg, delivered, err := f.svc.SendMessage(context.Background(), f.app.ID, domain.SendRequest{
		To:      contact.WaID,
		Type:    domain.TypeText,
		Payload: json.RawMessage(`{"body":"hello"}`),
	})
	if err != nil {
		t.Fatalf("a provider failure must not fail the request: %v", err)
	}
	if delivered {
		t.Fatal("expected delivered=false")
	}
	if msg.Status != domain.StatusFailed {
		t.Fatalf("expected status failed, got %s", msg.Status)
	}
	stored := f.messages.byID(msg.ID)
	if stored == nil {
		t.Fatal("expected the message to stay persisted")
	}
	if stored.Status != domain.StatusFailed {
		t.Fatalf("expected stored status failed, got %s", stored.Status)
	}
	// Sessions are still notified so every client renders the attempt.
	if len(f.broadcast.records()) != 2 {
		t.Fatalf("expected broadcasts despite provider failure, got %d", len(f.broadcast.records()))
	}
}

func TestSendMessageUnknownApp(t *testing.T) {
	f := newRouterFixture()
	_, _, err := f.svc.SendMessage(context.Background(), uuid.New(), domain.SendRequest{
		To:      "14155550111",
		Type:    domain.TypeText,
		Payload: json.RawMessage(`{"body":"hello"}`),
	})
	if !errors.Is(err, domain.ErrAppNotFound) {
		t.Fatalf("expected ErrAppNotFound, got %v", err)
	}
}

func TestConversationsEnrichesPresence(t *testing.T) {
	f := newRouterFixture()
	ada := f.addContact("14155550111", "Ada")
	bob := f.addContact("14155550222", "Bob")
	f.seedMessages(ada, 1)
	ctx := context.Background()

	now := time.Now().UTC()
	f.messages.messages = append(f.messages.messages, &domain.Message{
		ID:         uuid.New(),
		AppID:      f.app.ID,
		ContactID:  bob.ID,
		FromNumber: bob.WaID,
		Type:       domain.TypeText,
		Payload:    json.RawMessage(`{"body":"hi"}`),
		Direction:  domain.DirectionInbound,
		Status:     domain.StatusSent,
		CreatedAt:  now,
	})
	if err := f.presence.MarkOnline(ctx, f.app.ID.String(), bob.WaID, time.Minute); err != nil {
		t.Fatalf("mark online: %v", err)
	}

	summaries, err := f.svc.Conversations(ctx, f.app.ID)
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	byWaID := make(map[string]domain.ConversationSummary, len(summaries))
	for _, s := range summaries {
		byWaID[s.WaID] = s
	}
	if s, ok := byWaID[bob.WaID]; !ok || !s.Online {
		t.Fatalf("expected %s online, got %+v", bob.WaID, s)
	}
}

func TestConversationsSurvivePresenceOutage(t *testing.T) {
	f := newRouterFixture()
	ada := f.addContact("14155550111", "Ada")
	f.seedMessages(ada, 1)
	f.presence.err = errors.New("redis down")

	summaries, err := f.svc.Conversations(context.Background(), f.app.ID)
	if err != nil {
		t.Fatalf("expected the inbox served without presence: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(summaries))
	}
	if summaries[0].Online {
		t.Fatal("expected offline when presence is unavailable")
	}
}

func TestMarkDeliveredThenRead(t *testing.T) {
	f := newRouterFixture()
	contact := f.addContact("14155550111", "Ada")
	f.seedMessages(contact, 1)
	msgID := f.messages.messages[0].ID
	ctx := context.Background()

	msg, err := f.svc.MarkDelivered(ctx, msgID)
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if msg.Status != domain.StatusDelivered || msg.ReceivedAt == nil {
		t.Fatalf("expected delivered with received_at set, got %+v", msg)
	}

	msg, err = f.svc.MarkRead(ctx, msgID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if msg.Status != domain.StatusRead || msg.ReadAt == nil {
		t.Fatalf("expected read with read_at set, got %+v", msg)
	}

	// Status changes never move backward.
	if _, err := f.svc.MarkDelivered(ctx, msgID); !errors.Is(err, domain.ErrBadTransition) {
		t.Fatalf("expected ErrBadTransition, got %v", err)
	}
}

func TestMarkDeliveredUnknownMessage(t *testing.T) {
	f := newRouterFixture()
	if _, err := f.svc.MarkDelivered(context.Background(), uuid.New()); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}
