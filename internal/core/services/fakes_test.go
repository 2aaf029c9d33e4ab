package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAppRepo struct {
	apps map[uuid.UUID]*domain.App
}

func newFakeAppRepo(apps ...*domain.App) *fakeAppRepo {
	r := &fakeAppRepo{apps: make(map[uuid.UUID]*domain.App)}
	for _, a := range apps {
		r.apps[a.ID] = a
	}
	return r
}

func (r *fakeAppRepo) GetApp(_ context.Context, id uuid.UUID) (*domain.App, error) {
	if a, ok := r.apps[id]; ok {
		return a, nil
	}
	return nil, domain.ErrAppNotFound
}

func (r *fakeAppRepo) GetAppByNumber(_ context.Context, number string) (*domain.App, error) {
	for _, a := range r.apps {
		if a.WhatsappNumber == number {
			return a, nil
		}
	}
	return nil, domain.ErrAppNotFound
}

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts []*domain.Contact
}

func (r *fakeContactRepo) GetByWaID(_ context.Context, appID uuid.UUID, waID string) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.AppID == appID && c.WaID == waID {
			return c, nil
		}
	}
	return nil, domain.ErrContactNotFound
}

func (r *fakeContactRepo) GetOrCreate(_ context.Context, appID uuid.UUID, waID string, attrs domain.ContactAttrs) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.AppID == appID && c.WaID == waID {
			at := attrs.LastActiveAt
			c.LastActiveAt = &at
			return c, nil
		}
	}
	at := attrs.LastActiveAt
	c := &domain.Contact{
		ID:           uuid.New(),
		AppID:        appID,
		WaID:         waID,
		Name:         attrs.Name,
		ProfileName:  attrs.ProfileName,
		CountryCode:  attrs.CountryCode,
		MobileNumber: attrs.MobileNumber,
		Source:       attrs.Source,
		Active:       true,
		LastActiveAt: &at,
		CreatedAt:    time.Now().UTC(),
	}
	r.contacts = append(r.contacts, c)
	return c, nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  []*domain.Message
	createErr error
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	stored := *msg
	r.messages = append(r.messages, &stored)
	return nil
}

func (r *fakeMessageRepo) Count(_ context.Context, appID, contactID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.AppID == appID && m.ContactID == contactID {
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) Page(_ context.Context, appID, contactID uuid.UUID, offset, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Message
	for _, m := range r.messages {
		if m.AppID == appID && m.ContactID == contactID {
			all = append(all, *m)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *fakeMessageRepo) RecentConversations(_ context.Context, appID uuid.UUID) ([]domain.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := make(map[string]*domain.Message)
	for _, m := range r.messages {
		if m.AppID != appID {
			continue
		}
		waID := m.FromNumber
		if m.Direction == domain.DirectionOutbound {
			waID = m.ToNumber
		}
		prev, ok := latest[waID]
		if !ok || m.CreatedAt.After(prev.CreatedAt) {
			latest[waID] = m
		}
	}
	var out []domain.ConversationSummary
	for waID, m := range latest {
		out = append(out, domain.ConversationSummary{
			WaID:            waID,
			LastMessageType: m.Type,
			LastMessageAt:   m.CreatedAt,
		})
	}
	return out, nil
}

func (r *fakeMessageRepo) UpdateStatus(_ context.Context, msgID uuid.UUID, status domain.Status, at time.Time) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID != msgID {
			continue
		}
		if !m.Status.CanTransition(status) {
			return nil, fmt.Errorf("%w: %s to %s", domain.ErrBadTransition, m.Status, status)
		}
		m.Status = status
		switch status {
		case domain.StatusDelivered:
			m.ReceivedAt = &at
		case domain.StatusRead:
			m.ReadAt = &at
		}
		copied := *m
		return &copied, nil
	}
	return nil, domain.ErrMessageNotFound
}

func (r *fakeMessageRepo) byID(msgID uuid.UUID) *domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == msgID {
			return m
		}
	}
	return nil
}

type fakeProvider struct {
	mu   sync.Mutex
	err  error
	sent []*domain.Message
}

func (p *fakeProvider) Send(_ context.Context, msg *domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

type fakePresence struct {
	mu     sync.Mutex
	online map[string][]string
	err    error
}

func (p *fakePresence) MarkOnline(_ context.Context, appID, waID string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.online == nil {
		p.online = make(map[string][]string)
	}
	p.online[appID] = append(p.online[appID], waID)
	return nil
}

func (p *fakePresence) OnlineContacts(_ context.Context, appID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.online[appID], nil
}

type broadcastRecord struct {
	key   string
	event any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastRecord
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, key string, event any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastRecord{key: key, event: event})
}

func (b *fakeBroadcaster) records() []broadcastRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broadcastRecord, len(b.events))
	copy(out, b.events)
	return out
}

type fakeTagRepo struct {
	mu       sync.Mutex
	tags     []*domain.Tag
	assigned map[uuid.UUID][]uuid.UUID
}

func (r *fakeTagRepo) ListByApp(_ context.Context, appID uuid.UUID) ([]domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Tag
	for _, t := range r.tags {
		if t.AppID == appID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTagRepo) Create(_ context.Context, tag *domain.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *tag
	r.tags = append(r.tags, &stored)
	return nil
}

func (r *fakeTagRepo) SetEnabled(_ context.Context, tagID uuid.UUID, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tags {
		if t.ID == tagID {
			t.Enabled = enabled
			return nil
		}
	}
	return domain.ErrTagNotFound
}

func (r *fakeTagRepo) Delete(_ context.Context, tagID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.tags {
		if t.ID == tagID {
			r.tags = append(r.tags[:i], r.tags[i+1:]...)
			return nil
		}
	}
	return domain.ErrTagNotFound
}

func (r *fakeTagRepo) AssignToContact(_ context.Context, tagID, contactID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assigned == nil {
		r.assigned = make(map[uuid.UUID][]uuid.UUID)
	}
	r.assigned[contactID] = append(r.assigned[contactID], tagID)
	return nil
}

func (r *fakeTagRepo) RemoveFromContact(_ context.Context, tagID, contactID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tags := r.assigned[contactID]
	for i, id := range tags {
		if id == tagID {
			r.assigned[contactID] = append(tags[:i], tags[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeTx runs fn directly; the fakes have no real transactions to join.
type fakeTx struct {
	calls int
}

func (t *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}
