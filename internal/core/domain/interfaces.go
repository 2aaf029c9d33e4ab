package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppRepository resolves tenants.
type AppRepository interface {
	GetApp(ctx context.Context, id uuid.UUID) (*App, error)
	// GetAppByNumber resolves the tenant owning a business display number,
	// which is how webhook events find their app.
	GetAppByNumber(ctx context.Context, whatsappNumber string) (*App, error)
}

// ContactRepository handles contact identity per tenant.
type ContactRepository interface {
	GetByWaID(ctx context.Context, appID uuid.UUID, waID string) (*Contact, error)
	// GetOrCreate upserts keyed by app_id + wa_id. On an existing row only
	// last_active_at is refreshed; name/profile stay as stored.
	GetOrCreate(ctx context.Context, appID uuid.UUID, waID string, attrs ContactAttrs) (*Contact, error)
}

// ContactAttrs are the fields applied only when GetOrCreate inserts.
type ContactAttrs struct {
	Name         string
	ProfileName  string
	CountryCode  string
	MobileNumber string
	Source       string
	LastActiveAt time.Time
}

// MessageRepository handles message persistence and the inbox queries.
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	Count(ctx context.Context, appID, contactID uuid.UUID) (int, error)
	// Page returns messages in ascending chronological order starting at
	// offset rows from the oldest.
	Page(ctx context.Context, appID, contactID uuid.UUID, offset, limit int) ([]Message, error)
	// RecentConversations returns the latest message per contact of the app,
	// most recent conversation first.
	RecentConversations(ctx context.Context, appID uuid.UUID) ([]ConversationSummary, error)
	// UpdateStatus applies a delivery status change, enforcing the monotonic
	// transition rules (ErrBadTransition otherwise).
	UpdateStatus(ctx context.Context, msgID uuid.UUID, status Status, at time.Time) (*Message, error)
}

// TagRepository handles tenant-scoped labels.
type TagRepository interface {
	ListByApp(ctx context.Context, appID uuid.UUID) ([]Tag, error)
	Create(ctx context.Context, tag *Tag) error
	SetEnabled(ctx context.Context, tagID uuid.UUID, enabled bool) error
	Delete(ctx context.Context, tagID uuid.UUID) error
	AssignToContact(ctx context.Context, tagID, contactID uuid.UUID) error
	RemoveFromContact(ctx context.Context, tagID, contactID uuid.UUID) error
}
