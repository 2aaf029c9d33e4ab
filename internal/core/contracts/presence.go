package contracts

import (
	"context"
	"time"
)

// PresenceStore tracks which contacts were recently active, per app.
// Entries expire on their own; MarkOnline refreshes the window.
type PresenceStore interface {
	MarkOnline(ctx context.Context, appID, waID string, ttl time.Duration) error
	OnlineContacts(ctx context.Context, appID string) ([]string, error)
}
