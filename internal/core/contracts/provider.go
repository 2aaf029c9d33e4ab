package contracts

import (
	"context"

	"chatrelay/internal/core/domain"
)

// Provider is the outbound messaging gateway. Send forwards one persisted
// outbound message; an error means the provider did not accept it, which is
// recorded on the message and never rolls back persistence.
type Provider interface {
	Send(ctx context.Context, msg *domain.Message) error
}
