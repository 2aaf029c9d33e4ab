package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatrelay/internal/core/contracts"
)

var tracer = otel.Tracer("dispatcher")

// Dispatcher pushes events to every live connection of a routing key.
// Delivery is best effort: a dead connection is logged, unregistered and
// skipped, and never aborts delivery to the rest or fails the caller.
type Dispatcher struct {
	log      *slog.Logger
	registry contracts.Registry
}

func New(log *slog.Logger, registry contracts.Registry) *Dispatcher {
	return &Dispatcher{log: log, registry: registry}
}

func (d *Dispatcher) Broadcast(ctx context.Context, key string, event any) {
	ctx, span := tracer.Start(ctx, "Dispatcher.Broadcast", trace.WithAttributes(
		attribute.String("routing_key", key),
	))
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		d.log.ErrorContext(ctx, "dispatcher - broadcast - marshal failed", "routing_key", key, "err", err)
		return
	}
	conns := d.registry.Lookup(key)
	span.SetAttributes(attribute.Int("connections", len(conns)))
	if len(conns) == 0 {
		return
	}
	delivered := 0
	for _, c := range conns {
		if err := c.Send(ctx, data); err != nil {
			// Stale or stalled connection. Drop it from the registry so the
			// next broadcast does not retry it; its session handler closes
			// the underlying socket.
			d.log.WarnContext(ctx, "dispatcher - broadcast - send failed, dropping connection",
				"routing_key", key, "conn_id", c.ID(), "err", err)
			d.registry.Unregister(key, c)
			c.Close()
			continue
		}
		delivered++
	}
	d.log.DebugContext(ctx, "dispatcher - broadcast - delivered",
		"routing_key", key, "delivered", delivered, "total", len(conns))
}
