package contracts

import "context"

// Client is the minimal surface the registry and dispatcher need from one
// live connection. The session handler owns the connection; the registry
// only references it.
type Client interface {
	// ID is unique within the process for the connection's lifetime.
	ID() string
	// Key is the routing key the client registered under (the app id).
	Key() string
	// Send queues data for delivery in call order. It fails fast when the
	// client is closed or its outbound buffer is full.
	Send(ctx context.Context, data []byte) error
	Close()
}

// Registry tracks which routing keys currently have live connections.
// Implementations must be safe for concurrent use, must not let operations
// on distinct keys block each other, and must drop a key's entry entirely
// once its last connection is unregistered.
type Registry interface {
	// Register adds c under key. Idempotent; never fails.
	Register(key string, c Client)
	// Unregister removes c from key. No-op if absent.
	Unregister(key string, c Client)
	// Lookup returns a point-in-time snapshot of the connections under key.
	Lookup(key string) []Client
	// Len reports the number of live connections under key.
	Len(key string) int
}

// Broadcaster fans a payload out to every live connection of a routing key.
// Delivery is best effort and never fails the caller.
type Broadcaster interface {
	Broadcast(ctx context.Context, key string, event any)
}
