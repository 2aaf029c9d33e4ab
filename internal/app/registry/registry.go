package registry

import (
	"hash/fnv"
	"sync"

	"chatrelay/internal/core/contracts"
)

const shardCount = 32

// shard holds the registry entries whose keys hash into it. Each shard has
// its own lock, so traffic on one routing key never contends with another
// key outside its shard.
type shard struct {
	mu      sync.RWMutex
	entries map[string]map[string]contracts.Client // key -> conn id -> client
}

// Registry maps routing keys (app ids) to the set of live connections
// registered under them. It only does bookkeeping; connections are owned
// by their session handlers.
type Registry struct {
	shards [shardCount]*shard
}

func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[string]map[string]contracts.Client)}
	}
	return r
}

func (r *Registry) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return r.shards[h.Sum32()%shardCount]
}

// Register adds c under key. Re-registering the same connection is a no-op.
func (r *Registry) Register(key string, c contracts.Client) {
	s := r.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.entries[key]
	if set == nil {
		set = make(map[string]contracts.Client)
		s.entries[key] = set
	}
	set[c.ID()] = c
}

// Unregister removes c from key. When the last connection leaves, the
// key's entry is dropped entirely so dead keys do not accumulate.
func (r *Registry) Unregister(key string, c contracts.Client) {
	s := r.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.entries[key]
	if !ok {
		return
	}
	delete(set, c.ID())
	if len(set) == 0 {
		delete(s.entries, key)
	}
}

// Lookup returns a snapshot of the connections under key. Callers may
// iterate it freely; concurrent Register/Unregister never invalidate it.
func (r *Registry) Lookup(key string) []contracts.Client {
	s := r.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.entries[key]
	if len(set) == 0 {
		return nil
	}
	conns := make([]contracts.Client, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Len reports how many connections are registered under key.
func (r *Registry) Len(key string) int {
	s := r.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[key])
}
