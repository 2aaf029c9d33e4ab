package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPresenceStore keeps one ZSet per app scoring contacts by their last
// activity. Stale members are trimmed on read, so a contact falls offline
// by simply not checking in.
type RedisPresenceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPresenceStore(rdb *redis.Client, ttl time.Duration) *RedisPresenceStore {
	return &RedisPresenceStore{rdb: rdb, ttl: ttl}
}

func presenceKey(appID string) string {
	return "presence:" + appID
}

func (p *RedisPresenceStore) MarkOnline(ctx context.Context, appID, waID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = p.ttl
	}
	key := presenceKey(appID)
	err := p.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: waID,
	}).Err()
	if err != nil {
		return err
	}
	// Expire the whole set so an idle app does not leak memory.
	return p.rdb.Expire(ctx, key, ttl*2).Err()
}

func (p *RedisPresenceStore) OnlineContacts(ctx context.Context, appID string) ([]string, error) {
	key := presenceKey(appID)
	threshold := time.Now().Add(-p.ttl).Unix()
	// Trim members that last checked in before the window.
	p.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(threshold, 10))
	return p.rdb.ZRange(ctx, key, 0, -1).Result()
}
