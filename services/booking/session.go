package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"villagestay/services/beckn"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	sessionPrefix = "beckn:txn:"
	verifyPrefix  = "verify:"
	lockPrefix    = "lock:booking:"
)

// RedisSessionStore keeps negotiation transactions in Redis with a TTL.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (r *RedisSessionStore) Save(ctx context.Context, key string, txn *beckn.Transaction) error {
	data, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("failed to marshal booking session: %w", err)
	}
	if err := r.client.Set(ctx, sessionPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store booking session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Load(ctx context.Context, key string) (*beckn.Transaction, error) {
	data, err := r.client.Get(ctx, sessionPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read booking session: %w", err)
	}
	var txn beckn.Transaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, fmt.Errorf("failed to parse booking session %s: %w", key, err)
	}
	return &txn, nil
}

// Take reads and removes the session in one step, so only one caller can
// continue a given negotiation.
func (r *RedisSessionStore) Take(ctx context.Context, key string) (*beckn.Transaction, error) {
	data, err := r.client.GetDel(ctx, sessionPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take booking session: %w", err)
	}
	var txn beckn.Transaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, fmt.Errorf("failed to parse booking session %s: %w", key, err)
	}
	return &txn, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = sessionPrefix + k
	}
	return r.client.Del(ctx, full...).Err()
}

// RedisVerifyCache caches verification reports briefly. Cache errors are
// treated as misses.
type RedisVerifyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisVerifyCache(client *redis.Client, ttl time.Duration) *RedisVerifyCache {
	return &RedisVerifyCache{client: client, ttl: ttl}
}

func (c *RedisVerifyCache) Get(ctx context.Context, bookingID string) (*VerifyReport, bool) {
	data, err := c.client.Get(ctx, verifyPrefix+bookingID).Bytes()
	if err != nil {
		return nil, false
	}
	var report VerifyReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, false
	}
	return &report, true
}

func (c *RedisVerifyCache) Set(ctx context.Context, bookingID string, report *VerifyReport) {
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	c.client.Set(ctx, verifyPrefix+bookingID, data, c.ttl)
}

func (c *RedisVerifyCache) Delete(ctx context.Context, bookingID string) {
	c.client.Del(ctx, verifyPrefix+bookingID)
}

// releaseScript deletes the lock only if it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker hands out expiring per-booking locks backed by SET NX.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		releaseScript.Run(context.Background(), l.client, []string{lockPrefix + key}, token)
	}, nil
}
