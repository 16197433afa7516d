package redisinfra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldCode      = "code"
	fieldExpiresAt = "expires_at_ms"
)

// consumeLua deletes KEYS[1] only if its code equals ARGV[1] and its logical
// expiry (ms) is after ARGV[2]. Returns 1 when deleted, 0 otherwise.
var consumeLua = redis.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
if not code or code ~= ARGV[1] then
  return 0
end
local exp = tonumber(redis.call('HGET', KEYS[1], 'expires_at_ms'))
if not exp or exp <= tonumber(ARGV[2]) then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// CodeStore keeps each code in a hash {code, expires_at_ms}. The key itself expires
// after ttl+retention, so an expired code can still be told apart from a missing one
// for the retention window.
type CodeStore struct {
	client    redis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

func NewCodeStore(client redis.UniversalClient, retention time.Duration) *CodeStore {
	return &CodeStore{client: client, retention: retention, now: time.Now}
}

// WithClock replaces time.Now for the logical expiry check.
func (s *CodeStore) WithClock(now func() time.Time) *CodeStore {
	s.now = now
	return s
}

func (s *CodeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	expiresAt := s.now().Add(ttl).UnixMilli()
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, fieldCode, value, fieldExpiresAt, expiresAt)
		p.PExpire(ctx, key, ttl+s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *CodeStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	raw, err := s.client.HGet(ctx, key, fieldExpiresAt).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis ttl %s: %w", key, err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis ttl %s: corrupt expiry %q: %w", key, raw, err)
	}
	return time.UnixMilli(ms).Sub(s.now()), true, nil
}

func (s *CodeStore) Get(ctx context.Context, key string) (string, bool, error) {
	vals, err := s.client.HMGet(ctx, key, fieldCode, fieldExpiresAt).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	code, ok := vals[0].(string)
	if !ok {
		return "", false, nil
	}
	rawExp, ok := vals[1].(string)
	if !ok {
		return "", false, nil
	}
	ms, err := strconv.ParseInt(rawExp, 10, 64)
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: corrupt expiry %q: %w", key, rawExp, err)
	}
	if !s.now().Before(time.UnixMilli(ms)) {
		return "", false, nil
	}
	return code, true, nil
}

// Delete relies on DEL's reply count, which Redis computes atomically.
func (s *CodeStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis delete %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *CodeStore) Consume(ctx context.Context, key, expected string) (bool, error) {
	n, err := consumeLua.Run(ctx, s.client, []string{key}, expected, s.now().UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("redis consume %s: %w", key, err)
	}
	return n == 1, nil
}
