package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hms/hospital-auth/internal/core/ports"
)

// LockoutStore keeps login failure counters in Redis so every API replica
// sees the same count for a login interaction.
// Key format: lockout:<interaction key>, a hash of failures and last_failure.
type LockoutStore struct {
	client *redis.Client
}

func NewLockoutStore(client *redis.Client) *LockoutStore {
	return &LockoutStore{client: client}
}

func (s *LockoutStore) Get(ctx context.Context, key string) (ports.LockoutCounter, error) {
	vals, err := s.client.HGetAll(ctx, lockoutKey(key)).Result()
	if err != nil {
		return ports.LockoutCounter{}, fmt.Errorf("lockout get: %w", err)
	}
	return parseCounter(vals)
}

// RecordFailure increments the counter and stamps the failure time in one
// transaction. The key expires ttl after the latest failure.
func (s *LockoutStore) RecordFailure(ctx context.Context, key string, at time.Time, ttl time.Duration) (ports.LockoutCounter, error) {
	k := lockoutKey(key)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, k, "failures", 1)
		p.HSet(ctx, k, "last_failure", at.UnixNano())
		p.Expire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return ports.LockoutCounter{}, fmt.Errorf("lockout record: %w", err)
	}
	return ports.LockoutCounter{Failures: int(incr.Val()), LastFailure: at}, nil
}

func (s *LockoutStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lockoutKey(key)).Err(); err != nil {
		return fmt.Errorf("lockout reset: %w", err)
	}
	return nil
}

func lockoutKey(key string) string {
	return "lockout:" + key
}

func parseCounter(vals map[string]string) (ports.LockoutCounter, error) {
	var c ports.LockoutCounter
	if len(vals) == 0 {
		return c, nil
	}
	if v, ok := vals["failures"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("lockout failures %q: %w", v, err)
		}
		c.Failures = n
	}
	if v, ok := vals["last_failure"]; ok {
		ns, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c, fmt.Errorf("lockout last_failure %q: %w", v, err)
		}
		c.LastFailure = time.Unix(0, ns).UTC()
	}
	return c, nil
}
