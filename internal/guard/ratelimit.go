package guard

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/redis/go-redis/v9"
)

const rateLimiterGuard = "rate_limiter"

// Limiter decides whether one more request for key fits in the window.
type Limiter interface {
	Check(ctx context.Context, key string) domain.GuardResult
}

// RateLimiter implements an in-process sliding window rate limiter.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter with the given limit per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Check returns a GuardResult indicating whether the key is within rate limits.
func (rl *RateLimiter) Check(_ context.Context, key string) domain.GuardResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	entries := rl.windows[key]
	valid := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.windows[key] = valid
		return denied(rl.limit, rl.window)
	}

	rl.windows[key] = append(valid, now)
	return domain.GuardResult{Allowed: true}
}

// Sweep drops keys whose entries have all expired.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, entries := range rl.windows {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(rl.windows, key)
		}
	}
}

// RedisRateLimiter is a sliding window shared by every API instance, kept as
// one sorted set per key scored by request time.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a Redis-backed limiter.
func NewRedisRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Check fails open when Redis is unreachable.
func (rl *RedisRateLimiter) Check(ctx context.Context, key string) domain.GuardResult {
	k := rl.prefix + key
	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-rl.window).UnixMicro(), 10)

	pipe := rl.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
	card := pipe.ZCard(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.GuardResult{Allowed: true}
	}
	if card.Val() >= int64(rl.limit) {
		return denied(rl.limit, rl.window)
	}

	pipe = rl.client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: uuid.NewString()})
	pipe.Expire(ctx, k, rl.window)
	_, _ = pipe.Exec(ctx)
	return domain.GuardResult{Allowed: true}
}

func denied(limit int, window time.Duration) domain.GuardResult {
	return domain.GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("rate limit exceeded: %d/%s", limit, window),
		Guard:   rateLimiterGuard,
	}
}
