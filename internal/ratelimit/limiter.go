package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// rpmWindow is the sliding window for per-key request limits.
const rpmWindow = time.Minute

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter performs sliding-window request limiting backed by Redis sorted sets.
type Limiter struct {
	rdb *redis.Client
}

// NewLimiter creates a new rate limiter. If rdb is nil, all checks pass (fail open).
func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

// rpmScript atomically trims expired entries, admits the request if under
// the limit, and reports the oldest surviving entry so the caller can tell
// the client exactly when a slot frees up.
// KEYS[1] = sorted set key
// ARGV[1] = window start (unix micro)
// ARGV[2] = now (unix micro) — used as both score and member uniqueness
// ARGV[3] = limit
// ARGV[4] = TTL seconds for the key
// Returns: [current_count, 1=allowed/0=denied, oldest_score]
var rpmScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

local oldest = now
local head = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if head[2] then
    oldest = tonumber(head[2])
end

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, ttl)
    return {count + 1, 1, oldest}
end

redis.call('EXPIRE', key, ttl)
return {count, 0, oldest}
`)

// CheckRPM checks whether the API key may issue another request this
// minute. RetryAfter on a denial is the time until the oldest request in
// the window ages out and a slot opens.
func (l *Limiter) CheckRPM(ctx context.Context, keyID string, rpm int64) (LimitResult, error) {
	if l.rdb == nil {
		return LimitResult{Allowed: true, Remaining: rpm - 1, ResetAt: time.Now().Add(rpmWindow)}, nil
	}

	now := time.Now()
	windowStart := now.Add(-rpmWindow).UnixMicro()
	ttlSecs := int64(rpmWindow.Seconds()) + 1

	result, err := rpmScript.Run(ctx, l.rdb, []string{"cosmo:rl:rpm:" + keyID},
		windowStart, now.UnixMicro(), rpm, ttlSecs,
	).Int64Slice()
	if err != nil {
		// Fail open on Redis errors
		return LimitResult{Allowed: true, Remaining: rpm, ResetAt: now.Add(rpmWindow)}, nil
	}

	count, allowed, oldest := result[0], result[1] == 1, result[2]
	remaining := rpm - count
	if remaining < 0 {
		remaining = 0
	}

	var retryAfter time.Duration
	if !allowed {
		freeAt := time.UnixMicro(oldest).Add(rpmWindow)
		if retryAfter = freeAt.Sub(now); retryAfter < time.Second {
			retryAfter = time.Second
		}
	}

	return LimitResult{
		Allowed:    allowed,
		Remaining:  remaining,
		ResetAt:    now.Add(rpmWindow),
		RetryAfter: retryAfter,
	}, nil
}
