package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitAPIPrefix = "ratelimit:apikey:"
	rateLimitIPPrefix  = "ratelimit:ip:"
	rateLimitAPITTL    = 120 * time.Second
	rateLimitIPTTL     = 10 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes a token atomically.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- bucket capacity
	local now = tonumber(ARGV[3])       -- seconds
	local ttl = tonumber(ARGV[4])       -- seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = math.max(0, now - last_update)
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckAPIKeyRateLimit consumes one request from the bucket of an api key.
// A ratePerMinute of zero means the tier is unlimited.
func (c *Cache) CheckAPIKeyRateLimit(ctx context.Context, keyID string, ratePerMinute, burst int) *RateLimitResult {
	if ratePerMinute <= 0 {
		return &RateLimitResult{
			Allowed:   true,
			Remaining: -1,
			ResetAt:   c.now().Add(time.Minute),
		}
	}
	if burst <= 0 {
		burst = ratePerMinute
	}

	res := c.checkRateLimit(ctx, rateLimitAPIPrefix+keyID, float64(ratePerMinute)/60.0, burst, int(rateLimitAPITTL.Seconds()))
	res.Limit = ratePerMinute
	return res
}

// CheckIPRateLimit consumes one request from the bucket of a client address.
// The address is hashed before it is used as a key.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) *RateLimitResult {
	res := c.checkRateLimit(ctx, rateLimitIPPrefix+hashIP(ip), float64(ratePerSecond), burst, int(rateLimitIPTTL.Seconds()))
	res.Limit = burst
	return res
}

// checkRateLimit fails open when Redis is unavailable.
func (c *Cache) checkRateLimit(ctx context.Context, key string, rate float64, burst, ttl int) *RateLimitResult {
	now := c.now()

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		rate, burst, now.Unix(), ttl,
	).Int64Slice()
	if err != nil || len(result) != 3 {
		slog.Warn("rate limit check failed, allowing request",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return &RateLimitResult{
			Allowed:   true,
			Remaining: int64(burst),
			ResetAt:   now.Add(time.Minute),
		}
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Remaining:  result[2],
		ResetAt:    now.Add(time.Duration(float64(time.Second) / rate)),
		RetryAfter: time.Duration(result[1]) * time.Second,
	}
}

// hashIP returns 16 hex chars of the SHA-256 of ip.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8])
}
