package gatekeeper

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"

	"banking-service/internal/util"
)

const redisBucketPrefix = "rate_limit:"

// Lua keeps the refill-and-consume step atomic on the Redis side. Tokens are
// stored fractionally; rate is tokens per minute.
const allowScript = `
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local rate_per_min = tonumber(ARGV[2])
    local burst = tonumber(ARGV[3])
    local ttl_seconds = tonumber(ARGV[4])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1]) or burst
    local last_refill = tonumber(state[2]) or now_ms

    local elapsed = (now_ms - last_refill) / 1000
    if elapsed > 0 then
        tokens = math.min(burst, tokens + elapsed * rate_per_min / 60)
    end

    local allowed = 0
    if tokens >= 1 then
        tokens = tokens - 1
        allowed = 1
    end

    redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', now_ms)
    redis.call('EXPIRE', key, ttl_seconds)
    return {allowed, math.floor(tokens)}
`

const availableScript = `
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local rate_per_min = tonumber(ARGV[2])
    local burst = tonumber(ARGV[3])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1]) or burst
    local last_refill = tonumber(state[2]) or now_ms

    local elapsed = (now_ms - last_refill) / 1000
    if elapsed > 0 then
        tokens = math.min(burst, tokens + elapsed * rate_per_min / 60)
    end
    return math.floor(tokens)
`

// RedisLimiter is a RateLimiter sharing bucket state across instances
// through Redis. Bucket state expires on its own after the idle duration,
// so no janitor is needed. On Redis errors the limiter fails open: a broken
// cache must not take the API down with it.
type RedisLimiter struct {
	client  *redis.Client
	idleTTL time.Duration
	allow   *redis.Script
	tokens  *redis.Script
}

func NewRedisLimiter(client *redis.Client, idleTTL time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:  client,
		idleTTL: idleTTL,
		allow:   redis.NewScript(allowScript),
		tokens:  redis.NewScript(availableScript),
	}
}

func (l *RedisLimiter) Allow(clientKey string, policy Policy) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := redisBucketPrefix + cacheKey(clientKey, policy)
	result, err := l.allow.Run(ctx, l.client, []string{key},
		time.Now().UnixMilli(), policy.RatePerMinute, policy.Burst, int(l.idleTTL.Seconds())).Result()
	if err != nil {
		util.Error("Rate limit check failed, failing open",
			util.String("client_key", clientKey),
			util.String("policy", policy.Name),
			util.ErrorField(err))
		return true
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		util.Error("Unexpected rate limit script result", util.Any("result", result))
		return true
	}
	return values[0].(int64) == 1
}

func (l *RedisLimiter) AvailableTokens(clientKey string, policy Policy) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := redisBucketPrefix + cacheKey(clientKey, policy)
	n, err := l.tokens.Run(ctx, l.client, []string{key},
		time.Now().UnixMilli(), policy.RatePerMinute, policy.Burst).Int()
	if err != nil {
		util.Debug("Available-token query failed",
			util.String("client_key", clientKey),
			util.ErrorField(err))
		return policy.Burst
	}
	return n
}
