package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
else
  local delta = math.max(0, now - ts)
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

-- floats are truncated in replies, so send milli-tokens
return {allowed, math.floor(tokens * 1000)}
`

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Decision, error) {
	if t == nil || t.client == nil {
		return Decision{}, errors.New("rate limiter not configured")
	}
	if key == "" {
		return Decision{}, errors.New("rate limiter key is empty")
	}
	if rate <= 0 || burst <= 0 {
		return Decision{}, errors.New("rate limiter rate and burst must be positive")
	}

	res, err := t.script.Run(ctx, t.client, []string{key},
		rate,
		burst,
		bucketTTL(rate, burst).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) < 2 {
		return Decision{}, errors.New("invalid rate limit script response")
	}

	return decide(res[0] == 1, float64(res[1])/1000, rate, burst), nil
}

func decide(allowed bool, tokens, rate float64, burst int) Decision {
	d := Decision{
		Allowed:   allowed,
		Limit:     burst,
		Remaining: int(tokens),
	}
	if !allowed {
		if needed := 1 - tokens; needed > 0 {
			d.RetryAfter = time.Duration(needed / rate * float64(time.Second))
		}
	}
	return d
}

// bucketTTL keeps an idle bucket around for twice its refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
