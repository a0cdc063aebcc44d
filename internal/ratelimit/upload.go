package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taxmate/internal/config"
)

// Limiter throttles expensive endpoints per user.
type Limiter interface {
	Allow(ctx context.Context, userID int64, endpoint string) (Decision, error)
}

// UploadLimiter is a redis token bucket keyed by user and endpoint.
type UploadLimiter struct {
	bucket *TokenBucket
	prefix string
	rate   float64
	burst  int
}

// NewUploadLimiter returns nil when limiting is disabled.
func NewUploadLimiter(cfg config.Config, client *redis.Client) (Limiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limit requires REDIS_ADDR")
	}
	if limitCfg.UploadRate <= 0 || limitCfg.UploadBurst <= 0 {
		return nil, errors.New("upload rate limit must be positive")
	}

	prefix := strings.TrimSpace(limitCfg.WindowPrefix)
	if prefix == "" {
		prefix = "taxmate:ratelimit"
	}
	return &UploadLimiter{
		bucket: NewTokenBucket(client),
		prefix: prefix,
		rate:   limitCfg.UploadRate,
		burst:  limitCfg.UploadBurst,
	}, nil
}

func (l *UploadLimiter) Allow(ctx context.Context, userID int64, endpoint string) (Decision, error) {
	return l.bucket.Allow(ctx, l.key(userID, endpoint), l.rate, l.burst)
}

func (l *UploadLimiter) key(userID int64, endpoint string) string {
	return fmt.Sprintf("%s:%s:user:%d", l.prefix, strings.Trim(endpoint, "/"), userID)
}
