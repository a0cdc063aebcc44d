package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/taxmate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideRetryAfter(t *testing.T) {
	d := decide(false, 0.5, 2, 10)
	assert.False(t, d.Allowed)
	assert.Equal(t, 10, d.Limit)
	assert.Equal(t, 250*time.Millisecond, d.RetryAfter)

	ok := decide(true, 3.7, 2, 10)
	assert.True(t, ok.Allowed)
	assert.Equal(t, 3, ok.Remaining)
	assert.Zero(t, ok.RetryAfter)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(1, 5))
	assert.Equal(t, time.Second, bucketTTL(1000, 1))
}

func TestNewUploadLimiterDisabled(t *testing.T) {
	l, err := NewUploadLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, l)

	_, err = NewUploadLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, UploadRate: 1, UploadBurst: 1}}, nil)
	assert.Error(t, err)
}

func TestUploadLimiterKey(t *testing.T) {
	l := &UploadLimiter{prefix: "taxmate:ratelimit"}
	assert.Equal(t, "taxmate:ratelimit:api/uploads/csv:user:7", l.key(7, "/api/uploads/csv"))
}

func TestNilLockerAndBucket(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)

	var locker *Locker
	_, _, err = locker.TryLock(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.NoError(t, locker.Release(context.Background(), "k", "t"))
	assert.Nil(t, NewLocker(nil))
}
