package dashboardcache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/config"
	"github.com/smallbiznis/taxmate/internal/ratelimit"
	"github.com/smallbiznis/taxmate/internal/reporting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// versionLoader returns a dashboard whose income is the current version.
type versionLoader struct {
	version atomic.Int64
	calls   atomic.Int64
}

func (v *versionLoader) load(_ context.Context, _ int64) (reporting.Dashboard, error) {
	v.calls.Add(1)
	return reporting.Dashboard{
		Summary: reporting.Summary{TotalIncome: decimal.NewFromInt(v.version.Load())},
	}, nil
}

func TestMemoryGetWarmInvalidate(t *testing.T) {
	ctx := context.Background()
	l := &versionLoader{}
	l.version.Store(1)
	c := NewMemory(l.load)

	_, ok := c.Get(ctx, 7)
	assert.False(t, ok)

	require.NoError(t, c.Warm(ctx, 7))
	snap, ok := c.Get(ctx, 7)
	require.True(t, ok)
	assert.Equal(t, int64(1), snap.Summary.TotalIncome.IntPart())

	// other users are independent
	_, ok = c.Get(ctx, 7+stripeCount)
	assert.False(t, ok)

	require.NoError(t, c.Invalidate(ctx, 7))
	_, ok = c.Get(ctx, 7)
	assert.False(t, ok)

	l.version.Store(2)
	require.NoError(t, c.Warm(ctx, 7))
	snap, ok = c.Get(ctx, 7)
	require.True(t, ok)
	assert.Equal(t, int64(2), snap.Summary.TotalIncome.IntPart())
}

func TestMemoryWarmStartedBeforeInvalidateIsDropped(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	c := NewMemory(func(ctx context.Context, userID int64) (reporting.Dashboard, error) {
		close(started)
		<-release
		return reporting.Dashboard{Summary: reporting.Summary{TotalIncome: decimal.NewFromInt(1)}}, nil
	})

	done := make(chan error, 1)
	go func() { done <- c.Warm(ctx, 3) }()

	<-started
	require.NoError(t, c.Invalidate(ctx, 3))
	close(release)
	require.NoError(t, <-done)

	_, ok := c.Get(ctx, 3)
	assert.False(t, ok, "stale warm must not repopulate after invalidate")
}

func TestMemoryWarmLoaderError(t *testing.T) {
	boom := errors.New("boom")
	c := NewMemory(func(context.Context, int64) (reporting.Dashboard, error) {
		return reporting.Dashboard{}, boom
	})
	assert.ErrorIs(t, c.Warm(context.Background(), 1), boom)
	_, ok := c.Get(context.Background(), 1)
	assert.False(t, ok)

	assert.ErrorIs(t, NewMemory(nil).Warm(context.Background(), 1), ErrNoLoader)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	l := &versionLoader{}
	c := NewMemory(l.load)

	var wg sync.WaitGroup
	for u := int64(1); u <= 16; u++ {
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(userID int64, i int) {
				defer wg.Done()
				switch i % 3 {
				case 0:
					_ = c.Warm(ctx, userID)
				case 1:
					_ = c.Invalidate(ctx, userID)
				default:
					c.Get(ctx, userID)
				}
			}(u, i)
		}
	}
	wg.Wait()

	for u := int64(1); u <= 16; u++ {
		require.NoError(t, c.Invalidate(ctx, u))
		_, ok := c.Get(ctx, u)
		assert.False(t, ok)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	l := &versionLoader{}

	c, err := New(Params{Config: config.Config{}, Log: zap.NewNop(), Load: l.load})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	_, err = New(Params{Config: config.Config{Cache: config.CacheConfig{Backend: config.CacheBackendRedis}}, Log: zap.NewNop(), Load: l.load})
	assert.Error(t, err, "redis backend without a client")

	_, err = New(Params{Config: config.Config{Cache: config.CacheConfig{Backend: "memcached"}}, Log: zap.NewNop(), Load: l.load})
	assert.Error(t, err)
}

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "dashboard:user:42", snapshotKey(42))
	assert.Equal(t, "dashboard:user:42:gen", genKey(42))
	assert.Equal(t, "dashboard:user:42:warm", lockKey(42))
}

// TestRedisRoundTrip needs a live server, e.g. TAXMATE_TEST_REDIS_ADDR=localhost:6379.
func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("TAXMATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TAXMATE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	userID := time.Now().UnixNano()
	t.Cleanup(func() { client.Del(ctx, snapshotKey(userID), genKey(userID)) })

	l := &versionLoader{}
	l.version.Store(5)
	c, err := NewRedis(client, ratelimit.NewLocker(client), l.load, time.Second, zap.NewNop())
	require.NoError(t, err)

	_, ok := c.Get(ctx, userID)
	assert.False(t, ok)

	require.NoError(t, c.Warm(ctx, userID))
	snap, ok := c.Get(ctx, userID)
	require.True(t, ok)
	assert.Equal(t, int64(5), snap.Summary.TotalIncome.IntPart())

	require.NoError(t, c.Invalidate(ctx, userID))
	_, ok = c.Get(ctx, userID)
	assert.False(t, ok)
}
