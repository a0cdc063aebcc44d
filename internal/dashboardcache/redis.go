package dashboardcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taxmate/internal/ratelimit"
	"github.com/smallbiznis/taxmate/internal/reporting"
	"go.uber.org/zap"
)

const (
	keyPrefix          = "dashboard:user:"
	defaultWarmLockTTL = 30 * time.Second
)

// setIfGen stores the snapshot only while the generation read before loading
// is still current.
const setIfGenScript = `
local gen = redis.call("GET", KEYS[2])
if not gen then
  gen = "0"
end
if gen ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2])
return 1
`

// Redis shares snapshots across instances. Each user has a snapshot key and a
// generation key bumped on every invalidation.
type Redis struct {
	client  *redis.Client
	locker  *ratelimit.Locker
	load    Loader
	lockTTL time.Duration
	script  *redis.Script
	log     *zap.Logger
}

func NewRedis(client *redis.Client, locker *ratelimit.Locker, load Loader, lockTTL time.Duration, log *zap.Logger) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis dashboard cache requires a redis client")
	}
	if lockTTL <= 0 {
		lockTTL = defaultWarmLockTTL
	}
	return &Redis{
		client:  client,
		locker:  locker,
		load:    load,
		lockTTL: lockTTL,
		script:  redis.NewScript(setIfGenScript),
		log:     log.Named("dashboard.cache"),
	}, nil
}

func snapshotKey(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

func genKey(userID int64) string {
	return snapshotKey(userID) + ":gen"
}

func lockKey(userID int64) string {
	return snapshotKey(userID) + ":warm"
}

func (r *Redis) Get(ctx context.Context, userID int64) (reporting.Dashboard, bool) {
	raw, err := r.client.Get(ctx, snapshotKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("dashboard cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return reporting.Dashboard{}, false
	}

	var snap reporting.Dashboard
	if err := json.Unmarshal(raw, &snap); err != nil {
		r.log.Warn("dashboard cache entry unreadable", zap.Int64("user_id", userID), zap.Error(err))
		return reporting.Dashboard{}, false
	}
	return snap, true
}

// Warm is a no-op when another instance already holds the warm lock.
func (r *Redis) Warm(ctx context.Context, userID int64) error {
	if r.load == nil {
		return ErrNoLoader
	}
	warm := func(ctx context.Context) error {
		gen, err := r.client.Get(ctx, genKey(userID)).Result()
		switch {
		case errors.Is(err, redis.Nil):
			gen = "0"
		case err != nil:
			return fmt.Errorf("read generation: %w", err)
		}

		snap, err := r.load(ctx, userID)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return r.script.Run(ctx, r.client, []string{snapshotKey(userID), genKey(userID)}, gen, raw).Err()
	}

	if r.locker == nil {
		return warm(ctx)
	}
	err := r.locker.WithLock(ctx, lockKey(userID), r.lockTTL, warm)
	if errors.Is(err, ratelimit.ErrLockHeld) {
		return nil
	}
	return err
}

func (r *Redis) Invalidate(ctx context.Context, userID int64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(userID))
		pipe.Del(ctx, snapshotKey(userID))
		return nil
	})
	return err
}
