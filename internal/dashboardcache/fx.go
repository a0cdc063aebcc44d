package dashboardcache

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taxmate/internal/config"
	"github.com/smallbiznis/taxmate/internal/ratelimit"
	"github.com/smallbiznis/taxmate/internal/reporting"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("dashboard.cache",
	fx.Provide(NewStoreLoader),
	fx.Provide(New),
)

// NewStoreLoader builds dashboards from the user's full record set.
func NewStoreLoader(store domain.Store) Loader {
	return func(ctx context.Context, userID int64) (reporting.Dashboard, error) {
		records, err := store.Query(ctx, userID, domain.DateRange{})
		if err != nil {
			return reporting.Dashboard{}, err
		}
		return reporting.BuildDashboard(records), nil
	}
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Load   Loader
	Redis  *redis.Client     `optional:"true"`
	Locker *ratelimit.Locker `optional:"true"`
}

func New(p Params) (Cache, error) {
	switch p.Config.Cache.Backend {
	case "", config.CacheBackendMemory:
		return NewMemory(p.Load), nil
	case config.CacheBackendRedis:
		ttl := time.Duration(p.Config.Cache.WarmLockTTLSecs) * time.Second
		c, err := NewRedis(p.Redis, p.Locker, p.Load, ttl, p.Log)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown dashboard cache backend %q", p.Config.Cache.Backend)
	}
}
