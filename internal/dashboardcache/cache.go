// Package dashboardcache memoizes each user's unfiltered dashboard until the
// next write to that user's records invalidates it.
package dashboardcache

import (
	"context"
	"errors"

	"github.com/smallbiznis/taxmate/internal/reporting"
)

var ErrNoLoader = errors.New("dashboard_cache_no_loader")

// Loader computes a fresh dashboard for one user.
type Loader func(ctx context.Context, userID int64) (reporting.Dashboard, error)

// Cache is safe for concurrent use. After Invalidate returns, Get never yields
// a snapshot computed before the invalidation.
type Cache interface {
	Get(ctx context.Context, userID int64) (reporting.Dashboard, bool)
	Warm(ctx context.Context, userID int64) error
	Invalidate(ctx context.Context, userID int64) error
}
