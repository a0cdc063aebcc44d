// Package service serves the aggregation views over the record store and owns
// the caches in front of them.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/taxmate/internal/cache"
	"github.com/smallbiznis/taxmate/internal/clock"
	"github.com/smallbiznis/taxmate/internal/config"
	"github.com/smallbiznis/taxmate/internal/dashboardcache"
	"github.com/smallbiznis/taxmate/internal/dispatcher"
	"github.com/smallbiznis/taxmate/internal/observability/metrics"
	"github.com/smallbiznis/taxmate/internal/reporting"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/internal/taxrule"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	FormatCSV = "csv"
	FormatPDF = "pdf"

	defaultInsightsTTL = 300 * time.Second
)

var ErrInvalidFormat = errors.New("invalid_export_format")

// PeriodQuery is the shared period filter of report endpoints.
type PeriodQuery struct {
	Period string
	Start  *time.Time
	End    *time.Time
}

// Export is a rendered report ready to stream.
type Export struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Store      domain.Store
	Cache      dashboardcache.Cache
	Dispatcher dispatcher.Submitter
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	clock       clock.Clock
	store       domain.Store
	dashboards  dashboardcache.Cache
	dispatcher  dispatcher.Submitter
	metrics     *metrics.Metrics
	insights    cache.Cache[int64, reporting.Insights]
	insightsTTL time.Duration

	// insightsGen is bumped by Invalidate; an insights result is only cached
	// when no invalidation happened while it was computed.
	genMu       sync.Mutex
	insightsGen map[int64]uint64
}

func New(p Params) *Service {
	ttl := time.Duration(p.Config.Cache.InsightsTTLSecs) * time.Second
	if ttl <= 0 {
		ttl = defaultInsightsTTL
	}
	return &Service{
		log:         p.Log.Named("reporting.service"),
		clock:       p.Clock,
		store:       p.Store,
		dashboards:  p.Cache,
		dispatcher:  p.Dispatcher,
		metrics:     p.Metrics,
		insights:    cache.NewTTLCacheWithClock[int64, reporting.Insights](p.Clock.Now),
		insightsTTL: ttl,
		insightsGen: make(map[int64]uint64),
	}
}

// Dashboard serves the cached snapshot for unfiltered requests. A miss is
// computed for this request and a warm is queued; filtered requests always
// compute fresh and never touch the cache.
func (s *Service) Dashboard(ctx context.Context, userID int64, rng domain.DateRange) (reporting.Dashboard, error) {
	if userID <= 0 {
		return reporting.Dashboard{}, domain.ErrInvalidUser
	}

	if !rng.IsZero() {
		records, err := s.store.Query(ctx, userID, rng)
		if err != nil {
			return reporting.Dashboard{}, err
		}
		return reporting.BuildDashboard(records), nil
	}

	if snap, ok := s.dashboards.Get(ctx, userID); ok {
		s.metrics.RecordCacheLookup(ctx, "dashboard", true)
		return snap, nil
	}
	s.metrics.RecordCacheLookup(ctx, "dashboard", false)

	records, err := s.store.Query(ctx, userID, domain.DateRange{})
	if err != nil {
		return reporting.Dashboard{}, err
	}
	s.scheduleWarm(userID)
	return reporting.BuildDashboard(records), nil
}

func (s *Service) scheduleWarm(userID int64) {
	err := s.dispatcher.Submit(dispatcher.Task{
		Name: "dashboard.warm",
		Run: func(ctx context.Context) error {
			return s.dashboards.Warm(ctx, userID)
		},
	})
	if err != nil {
		s.log.Debug("dashboard warm not scheduled", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// Insights is cached per user for the insights TTL.
func (s *Service) Insights(ctx context.Context, userID int64) (reporting.Insights, error) {
	if userID <= 0 {
		return reporting.Insights{}, domain.ErrInvalidUser
	}
	if in, ok := s.insights.Get(userID); ok {
		s.metrics.RecordCacheLookup(ctx, "insights", true)
		return in, nil
	}
	s.metrics.RecordCacheLookup(ctx, "insights", false)

	s.genMu.Lock()
	gen := s.insightsGen[userID]
	s.genMu.Unlock()

	records, err := s.store.Query(ctx, userID, domain.DateRange{})
	if err != nil {
		return reporting.Insights{}, err
	}
	in := reporting.BuildInsights(records)

	s.genMu.Lock()
	if s.insightsGen[userID] == gen {
		s.insights.Set(userID, in, s.insightsTTL)
	}
	s.genMu.Unlock()
	return in, nil
}

func (s *Service) Report(ctx context.Context, userID int64, q PeriodQuery) (reporting.Report, error) {
	records, rng, err := s.periodRecords(ctx, userID, q)
	if err != nil {
		return reporting.Report{}, err
	}
	return reporting.BuildReport(records, rng), nil
}

func (s *Service) Export(ctx context.Context, userID int64, q PeriodQuery, format string) (Export, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatPDF {
		return Export{}, ErrInvalidFormat
	}

	records, rng, err := s.periodRecords(ctx, userID, q)
	if err != nil {
		return Export{}, err
	}

	if format == FormatPDF {
		body, err := reporting.RenderPDF(rng, records)
		if err != nil {
			return Export{}, fmt.Errorf("render pdf report: %w", err)
		}
		return Export{
			Filename:    reporting.ExportFilename(rng, FormatPDF),
			ContentType: "application/pdf",
			Body:        body,
		}, nil
	}

	var buf bytes.Buffer
	if err := reporting.WriteCSV(&buf, records); err != nil {
		return Export{}, fmt.Errorf("write csv report: %w", err)
	}
	return Export{
		Filename:    reporting.ExportFilename(rng, FormatCSV),
		ContentType: "text/csv",
		Body:        &buf,
	}, nil
}

func (s *Service) TaxSummary(ctx context.Context, userID int64, q PeriodQuery) (taxrule.Summary, error) {
	records, _, err := s.periodRecords(ctx, userID, q)
	if err != nil {
		return taxrule.Summary{}, err
	}
	return taxrule.BuildSummary(records), nil
}

// Invalidate drops every cached view of the user's records.
func (s *Service) Invalidate(ctx context.Context, userID int64) error {
	s.genMu.Lock()
	s.insightsGen[userID]++
	s.insights.Delete(userID)
	s.genMu.Unlock()

	if err := s.dashboards.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("invalidate dashboard for user %d: %w", userID, err)
	}
	return nil
}

func (s *Service) periodRecords(ctx context.Context, userID int64, q PeriodQuery) ([]domain.TaxRecord, domain.DateRange, error) {
	if userID <= 0 {
		return nil, domain.DateRange{}, domain.ErrInvalidUser
	}
	rng, err := reporting.ResolvePeriod(q.Period, clock.Today(s.clock), q.Start, q.End)
	if err != nil {
		return nil, domain.DateRange{}, err
	}
	records, err := s.store.Query(ctx, userID, rng)
	if err != nil {
		return nil, domain.DateRange{}, err
	}
	return records, rng, nil
}
