package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/taxmate/internal/config"
	"github.com/smallbiznis/taxmate/internal/identity"
	"github.com/smallbiznis/taxmate/internal/ingest"
	"github.com/smallbiznis/taxmate/internal/invoiceparse"
	"github.com/smallbiznis/taxmate/internal/observability"
	obslogger "github.com/smallbiznis/taxmate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/taxmate/internal/observability/metrics"
	obstracing "github.com/smallbiznis/taxmate/internal/observability/tracing"
	"github.com/smallbiznis/taxmate/internal/ratelimit"
	"github.com/smallbiznis/taxmate/internal/reporting"
	reportingservice "github.com/smallbiznis/taxmate/internal/reporting/service"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/internal/taxrule"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(
		func(s *ingest.Service) IngestService { return s },
		func(s *reportingservice.Service) ReportService { return s },
	),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// IngestService is the write side used by record and upload handlers.
type IngestService interface {
	Create(ctx context.Context, userID int64, in ingest.RecordInput) (*domain.TaxRecord, error)
	Preview(ctx context.Context, userID int64, r io.Reader) (ingest.Preview, error)
	Submit(ctx context.Context, userID int64, inputs []ingest.RecordInput) (ingest.ImportJob, error)
	IngestInvoices(ctx context.Context, userID int64, files []invoiceparse.File) (ingest.InvoiceUpload, error)
}

// ReportService is the read side behind dashboard and report handlers.
type ReportService interface {
	Dashboard(ctx context.Context, userID int64, rng domain.DateRange) (reporting.Dashboard, error)
	Insights(ctx context.Context, userID int64) (reporting.Insights, error)
	Report(ctx context.Context, userID int64, q reportingservice.PeriodQuery) (reporting.Report, error)
	Export(ctx context.Context, userID int64, q reportingservice.PeriodQuery, format string) (reportingservice.Export, error)
	TaxSummary(ctx context.Context, userID int64, q reportingservice.PeriodQuery) (taxrule.Summary, error)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	records       domain.Service
	ingestSvc     IngestService
	reportSvc     ReportService
	uploadLimiter ratelimit.Limiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Records       domain.Service
	IngestSvc     IngestService
	ReportSvc     ReportService
	UploadLimiter ratelimit.Limiter   `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		records:       p.Records,
		ingestSvc:     p.IngestSvc,
		reportSvc:     p.ReportSvc,
		uploadLimiter: p.UploadLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", identity.Required())

	// -------- Records --------
	api.POST("/records", s.CreateRecord)
	api.GET("/records", s.ListRecords)

	// -------- Uploads --------
	uploads := api.Group("/uploads", s.UploadRateLimit())
	{
		uploads.POST("/csv/preview", s.PreviewCSV)
		uploads.POST("/csv/insert", s.InsertCSV)
		uploads.POST("/invoice", s.UploadInvoices)
	}

	// -------- Views --------
	api.GET("/dashboard", s.GetDashboard)
	api.GET("/insights", s.GetInsights)
	api.GET("/reports/summary", s.GetReportSummary)
	api.GET("/reports/export", s.ExportReport)
	api.GET("/tax/summary", s.GetTaxSummary)
}

func mustUserID(c *gin.Context) (int64, bool) {
	userID, ok := identity.UserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return 0, false
	}
	return userID, true
}
