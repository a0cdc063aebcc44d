package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	recordsIngested metric.Int64Counter
	batchesRejected metric.Int64Counter
	invoicesParsed  metric.Int64Counter
	cacheLookups    metric.Int64Counter
	rateLimitDenied metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "taxmate"
	}
	meter := provider.Meter(name)

	recordsIngested, err := meter.Int64Counter("taxmate_records_ingested_total")
	if err != nil {
		return nil, err
	}
	batchesRejected, err := meter.Int64Counter("taxmate_batches_rejected_total")
	if err != nil {
		return nil, err
	}
	invoicesParsed, err := meter.Int64Counter("taxmate_invoices_parsed_total")
	if err != nil {
		return nil, err
	}
	cacheLookups, err := meter.Int64Counter("taxmate_dashboard_cache_lookups_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("taxmate_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		recordsIngested: recordsIngested,
		batchesRejected: batchesRejected,
		invoicesParsed:  invoicesParsed,
		cacheLookups:    cacheLookups,
		rateLimitDenied: rateLimitDenied,
	}, nil
}

// NewNoop returns instruments bound to a no-op provider, for tests and tools.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordIngested adds inserted and duplicate counts for a source.
func (m *Metrics) RecordIngested(ctx context.Context, source string, inserted, duplicates int) {
	if m == nil {
		return
	}
	m.recordsIngested.Add(ctx, int64(inserted), metric.WithAttributes(FilterAttributes(
		attribute.String("source", source), attribute.String("outcome", "inserted"))...))
	if duplicates > 0 {
		m.recordsIngested.Add(ctx, int64(duplicates), metric.WithAttributes(FilterAttributes(
			attribute.String("source", source), attribute.String("outcome", "duplicate"))...))
	}
}

// RecordBatchRejected counts batches refused by the ingest gate.
func (m *Metrics) RecordBatchRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.batchesRejected.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("reason", reason))...))
}

// RecordInvoiceParsed counts invoice uploads by outcome.
func (m *Metrics) RecordInvoiceParsed(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.invoicesParsed.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

// RecordCacheLookup counts dashboard cache hits and misses.
func (m *Metrics) RecordCacheLookup(ctx context.Context, kind string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("kind", kind), attribute.String("outcome", outcome))...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("endpoint", endpoint))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// user_id is deliberately absent: one series per user is unbounded.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"source":      {},
	"outcome":     {},
	"reason":      {},
	"kind":        {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
