package invoiceparse

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/taxmate/internal/config"
	"github.com/smallbiznis/taxmate/internal/observability/metrics"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"

	previewLength      = 100
	defaultConcurrency = 4
)

// File is one uploaded invoice image.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileResult reports what happened to one file. Candidate is set only on
// success.
type FileResult struct {
	Filename  string            `json:"filename"`
	Status    string            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Parsed    *Parsed           `json:"parsed_data,omitempty"`
	Preview   string            `json:"extracted_text_preview,omitempty"`
	Candidate *domain.Candidate `json:"-"`
}

type Params struct {
	fx.In

	Config    config.Config
	Log       *zap.Logger
	Extractor Extractor
	Metrics   *metrics.Metrics `optional:"true"`
}

// Processor runs OCR and parsing over a batch of files on a bounded pool.
type Processor struct {
	extractor   Extractor
	log         *zap.Logger
	metrics     *metrics.Metrics
	concurrency int
}

func NewProcessor(p Params) *Processor {
	n := p.Config.OCR.Concurrency
	if n <= 0 {
		n = defaultConcurrency
	}
	return &Processor{
		extractor:   p.Extractor,
		log:         p.Log.Named("invoice.processor"),
		metrics:     p.Metrics,
		concurrency: n,
	}
}

// Process returns one result per file in input order. A failing file never
// affects the others.
func (p *Processor) Process(ctx context.Context, files []File, today time.Time) []FileResult {
	results := make([]FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, f := range files {
		g.Go(func() error {
			results[i] = p.processOne(gctx, f, today)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Processor) processOne(ctx context.Context, f File, today time.Time) FileResult {
	res := FileResult{Filename: f.Name}

	if !strings.HasPrefix(f.ContentType, "image/") {
		res.Status, res.Message = StatusError, "Only image files are supported"
		p.metrics.RecordInvoiceParsed(ctx, "unsupported")
		return res
	}

	text, err := p.extractor.Extract(ctx, f.Data, f.ContentType)
	if err != nil {
		p.log.Warn("invoice ocr failed", zap.String("filename", f.Name), zap.Error(err))
		res.Status, res.Message = StatusError, "Text extraction failed"
		p.metrics.RecordInvoiceParsed(ctx, "ocr_failed")
		return res
	}

	parsed := Parse(text, today)
	cand, ok := parsed.Candidate(f.Name)
	if !ok {
		res.Status = StatusWarning
		res.Message = "Could not extract sufficient data (Date/Amount)"
		res.Preview = truncateRunes(text, previewLength)
		p.metrics.RecordInvoiceParsed(ctx, "insufficient")
		return res
	}

	res.Status = StatusSuccess
	res.Parsed = &parsed
	res.Candidate = &cand
	p.metrics.RecordInvoiceParsed(ctx, "parsed")
	return res
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
