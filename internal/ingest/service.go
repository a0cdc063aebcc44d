// Package ingest validates, gates, deduplicates and commits candidate records
// from every entry point: manual create, CSV import and invoice upload.
package ingest

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/clock"
	"github.com/smallbiznis/taxmate/internal/config"
	"github.com/smallbiznis/taxmate/internal/dispatcher"
	"github.com/smallbiznis/taxmate/internal/ingest/csvimport"
	"github.com/smallbiznis/taxmate/internal/invoiceparse"
	"github.com/smallbiznis/taxmate/internal/observability/metrics"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Invalidator drops cached views of a user's records after a write.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// Result summarizes one committed batch.
type Result struct {
	Inserted   int        `json:"inserted"`
	Duplicates int        `json:"duplicates"`
	Skipped    []RowError `json:"skipped,omitempty"`
}

// Preview is a parsed CSV upload that passed the gate.
type Preview struct {
	ParsedRows int           `json:"parsed_rows"`
	ValidRows  []RecordInput `json:"valid_rows"`
	ErrorRows  []RowError    `json:"error_rows"`
}

// ImportJob identifies a background insert.
type ImportJob struct {
	ID       string `json:"job_id"`
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
}

// InvoiceUpload reports a multi-file invoice upload.
type InvoiceUpload struct {
	TotalFiles       int                       `json:"total_files"`
	SuccessfulParses int                       `json:"successful_parses"`
	InsertedRecords  int                       `json:"inserted_records"`
	Results          []invoiceparse.FileResult `json:"results"`
}

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	Store       domain.Store
	GenID       *snowflake.Node
	Policy      *config.IngestPolicyHolder
	Invalidator Invalidator
	Dispatcher  dispatcher.Submitter
	Invoices    *invoiceparse.Processor
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	clock       clock.Clock
	store       domain.Store
	genID       *snowflake.Node
	policy      *config.IngestPolicyHolder
	invalidator Invalidator
	dispatcher  dispatcher.Submitter
	invoices    *invoiceparse.Processor
	metrics     *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		log:         p.Log.Named("ingest.service"),
		clock:       p.Clock,
		store:       p.Store,
		genID:       p.GenID,
		policy:      p.Policy,
		invalidator: p.Invalidator,
		dispatcher:  p.Dispatcher,
		invoices:    p.Invoices,
		metrics:     p.Metrics,
	}
}

// Create stores one manually entered record.
func (s *Service) Create(ctx context.Context, userID int64, in RecordInput) (*domain.TaxRecord, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUser
	}
	cand, errs := in.Candidate(1, domain.SourceManual)
	if len(errs) == 0 {
		errs = Validate(cand, clock.Today(s.clock))
	}
	if len(errs) > 0 {
		return nil, &ValidationErrors{Errors: errs}
	}

	records := s.toRecords(userID, []domain.Candidate{cand})
	if _, err := s.commit(ctx, userID, records, domain.SourceManual, 0); err != nil {
		return nil, err
	}
	return records[0], nil
}

// Ingest validates and gates the batch, then commits the valid, deduplicated
// rows in one transaction. Invalid rows under the error ratio are skipped and
// reported.
func (s *Service) Ingest(ctx context.Context, userID int64, candidates []domain.Candidate) (Result, error) {
	valid, rowErrs, err := s.prepare(ctx, userID, candidates)
	if err != nil {
		return Result{}, err
	}
	res, err := s.insert(ctx, userID, valid)
	res.Skipped = rowErrs
	return res, err
}

// Preview parses an uploaded CSV and applies the gate without persisting.
func (s *Service) Preview(ctx context.Context, userID int64, r io.Reader) (Preview, error) {
	if userID <= 0 {
		return Preview{}, domain.ErrInvalidUser
	}
	policy := s.policy.Get()
	rows, err := csvimport.Read(r, policy.MaxRows)
	if err != nil {
		return Preview{}, err
	}

	today := clock.Today(s.clock)
	out := Preview{
		ParsedRows: len(rows),
		ValidRows:  []RecordInput{},
		ErrorRows:  []RowError{},
	}
	for _, row := range rows {
		in, errs := inputFromRow(row)
		var cand domain.Candidate
		if len(errs) == 0 {
			cand, errs = in.Candidate(row.Line, domain.SourceCSV)
		}
		if len(errs) == 0 {
			errs = Validate(cand, today)
		}
		if len(errs) > 0 {
			out.ErrorRows = append(out.ErrorRows, errs[0])
			continue
		}
		out.ValidRows = append(out.ValidRows, InputFrom(cand))
	}

	if err := Gate(policy, out.ParsedRows, out.ErrorRows); err != nil {
		s.rejected(ctx, userID, err)
		return Preview{}, err
	}
	return out, nil
}

// Submit validates synchronously and commits in the background. The caller
// observes the outcome only by reading records back.
func (s *Service) Submit(ctx context.Context, userID int64, inputs []RecordInput) (ImportJob, error) {
	if userID <= 0 {
		return ImportJob{}, domain.ErrInvalidUser
	}
	candidates := make([]domain.Candidate, 0, len(inputs))
	var parseErrs []RowError
	for i, in := range inputs {
		cand, errs := in.Candidate(i+1, domain.SourceCSV)
		if len(errs) > 0 {
			parseErrs = append(parseErrs, errs...)
			continue
		}
		candidates = append(candidates, cand)
	}

	valid, rowErrs, err := s.prepareWith(ctx, userID, candidates, len(inputs), parseErrs)
	if err != nil {
		return ImportJob{}, err
	}

	job := ImportJob{ID: newJobID(s.clock.Now()), Status: "accepted", Accepted: len(valid)}
	log := s.log.With(zap.String("job_id", job.ID), zap.Int64("user_id", userID))

	err = s.dispatcher.Submit(dispatcher.Task{
		Name: "csv.import",
		Run: func(ctx context.Context) error {
			res, err := s.insert(ctx, userID, valid)
			if err != nil {
				return fmt.Errorf("import job %s: %w", job.ID, err)
			}
			log.Info("import job finished",
				zap.Int("inserted", res.Inserted),
				zap.Int("duplicates", res.Duplicates),
				zap.Int("skipped", len(rowErrs)),
			)
			return nil
		},
	})
	if err != nil {
		return ImportJob{}, fmt.Errorf("schedule import: %w", err)
	}
	log.Info("import job accepted", zap.Int("rows", len(valid)))
	return job, nil
}

// IngestInvoices runs OCR over the files and commits every usable parse as
// one batch.
func (s *Service) IngestInvoices(ctx context.Context, userID int64, files []invoiceparse.File) (InvoiceUpload, error) {
	if userID <= 0 {
		return InvoiceUpload{}, domain.ErrInvalidUser
	}
	if len(files) == 0 {
		return InvoiceUpload{}, ErrEmptyBatch
	}

	today := clock.Today(s.clock)
	results := s.invoices.Process(ctx, files, today)

	out := InvoiceUpload{TotalFiles: len(files), Results: results}
	var candidates []domain.Candidate
	for i := range results {
		res := &results[i]
		if res.Candidate == nil {
			continue
		}
		cand := *res.Candidate
		cand.Row = i + 1
		if errs := Validate(cand, today); len(errs) > 0 {
			res.Status = invoiceparse.StatusError
			res.Message = "Validation Error: " + (&ValidationErrors{Errors: errs}).Error()
			res.Candidate = nil
			continue
		}
		out.SuccessfulParses++
		candidates = append(candidates, cand)
	}

	if len(candidates) == 0 {
		return out, nil
	}
	res, err := s.insert(ctx, userID, candidates)
	if err != nil {
		return InvoiceUpload{}, err
	}
	out.InsertedRecords = res.Inserted
	return out, nil
}

func (s *Service) prepare(ctx context.Context, userID int64, candidates []domain.Candidate) ([]domain.Candidate, []RowError, error) {
	return s.prepareWith(ctx, userID, candidates, len(candidates), nil)
}

// prepareWith validates candidates and gates the batch. total counts every
// parsed row, including those that never became candidates.
func (s *Service) prepareWith(ctx context.Context, userID int64, candidates []domain.Candidate, total int, rowErrs []RowError) ([]domain.Candidate, []RowError, error) {
	if userID <= 0 {
		return nil, nil, domain.ErrInvalidUser
	}
	if total == 0 {
		return nil, nil, ErrEmptyBatch
	}

	today := clock.Today(s.clock)
	valid := make([]domain.Candidate, 0, len(candidates))
	for i, c := range candidates {
		if c.Row == 0 {
			c.Row = i + 1
		}
		if errs := Validate(c, today); len(errs) > 0 {
			rowErrs = append(rowErrs, errs...)
			continue
		}
		valid = append(valid, c)
	}

	if err := Gate(s.policy.Get(), total, rowErrs); err != nil {
		s.rejected(ctx, userID, err)
		return nil, nil, err
	}
	return valid, rowErrs, nil
}

func (s *Service) insert(ctx context.Context, userID int64, candidates []domain.Candidate) (Result, error) {
	kept, dups := Dedup(userID, candidates)
	if len(kept) == 0 {
		return Result{Duplicates: dups}, nil
	}
	n, err := s.commit(ctx, userID, s.toRecords(userID, kept), sourceLabel(kept[0].Source), dups)
	if err != nil {
		return Result{}, err
	}
	return Result{Inserted: n, Duplicates: dups}, nil
}

func (s *Service) toRecords(userID int64, candidates []domain.Candidate) []*domain.TaxRecord {
	now := s.clock.Now()
	records := make([]*domain.TaxRecord, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, c.ToRecord(s.genID.Generate(), userID, now))
	}
	return records
}

// commit persists atomically, then invalidates caches. An invalidation
// failure is logged; the records are already durable.
func (s *Service) commit(ctx context.Context, userID int64, records []*domain.TaxRecord, source string, dups int) (int, error) {
	n, err := s.store.InsertBatch(ctx, userID, records)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordIngested(ctx, source, n, dups)

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, userID); err != nil {
			s.log.Warn("cache invalidation failed after insert",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
	}
	return n, nil
}

func (s *Service) rejected(ctx context.Context, userID int64, err error) {
	var br *BatchRejectedError
	if errors.As(err, &br) {
		s.metrics.RecordBatchRejected(ctx, br.Reason)
		s.log.Debug("batch rejected",
			zap.Int64("user_id", userID),
			zap.String("reason", br.Reason),
			zap.Int("rows", br.Rows),
		)
	}
}

func inputFromRow(row csvimport.Row) (RecordInput, []RowError) {
	if len(row.Fields) == 0 {
		return RecordInput{}, []RowError{{Row: row.Line, Message: "malformed csv line"}}
	}
	in := RecordInput{
		Date:            row.Get("date"),
		Description:     row.Get("description"),
		Category:        row.Get("category"),
		TransactionType: row.Get("transaction_type"),
		TaxableAmount:   row.Get("taxable_amount"),
		TaxType:         row.Get("tax_type"),
	}
	if in.TaxType == "" {
		in.TaxType = "NONE"
	}
	if raw := row.Get("tax_rate"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return RecordInput{}, []RowError{{Row: row.Line, Field: "tax_rate", Message: "must be a number"}}
		}
		in.TaxRate = &rate
	}
	return in, nil
}

func sourceLabel(source string) string {
	if strings.HasPrefix(source, domain.SourceInvoicePrefix) {
		return "invoice"
	}
	if source == "" {
		return domain.SourceManual
	}
	return source
}

func newJobID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
