package service

import (
	"context"
	"fmt"

	"github.com/smallbiznis/taxmate/internal/clock"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("taxrecord.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) InsertBatch(ctx context.Context, userID int64, records []*domain.TaxRecord) (int, error) {
	if userID <= 0 {
		return 0, domain.ErrInvalidUser
	}
	if len(records) == 0 {
		return 0, nil
	}
	for _, rec := range records {
		if rec.UserID != userID {
			return 0, domain.ErrOwnerMismatch
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.InsertBatch(ctx, tx, records)
	})
	if err != nil {
		return 0, fmt.Errorf("insert tax records: %w", err)
	}
	return len(records), nil
}

func (s *Service) Query(ctx context.Context, userID int64, rng domain.DateRange) ([]domain.TaxRecord, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUser
	}
	items, err := s.repo.Query(ctx, s.db, userID, rng)
	if err != nil {
		return nil, fmt.Errorf("query tax records: %w", err)
	}
	return s.backfill(ctx, items), nil
}

func (s *Service) List(ctx context.Context, userID int64, req domain.ListRequest) (domain.ListResponse, error) {
	if userID <= 0 {
		return domain.ListResponse{}, domain.ErrInvalidUser
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, userID, req.Range, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	records, info, err := pagination.Trim(s.backfill(ctx, items), page.Size(), func(r domain.TaxRecord) pagination.Cursor {
		return pagination.Cursor{ID: r.ID.Int64(), Date: r.Date.Format(domain.DateLayout)}
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	return domain.ListResponse{PageInfo: info, Records: records}, nil
}

// backfill recomputes derived amounts on legacy rows and persists them. A
// failed write is logged; the caller still gets the recomputed values.
func (s *Service) backfill(ctx context.Context, items []*domain.TaxRecord) []domain.TaxRecord {
	out := make([]domain.TaxRecord, 0, len(items))
	healed := 0
	for _, item := range items {
		if item == nil {
			continue
		}
		if item.NeedsBackfill() {
			item.RecomputeTax()
			item.UpdatedAt = s.clock.Now().UTC()
			if err := s.repo.UpdateDerived(ctx, s.db, item); err != nil {
				s.log.Warn("backfill tax record failed",
					zap.Int64("record_id", item.ID.Int64()),
					zap.Error(err),
				)
			} else {
				healed++
			}
		}
		out = append(out, *item)
	}
	if healed > 0 {
		s.log.Info("backfilled legacy tax records", zap.Int("count", healed))
	}
	return out
}

var _ domain.Service = (*Service)(nil)
