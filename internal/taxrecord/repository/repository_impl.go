package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/pkg/db/pagination"
	"gorm.io/gorm"
)

const insertBatchSize = 200

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, records []*domain.TaxRecord) error {
	if len(records) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(records, insertBatchSize).Error
}

func (r *repo) Query(ctx context.Context, db *gorm.DB, userID int64, rng domain.DateRange) ([]*domain.TaxRecord, error) {
	var records []*domain.TaxRecord
	err := scoped(db.WithContext(ctx), userID, rng).
		Order("date asc, id asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// List pages newest first; the cursor is the last (date, id) seen.
func (r *repo) List(ctx context.Context, db *gorm.DB, userID int64, rng domain.DateRange, page pagination.Pagination) ([]*domain.TaxRecord, error) {
	stmt := scoped(db.WithContext(ctx), userID, rng)
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		after, err := time.Parse(domain.DateLayout, cursor.Date)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		stmt = stmt.Where("((date < ?) OR (date = ? AND id < ?))", after, after, cursor.ID)
	}

	var records []*domain.TaxRecord
	err := stmt.
		Order("date desc, id desc").
		Limit(page.Size() + 1).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) UpdateDerived(ctx context.Context, db *gorm.DB, record *domain.TaxRecord) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tax_records
		 SET tax_rate = ?, tax_amount = ?, total_amount = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		record.TaxRate,
		record.TaxAmount,
		record.TotalAmount,
		record.UpdatedAt,
		record.ID,
		record.UserID,
	).Error
}

func scoped(db *gorm.DB, userID int64, rng domain.DateRange) *gorm.DB {
	stmt := db.Model(&domain.TaxRecord{}).Where("user_id = ?", userID)
	if rng.Start != nil {
		stmt = stmt.Where("date >= ?", *rng.Start)
	}
	if rng.End != nil {
		stmt = stmt.Where("date <= ?", *rng.End)
	}
	return stmt
}
