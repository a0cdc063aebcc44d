package domain

import (
	"context"

	"github.com/smallbiznis/taxmate/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository is the SQL access layer. Every method takes the handle to run
// on so callers can pass a transaction.
type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, records []*TaxRecord) error
	Query(ctx context.Context, db *gorm.DB, userID int64, rng DateRange) ([]*TaxRecord, error)
	List(ctx context.Context, db *gorm.DB, userID int64, rng DateRange, page pagination.Pagination) ([]*TaxRecord, error)
	UpdateDerived(ctx context.Context, db *gorm.DB, record *TaxRecord) error
}
