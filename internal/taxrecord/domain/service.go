package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/taxmate/pkg/db/pagination"
)

// Store is the record store the ingestion and aggregation layers consume.
type Store interface {
	// InsertBatch writes all records or none and returns how many were written.
	InsertBatch(ctx context.Context, userID int64, records []*TaxRecord) (int, error)
	// Query returns the user's records inside rng ordered by date, with
	// legacy rows backfilled.
	Query(ctx context.Context, userID int64, rng DateRange) ([]TaxRecord, error)
}

type ListRequest struct {
	Range     DateRange
	PageToken string
	PageSize  int
}

type ListResponse struct {
	pagination.PageInfo
	Records []TaxRecord `json:"records"`
}

type Service interface {
	Store
	List(ctx context.Context, userID int64, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrOwnerMismatch    = errors.New("owner_mismatch")
)
