package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/clock"
	"github.com/smallbiznis/taxmate/internal/migration"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/internal/taxrecord/repository"
	"github.com/smallbiznis/taxmate/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	conn := dbtest.Open(t)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	return svc, conn, node
}

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func candidate(date, desc, amount string, typ domain.TransactionType) domain.Candidate {
	return domain.Candidate{
		Date:            day(date),
		Description:     desc,
		Category:        "General",
		TransactionType: typ,
		TaxableAmount:   decimal.RequireFromString(amount),
		TaxType:         "GST",
		Source:          domain.SourceManual,
		ConfidenceScore: 1,
	}
}

func TestInsertBatchAndQueryByDate(t *testing.T) {
	svc, _, node := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := []*domain.TaxRecord{
		candidate("2024-05-31", "Salary", "1000", domain.TransactionIncome).ToRecord(node.Generate(), 7, now),
		candidate("2024-06-01", "Rent", "500", domain.TransactionExpense).ToRecord(node.Generate(), 7, now),
		candidate("2024-06-15", "Bonus", "200", domain.TransactionIncome).ToRecord(node.Generate(), 7, now),
	}
	n, err := svc.InsertBatch(ctx, 7, records)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := svc.Query(ctx, 7, domain.DateRange{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Salary", all[0].Description)
	assert.True(t, decimal.NewFromInt(180).Equal(all[0].Tax()))
	assert.True(t, decimal.NewFromInt(1180).Equal(all[0].Total()))

	start, end := day("2024-06-01"), day("2024-06-15")
	june, err := svc.Query(ctx, 7, domain.DateRange{Start: &start, End: &end})
	require.NoError(t, err)
	require.Len(t, june, 2)
	assert.Equal(t, "Rent", june[0].Description)
	assert.Equal(t, "Bonus", june[1].Description)

	other, err := svc.Query(ctx, 8, domain.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestInsertBatchIsAtomic(t *testing.T) {
	svc, conn, node := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Occupies an id the batch reuses, owned by someone else.
	clash := node.Generate()
	blocker := candidate("2024-01-01", "Blocker", "1", domain.TransactionExpense).ToRecord(clash, 99, now)
	_, err := svc.InsertBatch(ctx, 99, []*domain.TaxRecord{blocker})
	require.NoError(t, err)

	// More rows than one insert chunk so the first chunk lands before the failure.
	batch := make([]*domain.TaxRecord, 0, insertRows)
	for i := 0; i < insertRows-1; i++ {
		batch = append(batch, candidate("2024-02-01", "Row", "10", domain.TransactionExpense).ToRecord(node.Generate(), 7, now))
	}
	batch = append(batch, candidate("2024-02-02", "Clash", "10", domain.TransactionExpense).ToRecord(clash, 7, now))

	n, err := svc.InsertBatch(ctx, 7, batch)
	require.Error(t, err)
	assert.Equal(t, 0, n)

	var count int64
	require.NoError(t, conn.Model(&domain.TaxRecord{}).Where("user_id = ?", 7).Count(&count).Error)
	assert.Zero(t, count)
}

const insertRows = 250

func TestInsertBatchRejectsForeignRecords(t *testing.T) {
	svc, _, node := setup(t)
	rec := candidate("2024-02-01", "Row", "10", domain.TransactionExpense).ToRecord(node.Generate(), 8, time.Now())
	_, err := svc.InsertBatch(context.Background(), 7, []*domain.TaxRecord{rec})
	assert.ErrorIs(t, err, domain.ErrOwnerMismatch)
}

func TestQueryBackfillsLegacyRows(t *testing.T) {
	svc, conn, node := setup(t)
	ctx := context.Background()

	id := node.Generate()
	require.NoError(t, conn.Exec(
		`INSERT INTO tax_records (id, user_id, source, date, description, category, transaction_type,
		 taxable_amount, tax_type, confidence_score, created_at, updated_at)
		 VALUES (?, ?, 'manual', ?, 'Old invoice', 'Legacy', 'expense', 200, 'GST', 1, ?, ?)`,
		id, 7, day("2023-01-10"), time.Now().UTC(), time.Now().UTC(),
	).Error)

	records, err := svc.Query(ctx, 7, domain.DateRange{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, decimal.NewFromInt(18).Equal(records[0].TaxRate.Decimal))
	assert.True(t, decimal.NewFromInt(36).Equal(records[0].Tax()))
	assert.True(t, decimal.NewFromInt(236).Equal(records[0].Total()))

	var stored domain.TaxRecord
	require.NoError(t, conn.First(&stored, "id = ?", id).Error)
	assert.False(t, stored.NeedsBackfill())
	assert.True(t, decimal.NewFromInt(236).Equal(stored.Total()))

	// Recomputing an already healed row changes nothing.
	again, err := svc.Query(ctx, 7, domain.DateRange{})
	require.NoError(t, err)
	assert.True(t, records[0].Total().Equal(again[0].Total()))
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, _, node := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	var batch []*domain.TaxRecord
	for _, date := range []string{"2024-01-01", "2024-02-01", "2024-03-01"} {
		batch = append(batch, candidate(date, "Entry "+date, "10", domain.TransactionIncome).ToRecord(node.Generate(), 7, now))
	}
	_, err := svc.InsertBatch(ctx, 7, batch)
	require.NoError(t, err)

	first, err := svc.List(ctx, 7, domain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Records, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "Entry 2024-03-01", first.Records[0].Description)

	second, err := svc.List(ctx, 7, domain.ListRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "Entry 2024-01-01", second.Records[0].Description)

	_, err = svc.List(ctx, 7, domain.ListRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}
