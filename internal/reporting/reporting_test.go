package reporting

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/internal/taxrule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func record(date, category string, typ domain.TransactionType, amount string, rate int64) domain.TaxRecord {
	r := domain.TaxRecord{
		Date:            day(date),
		Description:     category + " " + date,
		Category:        category,
		TransactionType: typ,
		TaxableAmount:   decimal.RequireFromString(amount),
		TaxType:         taxrule.TaxTypeNone,
	}
	rt := decimal.NewFromInt(rate)
	r.ApplyTax(taxrule.Compute(r.TaxableAmount, &rt, r.TaxType))
	return r
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msg ...any) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s got %s %v", want, got, msg)
}

func TestResolvePeriod(t *testing.T) {
	today := day("2024-06-15")

	cases := []struct {
		period     string
		start, end string
	}{
		{PeriodMonth, "2024-06-01", "2024-06-15"},
		{PeriodPrevMonth, "2024-05-01", "2024-05-31"},
		{PeriodFY, "2024-04-01", "2025-03-31"},
		{PeriodYTD, "2024-01-01", "2024-06-15"},
	}
	for _, tc := range cases {
		t.Run(tc.period, func(t *testing.T) {
			rng, err := ResolvePeriod(tc.period, today, nil, nil)
			require.NoError(t, err)
			require.NotNil(t, rng.Start)
			require.NotNil(t, rng.End)
			assert.Equal(t, tc.start, rng.Start.Format(domain.DateLayout))
			assert.Equal(t, tc.end, rng.End.Format(domain.DateLayout))
		})
	}

	t.Run("fy before april", func(t *testing.T) {
		rng, err := ResolvePeriod(PeriodFY, day("2024-02-10"), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "2023-04-01", rng.Start.Format(domain.DateLayout))
		assert.Equal(t, "2024-03-31", rng.End.Format(domain.DateLayout))
	})

	t.Run("prev month across year", func(t *testing.T) {
		rng, err := ResolvePeriod(PeriodPrevMonth, day("2024-01-20"), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "2023-12-01", rng.Start.Format(domain.DateLayout))
		assert.Equal(t, "2023-12-31", rng.End.Format(domain.DateLayout))
	})

	t.Run("empty keeps explicit bounds", func(t *testing.T) {
		rng, err := ResolvePeriod("", today, nil, nil)
		require.NoError(t, err)
		assert.True(t, rng.IsZero())

		start := day("2024-03-01")
		rng, err = ResolvePeriod(PeriodCustom, today, &start, nil)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-01", rng.Start.Format(domain.DateLayout))
		assert.Nil(t, rng.End)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := ResolvePeriod("quarter", today, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	})
}

func TestBuildDashboard(t *testing.T) {
	records := []domain.TaxRecord{
		record("2024-02-10", "Consulting", domain.TransactionIncome, "2000", 18),
		record("2024-01-05", "Salary", domain.TransactionIncome, "1000", 0),
		record("2024-01-20", "Rent", domain.TransactionExpense, "500", 18),
	}

	d := BuildDashboard(records)

	assertDecimal(t, "3000", d.Summary.TotalIncome)
	assertDecimal(t, "500", d.Summary.TotalExpense)
	assertDecimal(t, "450", d.Summary.EstimatedTax)

	assertDecimal(t, "2000", d.Categories.Income["Consulting"])
	assertDecimal(t, "500", d.Categories.Expense["Rent"])

	require.Len(t, d.MonthlyTrend, 2)
	assert.Equal(t, "2024-01", d.MonthlyTrend[0].Month)
	assert.Equal(t, "2024-02", d.MonthlyTrend[1].Month)
	assertDecimal(t, "1000", d.MonthlyTrend[0].Income)
	assertDecimal(t, "500", d.MonthlyTrend[0].Expense)
	assertDecimal(t, "90", d.MonthlyTrend[0].Tax)
	assertDecimal(t, "360", d.MonthlyTrend[1].Tax)
}

func TestBuildDashboardEmpty(t *testing.T) {
	d := BuildDashboard(nil)
	assert.True(t, d.Summary.TotalIncome.IsZero())
	assert.Empty(t, d.MonthlyTrend)

	decimal.MarshalJSONWithoutQuotes = true
	defer func() { decimal.MarshalJSONWithoutQuotes = false }()
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"summary":{"total_income":0,"total_expense":0,"estimated_tax":0},"categories":{"income":{},"expense":{}},"monthly_trend":[]}`,
		string(raw))
}

func TestBuildInsights(t *testing.T) {
	records := []domain.TaxRecord{
		record("2024-01-05", "Salary", domain.TransactionIncome, "10000", 0),
		record("2024-01-10", "Rent", domain.TransactionExpense, "3000", 0),
		record("2024-02-05", "Salary", domain.TransactionIncome, "10000", 0),
		record("2024-02-11", "Food", domain.TransactionExpense, "1000", 5),
		record("2024-02-12", "", domain.TransactionExpense, "500", 0),
	}

	in := BuildInsights(records)

	assertDecimal(t, "20000", in.TotalIncome)
	assertDecimal(t, "4500", in.TotalExpenses)
	assertDecimal(t, "50", in.ProjectedTax)
	assertDecimal(t, "15450", in.NetSavings)
	assertDecimal(t, "77.25", in.SavingsRate)
	assertDecimal(t, "0.25", in.TaxEfficiency)
	assertDecimal(t, "2250", in.MonthlyBurnRate)
	assert.Equal(t, 100, in.FinancialHealthScore)

	require.Len(t, in.TopExpenseCategories, 3)
	assert.Equal(t, "Rent", in.TopExpenseCategories[0].Category)
	assertDecimal(t, "66.67", in.TopExpenseCategories[0].Percentage)
	assert.Equal(t, "Uncategorized", in.TopExpenseCategories[2].Category)
}

func TestBuildInsightsNoIncome(t *testing.T) {
	in := BuildInsights([]domain.TaxRecord{
		record("2024-03-01", "Rent", domain.TransactionExpense, "800", 0),
	})
	assert.True(t, in.SavingsRate.IsZero())
	assert.True(t, in.TaxEfficiency.IsZero())
	// only the tax efficiency bonus applies
	assert.Equal(t, 20, in.FinancialHealthScore)
}

func TestTopCategoriesLimit(t *testing.T) {
	var records []domain.TaxRecord
	for i, c := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		records = append(records, record("2024-01-01", c, domain.TransactionExpense, decimal.NewFromInt(int64(100*(i+1))).String(), 0))
	}
	in := BuildInsights(records)
	require.Len(t, in.TopExpenseCategories, 5)
	assert.Equal(t, "G", in.TopExpenseCategories[0].Category)
	assert.Equal(t, "C", in.TopExpenseCategories[4].Category)
}

func TestHealthScore(t *testing.T) {
	d := decimal.NewFromInt
	cases := []struct {
		name                      string
		savings, taxEff, burn, in decimal.Decimal
		want                      int
	}{
		{"healthy", d(30), d(5), d(100), d(200), 100},
		{"moderate savings", d(15), d(5), d(100), d(200), 80},
		{"burn near income", d(5), d(40), d(105), d(100), 10},
		{"burn over income", d(5), d(40), d(200), d(100), 0},
		{"boundary values", d(20), d(30), d(100), d(100), 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HealthScore(tc.savings, tc.taxEff, tc.burn, tc.in))
		})
	}
}

func TestWriteCSV(t *testing.T) {
	records := []domain.TaxRecord{
		record("2024-01-05", "Salary", domain.TransactionIncome, "1000", 0),
		record("2024-01-20", "Rent", domain.TransactionExpense, "500", 18),
	}
	records[1].Description = "Office, rent"

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	want := "Date,Description,Category,Type,Taxable Amount,Tax Amount,Total Amount\n" +
		"2024-01-05,Salary 2024-01-05,Salary,Income,1000.00,0.00,1000.00\n" +
		"2024-01-20,\"Office, rent\",Rent,Expense,500.00,90.00,590.00\n" +
		"\n" +
		"TOTAL,,,,1500.00,90.00,1590.00\n"
	assert.Equal(t, want, buf.String())
}

func TestExportFilename(t *testing.T) {
	start := day("2024-04-01")
	assert.Equal(t, "financial_report_all_all.csv", ExportFilename(domain.DateRange{}, "csv"))
	assert.Equal(t, "financial_report_2024-04-01_all.pdf", ExportFilename(domain.DateRange{Start: &start}, "pdf"))
}

func TestBuildReport(t *testing.T) {
	records := []domain.TaxRecord{
		record("2024-01-05", "Salary", domain.TransactionIncome, "1000", 0),
		record("2024-02-20", "Rent", domain.TransactionExpense, "500", 18),
	}
	start, end := day("2024-02-01"), day("2024-02-29")

	rep := BuildReport(records, domain.DateRange{Start: &start, End: &end})
	assert.Equal(t, 1, rep.Records)
	assert.Equal(t, "2024-02-01", rep.StartDate)
	assertDecimal(t, "0", rep.TotalIncome)
	assertDecimal(t, "500", rep.TotalExpense)
	assertDecimal(t, "90", rep.EstimatedTax)
}

func TestRenderPDF(t *testing.T) {
	r, err := RenderPDF(domain.DateRange{}, []domain.TaxRecord{
		record("2024-01-05", "Salary", domain.TransactionIncome, "1000", 0),
	})
	require.NoError(t, err)
	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}
