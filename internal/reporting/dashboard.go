package reporting

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/internal/taxrule"
)

type Dashboard struct {
	Summary      Summary      `json:"summary"`
	Categories   Categories   `json:"categories"`
	MonthlyTrend []TrendPoint `json:"monthly_trend"`
}

type Categories struct {
	Income  map[string]decimal.Decimal `json:"income"`
	Expense map[string]decimal.Decimal `json:"expense"`
}

type TrendPoint struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Tax     decimal.Decimal `json:"tax"`
}

// BuildDashboard computes totals, per-category sums split by type, and one
// trend point per YYYY-MM present, oldest first.
func BuildDashboard(records []domain.TaxRecord) Dashboard {
	cats := Categories{
		Income:  map[string]decimal.Decimal{},
		Expense: map[string]decimal.Decimal{},
	}
	months := map[string]*Totals{}

	for _, r := range records {
		bucket := months[monthKey(r)]
		if bucket == nil {
			bucket = &Totals{}
			months[monthKey(r)] = bucket
		}
		bucket.add(r)

		switch r.TransactionType {
		case domain.TransactionIncome:
			cats.Income[r.Category] = cats.Income[r.Category].Add(r.TaxableAmount)
		case domain.TransactionExpense:
			cats.Expense[r.Category] = cats.Expense[r.Category].Add(r.TaxableAmount)
		}
	}
	roundValues(cats.Income)
	roundValues(cats.Expense)

	trend := make([]TrendPoint, 0, len(months))
	for month, t := range months {
		trend = append(trend, TrendPoint{
			Month:   month,
			Income:  taxrule.Round(t.Income),
			Expense: taxrule.Round(t.Expense),
			Tax:     taxrule.Round(t.Tax),
		})
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Month < trend[j].Month })

	return Dashboard{
		Summary:      Summarize(records).Summary(),
		Categories:   cats,
		MonthlyTrend: trend,
	}
}

func roundValues(m map[string]decimal.Decimal) {
	for k, v := range m {
		m[k] = taxrule.Round(v)
	}
}
