// Package reporting builds the dashboard, insight and period-report views
// over a user's records. Every view is derived from Summarize, so totals agree
// across views for the same record set.
package reporting

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/internal/taxrule"
)

// Totals is the unrounded accumulation every view starts from.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Tax     decimal.Decimal
	Total   decimal.Decimal
	Taxable decimal.Decimal
}

// Summary is the rounded, wire form of Totals.
type Summary struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	EstimatedTax decimal.Decimal `json:"estimated_tax"`
}

func (t *Totals) add(r domain.TaxRecord) {
	switch r.TransactionType {
	case domain.TransactionIncome:
		t.Income = t.Income.Add(r.TaxableAmount)
	case domain.TransactionExpense:
		t.Expense = t.Expense.Add(r.TaxableAmount)
	}
	t.Tax = t.Tax.Add(r.Tax())
	t.Total = t.Total.Add(r.Total())
	t.Taxable = t.Taxable.Add(r.TaxableAmount)
}

// Summarize accumulates records.
func Summarize(records []domain.TaxRecord) Totals {
	var t Totals
	for _, r := range records {
		t.add(r)
	}
	return t
}

func (t Totals) Summary() Summary {
	return Summary{
		TotalIncome:  taxrule.Round(t.Income),
		TotalExpense: taxrule.Round(t.Expense),
		EstimatedTax: taxrule.Round(t.Tax),
	}
}

// Filter keeps records inside rng, preserving order.
func Filter(records []domain.TaxRecord, rng domain.DateRange) []domain.TaxRecord {
	if rng.IsZero() {
		return records
	}
	out := make([]domain.TaxRecord, 0, len(records))
	for _, r := range records {
		if rng.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

func monthKey(r domain.TaxRecord) string {
	return r.Date.Format("2006-01")
}
