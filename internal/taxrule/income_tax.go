package taxrule

import "github.com/shopspring/decimal"

type slab struct {
	upTo decimal.Decimal
	rate decimal.Decimal
}

// Old-regime placeholder; not a compliance table.
var incomeTaxSlabs = []slab{
	{upTo: decimal.NewFromInt(250000), rate: decimal.Zero},
	{upTo: decimal.NewFromInt(500000), rate: decimal.RequireFromString("0.05")},
	{upTo: decimal.NewFromInt(1000000), rate: decimal.RequireFromString("0.20")},
}

var topSlabRate = decimal.RequireFromString("0.30")

// IncomeTax estimates annual income tax over progressive slabs.
func IncomeTax(income decimal.Decimal) decimal.Decimal {
	if !income.IsPositive() {
		return decimal.Zero
	}

	tax := decimal.Zero
	lower := decimal.Zero
	for _, s := range incomeTaxSlabs {
		if income.LessThanOrEqual(lower) {
			break
		}
		band := decimal.Min(income, s.upTo).Sub(lower)
		tax = tax.Add(band.Mul(s.rate))
		lower = s.upTo
	}
	if income.GreaterThan(lower) {
		tax = tax.Add(income.Sub(lower).Mul(topSlabRate))
	}
	return Round(tax)
}

// Taxed is the view of a record the summary needs.
type Taxed interface {
	IsIncome() bool
	Taxable() decimal.Decimal
	Tax() decimal.Decimal
	LegacyTaxType() string
}

// Summary is the tax position over a set of records.
type Summary struct {
	TotalIncome        decimal.Decimal `json:"total_income"`
	TotalExpense       decimal.Decimal `json:"total_expense"`
	GSTPaid            decimal.Decimal `json:"gst_paid"`
	EstimatedIncomeTax decimal.Decimal `json:"estimated_income_tax"`
	EstimatedTotalTax  decimal.Decimal `json:"estimated_total_tax"`
}

// BuildSummary totals income and expense, sums tax on GST-typed records as GST
// paid, and estimates income tax on total income.
func BuildSummary[T Taxed](records []T) Summary {
	income, expense, gst := decimal.Zero, decimal.Zero, decimal.Zero
	for _, r := range records {
		if r.IsIncome() {
			income = income.Add(r.Taxable())
		} else {
			expense = expense.Add(r.Taxable())
		}
		if IsGST(r.LegacyTaxType()) {
			gst = gst.Add(r.Tax())
		}
	}

	incomeTax := IncomeTax(income)
	return Summary{
		TotalIncome:        Round(income),
		TotalExpense:       Round(expense),
		GSTPaid:            Round(gst),
		EstimatedIncomeTax: incomeTax,
		EstimatedTotalTax:  Round(incomeTax.Add(gst)),
	}
}
