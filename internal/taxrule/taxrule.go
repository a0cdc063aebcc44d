// Package taxrule derives tax and totals for a single transaction.
//
// Amounts are rounded half-to-even at two decimals. Compute is idempotent:
// feeding a Result's Rate back in yields the same Result.
package taxrule

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	TaxTypeGST  = "GST"
	TaxTypeNone = "NONE"
)

// Scale is the number of decimals kept on every monetary value.
const Scale = 2

var (
	gstRate = decimal.NewFromInt(18)
	hundred = decimal.NewFromInt(100)
)

// Result carries the resolved rate next to the derived amounts so callers can
// persist the rate and never recompute from the legacy tax type again.
type Result struct {
	Rate  decimal.Decimal
	Tax   decimal.Decimal
	Total decimal.Decimal
}

// ResolveRate returns rate when set, otherwise the rate implied by the legacy
// tax type (GST 18, anything else 0).
func ResolveRate(rate *decimal.Decimal, taxType string) decimal.Decimal {
	if rate != nil {
		return *rate
	}
	if IsGST(taxType) {
		return gstRate
	}
	return decimal.Zero
}

func IsGST(taxType string) bool {
	return strings.EqualFold(strings.TrimSpace(taxType), TaxTypeGST)
}

// Compute applies the rate to taxable. Validation of taxable and rate happens
// upstream; Compute never fails.
func Compute(taxable decimal.Decimal, rate *decimal.Decimal, taxType string) Result {
	resolved := ResolveRate(rate, taxType)
	tax := Round(taxable.Mul(resolved).Div(hundred))
	return Result{
		Rate:  resolved,
		Tax:   tax,
		Total: Round(taxable.Add(tax)),
	}
}

// Round is the single rounding primitive for money.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(Scale)
}
