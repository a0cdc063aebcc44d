package reporting

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/internal/taxrule"
)

const (
	uncategorized    = "Uncategorized"
	topCategoryLimit = 5
)

var (
	hundred          = decimal.NewFromInt(100)
	tenPercentMargin = decimal.RequireFromString("1.1")
)

type CategoryExpense struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

type Insights struct {
	TotalIncome          decimal.Decimal   `json:"total_income"`
	TotalExpenses        decimal.Decimal   `json:"total_expenses"`
	NetSavings           decimal.Decimal   `json:"net_savings"`
	SavingsRate          decimal.Decimal   `json:"savings_rate"`
	TaxEfficiency        decimal.Decimal   `json:"tax_efficiency"`
	ProjectedTax         decimal.Decimal   `json:"projected_tax"`
	TopExpenseCategories []CategoryExpense `json:"top_expense_categories"`
	MonthlyBurnRate      decimal.Decimal   `json:"monthly_burn_rate"`
	FinancialHealthScore int               `json:"financial_health_score"`
}

// BuildInsights derives savings, tax efficiency, burn rate and a 0-100 health
// score. Ratios are percentages; comparisons use unrounded values.
func BuildInsights(records []domain.TaxRecord) Insights {
	totals := Summarize(records)

	byCategory := map[string]decimal.Decimal{}
	months := map[string]struct{}{}
	for _, r := range records {
		months[monthKey(r)] = struct{}{}
		if r.TransactionType != domain.TransactionExpense {
			continue
		}
		cat := strings.TrimSpace(r.Category)
		if cat == "" {
			cat = uncategorized
		}
		byCategory[cat] = byCategory[cat].Add(r.TaxableAmount)
	}

	net := totals.Income.Sub(totals.Expense).Sub(totals.Tax)
	savingsRate := percentOf(net, totals.Income)
	taxEfficiency := percentOf(totals.Tax, totals.Income)

	monthCount := decimal.NewFromInt(int64(max(len(months), 1)))
	burn := totals.Expense.Div(monthCount)
	avgIncome := totals.Income.Div(monthCount)

	return Insights{
		TotalIncome:          taxrule.Round(totals.Income),
		TotalExpenses:        taxrule.Round(totals.Expense),
		NetSavings:           taxrule.Round(net),
		SavingsRate:          taxrule.Round(savingsRate),
		TaxEfficiency:        taxrule.Round(taxEfficiency),
		ProjectedTax:         taxrule.Round(totals.Tax),
		TopExpenseCategories: topCategories(byCategory, totals.Expense),
		MonthlyBurnRate:      taxrule.Round(burn),
		FinancialHealthScore: HealthScore(savingsRate, taxEfficiency, burn, avgIncome),
	}
}

// HealthScore awards up to 40 for savings, 20 for tax efficiency and 40 for
// spending within income, clamped to [0,100].
func HealthScore(savingsRate, taxEfficiency, burn, avgIncome decimal.Decimal) int {
	score := 0
	switch {
	case savingsRate.GreaterThan(decimal.NewFromInt(20)):
		score += 40
	case savingsRate.GreaterThan(decimal.NewFromInt(10)):
		score += 20
	}
	if taxEfficiency.LessThan(decimal.NewFromInt(30)) {
		score += 20
	}
	switch {
	case burn.LessThan(avgIncome):
		score += 40
	case burn.LessThan(avgIncome.Mul(tenPercentMargin)):
		score += 10
	}
	return min(100, max(0, score))
}

func topCategories(byCategory map[string]decimal.Decimal, totalExpense decimal.Decimal) []CategoryExpense {
	out := make([]CategoryExpense, 0, len(byCategory))
	for cat, amount := range byCategory {
		out = append(out, CategoryExpense{Category: cat, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > topCategoryLimit {
		out = out[:topCategoryLimit]
	}
	for i := range out {
		out[i].Percentage = taxrule.Round(percentOf(out[i].Amount, totalExpense))
		out[i].Amount = taxrule.Round(out[i].Amount)
	}
	return out
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}
