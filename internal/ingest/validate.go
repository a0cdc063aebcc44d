package ingest

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/config"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/internal/taxrule"
)

// Accepted input date layouts, tried in order. Single-digit days and months
// are accepted by each.
var dateLayouts = []string{
	"2006-1-2",
	"2-1-2006",
	"1/2/2006",
	"2/1/2006",
}

var maxRate = decimal.NewFromInt(100)

// RecordInput is the wire shape of a record on the manual create and bulk
// insert endpoints, and of a CSV row after column mapping.
type RecordInput struct {
	Date            string           `json:"date"`
	Description     string           `json:"description"`
	Category        string           `json:"category"`
	TransactionType string           `json:"transaction_type"`
	TaxableAmount   string           `json:"taxable_amount"`
	TaxRate         *decimal.Decimal `json:"tax_rate,omitempty"`
	TaxType         string           `json:"tax_type,omitempty"`
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Candidate converts the input, collecting every field that fails to parse.
func (in RecordInput) Candidate(row int, source string) (domain.Candidate, []RowError) {
	var errs []RowError
	fail := func(field, msg string) {
		errs = append(errs, RowError{Row: row, Field: field, Message: msg})
	}

	c := domain.Candidate{
		Row:             row,
		Description:     strings.TrimSpace(in.Description),
		Category:        strings.TrimSpace(in.Category),
		TransactionType: domain.TransactionType(strings.ToLower(strings.TrimSpace(in.TransactionType))),
		TaxRate:         in.TaxRate,
		TaxType:         strings.ToUpper(strings.TrimSpace(in.TaxType)),
		Source:          source,
		ConfidenceScore: 1.0,
	}

	if d, ok := parseDate(in.Date); ok {
		c.Date = d
	} else {
		fail("date", "invalid date format: "+strings.TrimSpace(in.Date)+". Expected YYYY-MM-DD or DD-MM-YYYY")
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(in.TaxableAmount), ",", ""))
	if err != nil {
		fail("taxable_amount", "must be a number")
	} else {
		c.TaxableAmount = amount
	}

	return c, errs
}

// InputFrom renders a candidate back into its normalized wire form.
func InputFrom(c domain.Candidate) RecordInput {
	return RecordInput{
		Date:            c.Date.Format(domain.DateLayout),
		Description:     c.Description,
		Category:        c.Category,
		TransactionType: string(c.TransactionType),
		TaxableAmount:   c.TaxableAmount.String(),
		TaxRate:         c.TaxRate,
		TaxType:         c.TaxType,
	}
}

// Validate checks a parsed candidate against the record invariants.
func Validate(c domain.Candidate, today time.Time) []RowError {
	var errs []RowError
	fail := func(field, msg string) {
		errs = append(errs, RowError{Row: c.Row, Field: field, Message: msg})
	}

	if !c.TransactionType.Valid() {
		fail("transaction_type", "must be income or expense")
	}
	if !c.TaxableAmount.IsPositive() {
		fail("taxable_amount", "must be greater than 0")
	} else if !c.TaxableAmount.Equal(c.TaxableAmount.Truncate(2)) {
		// stored as numeric(14,2); tax is computed from the stored value
		fail("taxable_amount", "must have at most 2 decimal places")
	}
	if c.TaxRate != nil && (c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(maxRate)) {
		fail("tax_rate", "must be between 0 and 100")
	}
	if t := strings.ToUpper(strings.TrimSpace(c.TaxType)); t != "" && t != taxrule.TaxTypeGST && t != taxrule.TaxTypeNone {
		fail("tax_type", "must be GST or NONE")
	}
	if c.Date.IsZero() {
		fail("date", "is required")
	} else if c.Date.After(today) {
		fail("date", "must not be in the future")
	}
	if strings.TrimSpace(c.Description) == "" {
		fail("description", "must not be empty")
	}
	return errs
}

// Gate decides whether a batch may proceed given how many rows parsed and
// which failed. The ratio is failed rows over all parsed rows.
func Gate(policy config.IngestPolicy, total int, rowErrs []RowError) error {
	if total > policy.MaxRows {
		return &BatchRejectedError{Reason: ReasonRowLimit, Rows: total, Limit: policy.MaxRows}
	}
	failed := failedRows(rowErrs)
	if total == 0 || failed == 0 {
		return nil
	}
	if float64(failed)/float64(total) > policy.MaxErrorRatio {
		first := rowErrs[0]
		return &BatchRejectedError{
			Reason: ReasonErrorRatio,
			Rows:   total,
			Errors: failed,
			First:  &first,
		}
	}
	return nil
}

func failedRows(errs []RowError) int {
	rows := make(map[int]struct{}, len(errs))
	for _, e := range errs {
		rows[e.Row] = struct{}{}
	}
	return len(rows)
}

// Dedup drops later candidates whose fingerprint was already seen in the
// batch, keeping first-occurrence order.
func Dedup(userID int64, candidates []domain.Candidate) ([]domain.Candidate, int) {
	seen := make(map[domain.Fingerprint]struct{}, len(candidates))
	kept := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		fp := c.Fingerprint(userID)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		kept = append(kept, c)
	}
	return kept, len(candidates) - len(kept)
}
