package invoiceparse

import (
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/internal/taxrule"
)

// OCRConfidence is the provenance score of records read from invoice images.
const OCRConfidence = 0.6

// SourceFor tags records by the uploaded file they came from.
func SourceFor(filename string) string {
	name := slug.Make(strings.TrimSuffix(filename, extOf(filename)))
	if name == "" {
		name = "file"
	}
	return domain.SourceInvoicePrefix + name
}

// Candidate turns a parse into an expense candidate. It reports false when
// no amount was found; a missing date already fell back to the parse day.
func (p Parsed) Candidate(filename string) (domain.Candidate, bool) {
	if !p.Amount.Valid {
		return domain.Candidate{}, false
	}
	desc := p.Description
	if desc == "" {
		desc = "Invoice " + filename
	}
	zero := decimal.Zero
	return domain.Candidate{
		Date:            p.Date,
		Description:     desc,
		Category:        p.Category,
		TransactionType: domain.TransactionExpense,
		TaxableAmount:   p.Amount.Decimal,
		TaxRate:         &zero,
		TaxType:         taxrule.TaxTypeNone,
		Source:          SourceFor(filename),
		ConfidenceScore: OCRConfidence,
		Metadata: map[string]any{
			"filename":   filename,
			"date_found": p.DateFound,
		},
	}, true
}

func extOf(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i > 0 {
		return filename[i:]
	}
	return ""
}
