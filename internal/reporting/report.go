package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
)

// Report is the period summary returned by the summary endpoint.
type Report struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Records   int    `json:"records"`
	Summary
}

func BuildReport(records []domain.TaxRecord, rng domain.DateRange) Report {
	filtered := Filter(records, rng)
	return Report{
		StartDate: formatBound(rng.Start),
		EndDate:   formatBound(rng.End),
		Records:   len(filtered),
		Summary:   Summarize(filtered).Summary(),
	}
}

var exportHeader = []string{
	"Date",
	"Description",
	"Category",
	"Type",
	"Taxable Amount",
	"Tax Amount",
	"Total Amount",
}

// WriteCSV writes one row per record in the order given, a blank row, and a
// TOTAL row. Callers pass records sorted by date.
func WriteCSV(w io.Writer, records []domain.TaxRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	totals := Summarize(records)
	for _, r := range records {
		if err := cw.Write([]string{
			r.Date.Format(domain.DateLayout),
			r.Description,
			r.Category,
			typeLabel(r.TransactionType),
			money(r.TaxableAmount),
			money(r.Tax()),
			money(r.Total()),
		}); err != nil {
			return err
		}
	}

	if err := cw.Write(nil); err != nil {
		return err
	}
	if err := cw.Write([]string{
		"TOTAL", "", "", "",
		money(totals.Taxable),
		money(totals.Tax),
		money(totals.Total),
	}); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename names the export after its resolved bounds, "all" when open.
func ExportFilename(rng domain.DateRange, ext string) string {
	start, end := formatBound(rng.Start), formatBound(rng.End)
	if start == "" {
		start = "all"
	}
	if end == "" {
		end = "all"
	}
	return fmt.Sprintf("financial_report_%s_%s.%s", start, end, ext)
}

func typeLabel(t domain.TransactionType) string {
	s := string(t)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func money(d decimal.Decimal) string {
	return d.StringFixedBank(2)
}
