package reporting

import (
	"bytes"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
)

var (
	cellText   = props.Text{Size: 8}
	cellAmount = props.Text{Size: 8, Align: align.Right}
	headText   = props.Text{Size: 8, Style: fontstyle.Bold}
	headAmount = props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}
)

// RenderPDF renders the same rows and totals as WriteCSV as a printable table.
func RenderPDF(rng domain.DateRange, records []domain.TaxRecord) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	start, end := formatBound(rng.Start), formatBound(rng.End)
	if start == "" {
		start = "all"
	}
	if end == "" {
		end = "all"
	}

	m.AddRow(20,
		text.NewCol(8, "Financial report", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		col.New(4).Add(
			text.New("From: "+start, props.Text{Size: 9, Align: align.Right}),
			text.New("To: "+end, props.Text{Size: 9, Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(8,
		text.NewCol(2, "Date", headText),
		text.NewCol(3, "Description", headText),
		text.NewCol(2, "Category", headText),
		text.NewCol(1, "Type", headText),
		text.NewCol(1, "Taxable", headAmount),
		text.NewCol(1, "Tax", headAmount),
		text.NewCol(2, "Total", headAmount),
	)

	totals := Summarize(records)
	for _, r := range records {
		m.AddRow(7,
			text.NewCol(2, r.Date.Format(domain.DateLayout), cellText),
			text.NewCol(3, r.Description, cellText),
			text.NewCol(2, r.Category, cellText),
			text.NewCol(1, typeLabel(r.TransactionType), cellText),
			text.NewCol(1, money(r.TaxableAmount), cellAmount),
			text.NewCol(1, money(r.Tax()), cellAmount),
			text.NewCol(2, money(r.Total()), cellAmount),
		)
	}

	m.AddRow(10,
		text.NewCol(8, "TOTAL", props.Text{Size: 9, Style: fontstyle.Bold, Top: 3}),
		text.NewCol(1, money(totals.Taxable), props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right, Top: 3}),
		text.NewCol(1, money(totals.Tax), props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right, Top: 3}),
		text.NewCol(2, money(totals.Total), props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right, Top: 3}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
